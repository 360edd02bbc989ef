package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
)

// Store keeps every collection in process memory. Update holds the store
// lock for the whole callback, so transactions never interleave.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// NewSeeded returns a store pre-filled with a demo repair-shop catalog, a
// default VAT rate and a receipt template.
func NewSeeded() *Store {
	s := New()

	items := []domain.CatalogItem{
		{ID: "item-iphone13-refurb", Name: "iPhone 13 128GB (refurbished)", Type: domain.ItemTypeDevice, Price: decimal.RequireFromString("429.00"), QuantityOnHand: 4, LowStockThreshold: 1},
		{ID: "item-galaxy-a54", Name: "Galaxy A54 128GB", Type: domain.ItemTypeDevice, Price: decimal.RequireFromString("299.00"), QuantityOnHand: 6, LowStockThreshold: 2},
		{ID: "item-usbc-cable", Name: "USB-C cable 1m", Type: domain.ItemTypeAccessory, Price: decimal.RequireFromString("9.90"), QuantityOnHand: 40, LowStockThreshold: 10},
		{ID: "item-tempered-glass", Name: "Tempered glass protector", Type: domain.ItemTypeAccessory, Price: decimal.RequireFromString("14.90"), QuantityOnHand: 35, LowStockThreshold: 10},
		{ID: "item-silicone-case", Name: "Silicone case", Type: domain.ItemTypeAccessory, Price: decimal.RequireFromString("19.90"), QuantityOnHand: 20, LowStockThreshold: 5},
		{ID: "item-charger-20w", Name: "20W USB-C charger", Type: domain.ItemTypeAccessory, Price: decimal.RequireFromString("24.90"), QuantityOnHand: 15, LowStockThreshold: 5},
		{ID: "item-iphone13-screen", Name: "iPhone 13 OLED screen", Type: domain.ItemTypePart, Price: decimal.RequireFromString("149.00"), QuantityOnHand: 5, LowStockThreshold: 2},
		{ID: "item-iphone13-battery", Name: "iPhone 13 battery", Type: domain.ItemTypePart, Price: decimal.RequireFromString("59.00"), QuantityOnHand: 8, LowStockThreshold: 3},
		{ID: "item-a54-charge-port", Name: "Galaxy A54 charging port", Type: domain.ItemTypePart, Price: decimal.RequireFromString("39.00"), QuantityOnHand: 3, LowStockThreshold: 2},
	}
	rates := []domain.VATRate{
		{Name: "Standard", Rate: decimal.RequireFromString("0.21"), Default: true},
		{Name: "Reduced", Rate: decimal.RequireFromString("0.06")},
		{Name: "Zero", Rate: decimal.Zero},
	}
	tmpl := domain.ReceiptTemplate{
		ShopName:       "Repair Desk",
		HeaderLines:    []string{"Phone & tablet repairs"},
		FooterLines:    []string{"Thank you for your visit", "Repairs carry the warranty printed per line"},
		CurrencySymbol: "$",
	}

	s.seed(store.KeyInventory, items)
	s.seed(store.KeyVATRates, rates)
	s.seed(store.KeyReceiptTemplate, tmpl)
	return s
}

func (s *Store) seed(key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	s.blobs[key] = payload
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.blobs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(value), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = slices.Clone(value)
	return nil
}

func (s *Store) Update(ctx context.Context, keys []string, fn func(ctx context.Context, tx store.BlobStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes, err := store.Stage(ctx, keys, func(key string) ([]byte, bool, error) {
		value, ok := s.blobs[key]
		return slices.Clone(value), ok, nil
	}, fn)
	if err != nil {
		return err
	}
	for _, w := range writes {
		s.blobs[w.Key] = w.Value
	}
	return nil
}
