package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

var ErrInvalidItem = fmt.Errorf("%w: catalog item", store.ErrInvalidInput)

// Listener receives the full catalog after every committed change.
type Listener func(items []domain.CatalogItem)

type Store struct {
	repo store.Repository

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func New(repo store.Repository) *Store {
	return &Store{repo: repo, listeners: make(map[int]Listener)}
}

func (s *Store) GetAll(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.repo.LoadCatalog(ctx)
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.CatalogItem, error) {
	items, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	idx := indexOf(items, id)
	if idx < 0 {
		return domain.CatalogItem{}, store.ErrNotFound
	}
	return items[idx], nil
}

// Add assigns a fresh id and coerces the numeric fields of draft. A blank
// type becomes "custom".
func (s *Store) Add(ctx context.Context, draft domain.ItemDraft) (domain.CatalogItem, error) {
	item := domain.CatalogItem{
		ID:                xid.New("item"),
		Name:              strings.TrimSpace(draft.Name),
		Price:             draft.Price.Decimal().Round(2),
		QuantityOnHand:    draft.QuantityOnHand.Int(),
		LowStockThreshold: draft.LowStockThreshold.Int(),
	}
	itemType, err := normalizeType(draft.Type)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	item.Type = itemType
	if item.Name == "" {
		return domain.CatalogItem{}, fmt.Errorf("%w: name is required", ErrInvalidItem)
	}

	var saved []domain.CatalogItem
	err = s.repo.WithTransaction(ctx, []string{store.KeyInventory}, func(ctx context.Context, tx store.Repository) error {
		items, err := tx.LoadCatalog(ctx)
		if err != nil {
			return err
		}
		saved = append(items, item)
		return tx.SaveCatalog(ctx, saved)
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}

	s.Publish(saved)
	return item, nil
}

// Update merges draft into the item with draft.ID. Blank fields keep the
// stored value; supplied numbers are re-coerced. found is false, and nothing
// is written, when no such item exists.
func (s *Store) Update(ctx context.Context, draft domain.ItemDraft) (item domain.CatalogItem, found bool, err error) {
	itemType := ""
	if strings.TrimSpace(draft.Type) != "" {
		if itemType, err = normalizeType(draft.Type); err != nil {
			return domain.CatalogItem{}, false, err
		}
	}

	var saved []domain.CatalogItem
	err = s.repo.WithTransaction(ctx, []string{store.KeyInventory}, func(ctx context.Context, tx store.Repository) error {
		items, err := tx.LoadCatalog(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(items, draft.ID)
		if idx < 0 {
			return nil
		}
		found = true

		merged := items[idx]
		if name := strings.TrimSpace(draft.Name); name != "" {
			merged.Name = name
		}
		if itemType != "" {
			merged.Type = itemType
		}
		if draft.Price != "" {
			merged.Price = draft.Price.Decimal().Round(2)
		}
		if draft.QuantityOnHand != "" {
			merged.QuantityOnHand = draft.QuantityOnHand.Int()
		}
		if draft.LowStockThreshold != "" {
			merged.LowStockThreshold = draft.LowStockThreshold.Int()
		}
		items[idx] = merged
		item = merged
		saved = items
		return tx.SaveCatalog(ctx, items)
	})
	if err != nil || !found {
		return domain.CatalogItem{}, false, err
	}

	s.Publish(saved)
	return item, true, nil
}

// Remove deletes the item with id. Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	var saved []domain.CatalogItem
	err := s.repo.WithTransaction(ctx, []string{store.KeyInventory}, func(ctx context.Context, tx store.Repository) error {
		items, err := tx.LoadCatalog(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(items, id)
		if idx < 0 {
			return nil
		}
		removed = true
		saved = slices.Delete(items, idx, idx+1)
		return tx.SaveCatalog(ctx, saved)
	})
	if err != nil || !removed {
		return false, err
	}

	s.Publish(saved)
	return true, nil
}

// LowStock lists items at or below their low-stock threshold.
func (s *Store) LowStock(ctx context.Context) ([]domain.CatalogItem, error) {
	items, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]domain.CatalogItem, 0)
	for _, item := range items {
		if item.QuantityOnHand <= item.LowStockThreshold {
			low = append(low, item)
		}
	}
	return low, nil
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Publish notifies every listener synchronously. Callers that change stock
// outside this package call it once their transaction has committed.
func (s *Store) Publish(items []domain.CatalogItem) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(slices.Clone(items))
	}
}

func normalizeType(raw string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch t {
	case "":
		return domain.ItemTypeCustom, nil
	case domain.ItemTypeDevice, domain.ItemTypeAccessory, domain.ItemTypePart, domain.ItemTypeCustom:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidItem, raw)
	}
}

func indexOf(items []domain.CatalogItem, id string) int {
	return slices.IndexFunc(items, func(item domain.CatalogItem) bool { return item.ID == id })
}
