package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/cart"
	"repairdesk/backend/internal/catalog"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/drafts"
	"repairdesk/backend/internal/export"
	"repairdesk/backend/internal/ledger"
	"repairdesk/backend/internal/payment"
	"repairdesk/backend/internal/receipt"
	"repairdesk/backend/internal/refund"
	"repairdesk/backend/internal/settings"
	"repairdesk/backend/internal/store"
)

var ErrUnknownVATRate = fmt.Errorf("%w: unknown VAT rate", store.ErrInvalidInput)

// Service owns one open sale per terminal and routes every persisted change
// through the catalog, ledger, refund and draft components.
type Service struct {
	repo     store.Repository
	catalog  *catalog.Store
	ledger   *ledger.Ledger
	refunds  *refund.Processor
	drafts   *drafts.Book
	settings *settings.Store
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	tills map[string]*till
}

// till is the open sale of one terminal.
type till struct {
	terminalID string
	cart       *cart.Cart
	payments   *payment.Reconciliation
	customerID string
	taxRate    decimal.Decimal
	editingID  int64
	// editing holds the snapshot of the transaction being edited; its units
	// count as available again while the edit is open.
	editing []domain.CartLine
	// tillRate is the till's own rate, restored when the edit ends.
	tillRate decimal.Decimal
}

func New(repo store.Repository, defaults settings.Defaults, log zerolog.Logger) *Service {
	s := &Service{
		repo:     repo,
		catalog:  catalog.New(repo),
		drafts:   drafts.NewBook(repo),
		settings: settings.New(repo, defaults),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		tills:    make(map[string]*till),
	}
	s.ledger = ledger.New(repo, s.catalog)
	s.refunds = refund.NewProcessor(repo, s.catalog)
	s.catalog.Subscribe(s.warnLowStock)
	return s
}

// Catalog exposes the item store, mainly so callers can subscribe to it.
func (s *Service) Catalog() *catalog.Store {
	return s.catalog
}

func (s *Service) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.catalog.GetAll(ctx)
}

func (s *Service) GetCatalogItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	return s.catalog.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) CreateCatalogItem(ctx context.Context, draft domain.ItemDraft) (domain.CatalogItem, error) {
	return s.catalog.Add(ctx, draft)
}

func (s *Service) UpdateCatalogItem(ctx context.Context, id string, draft domain.ItemDraft) (domain.CatalogItem, error) {
	draft.ID = strings.TrimSpace(id)
	item, found, err := s.catalog.Update(ctx, draft)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if !found {
		return domain.CatalogItem{}, store.ErrNotFound
	}
	return item, nil
}

func (s *Service) RemoveCatalogItem(ctx context.Context, id string) error {
	removed, err := s.catalog.Remove(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrNotFound
	}
	return nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.catalog.LowStock(ctx)
}

func (s *Service) Till(ctx context.Context, terminalID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(*till) error { return nil })
}

func (s *Service) AddItem(ctx context.Context, terminalID string, req domain.AddItemRequest) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		item, err := s.catalog.GetByID(ctx, strings.TrimSpace(req.CatalogItemID))
		if err != nil {
			return err
		}
		_, err = t.cart.AddItem(item)
		return err
	})
}

func (s *Service) AddCustomItem(ctx context.Context, terminalID string, req domain.CustomItemRequest) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		_, err := t.cart.AddCustom(req.Name, req.UnitPrice.Decimal(), req.WarrantyMonths.Int())
		return err
	})
}

func (s *Service) UpdateLineQuantity(ctx context.Context, terminalID string, lineID string, qty int) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		return t.cart.UpdateQuantity(lineID, qty)
	})
}

func (s *Service) RemoveLine(ctx context.Context, terminalID string, lineID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		return t.cart.RemoveItem(lineID)
	})
}

// ClearTill empties the cart and payments and abandons any open edit.
func (s *Service) ClearTill(ctx context.Context, terminalID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		t.reset()
		return nil
	})
}

func (s *Service) SetCustomer(ctx context.Context, terminalID string, customerID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		t.customerID = strings.TrimSpace(customerID)
		return nil
	})
}

func (s *Service) SetTaxRate(ctx context.Context, terminalID string, req domain.TaxRateRequest) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		name := strings.TrimSpace(req.VATRateName)
		if name == "" {
			rate := req.TaxRate.Decimal()
			if rate.GreaterThan(decimal.NewFromInt(1)) {
				return fmt.Errorf("%w: tax rate must be between 0 and 1", store.ErrInvalidInput)
			}
			t.taxRate = rate
			return nil
		}

		rates, err := s.settings.VATRates(ctx)
		if err != nil {
			return err
		}
		for _, r := range rates {
			if strings.EqualFold(r.Name, name) {
				t.taxRate = r.Rate
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrUnknownVATRate, name)
	})
}

func (s *Service) AddPayment(ctx context.Context, terminalID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		t.payments.AddEntry()
		return nil
	})
}

func (s *Service) UpdatePayment(ctx context.Context, terminalID string, entryID string, field string, value string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		return t.payments.UpdateEntry(entryID, field, value)
	})
}

func (s *Service) RemovePayment(ctx context.Context, terminalID string, entryID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		return t.payments.RemoveEntry(entryID)
	})
}

func (s *Service) FillRemaining(ctx context.Context, terminalID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		t.payments.FillRemaining()
		return nil
	})
}

// Checkout commits the open sale of terminalID, or re-saves the transaction
// being edited. On failure the till is left untouched so the cashier can
// retry.
func (s *Service) Checkout(ctx context.Context, terminalID string) (domain.CheckoutResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tillLocked(ctx, terminalID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if t.cart.IsEmpty() {
		return domain.CheckoutResponse{}, ledger.ErrEmptySale
	}
	tmpl, err := s.settings.ReceiptTemplate(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	t.payments.SetTotal(t.cart.ComputeTotals(t.taxRate).Total)
	settlement, err := t.payments.Complete(tmpl.CurrencySymbol)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	sale := ledger.Sale{
		Lines:      t.cart.Lines(),
		CustomerID: t.customerID,
		TaxRate:    t.taxRate,
		Payment:    settlement,
	}

	var tx domain.Transaction
	edited := t.editingID != 0
	if edited {
		tx, err = s.ledger.Edit(ctx, t.editingID, sale)
	} else {
		tx, err = s.ledger.Checkout(ctx, sale)
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("terminal_id", t.terminalID).
			Int64("editing_transaction_id", t.editingID).
			Int("lines", len(sale.Lines)).
			Msg("checkout failed, till kept for retry")
		return domain.CheckoutResponse{}, err
	}

	s.log.Info().
		Str("terminal_id", t.terminalID).
		Int64("transaction_id", tx.ID).
		Str("receipt_id", tx.ReceiptID).
		Str("total", tx.Total.StringFixed(2)).
		Bool("edited", edited).
		Msg("checkout completed")
	t.reset()
	return domain.CheckoutResponse{Transaction: tx, Edited: edited}, nil
}

// EditTransaction loads transaction txID into the till. The next checkout
// replaces it in place.
func (s *Service) EditTransaction(ctx context.Context, terminalID string, txID int64) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		tx, err := s.ledger.Get(ctx, txID)
		if err != nil {
			return err
		}
		t.reset()
		t.tillRate = t.taxRate
		t.editingID = tx.ID
		t.editing = tx.Items
		t.customerID = tx.CustomerID
		t.taxRate = tx.TaxRate
		t.cart.Load(tx.Items)
		t.payments = payment.Restore(tx.Total, tx.PaymentMethods)
		return nil
	})
}

func (s *Service) SaveDraft(ctx context.Context, terminalID string, name string) (domain.Draft, error) {
	var draft domain.Draft
	_, err := s.withTill(ctx, terminalID, func(t *till) error {
		var err error
		draft, err = s.drafts.Save(ctx, name, t.cart.Lines(), t.customerID)
		return err
	})
	return draft, err
}

// LoadDraft replaces the cart of terminalID with the draft's snapshot.
func (s *Service) LoadDraft(ctx context.Context, terminalID string, draftID string) (domain.TillState, error) {
	return s.withTill(ctx, terminalID, func(t *till) error {
		draft, err := s.drafts.Load(ctx, draftID)
		if err != nil {
			return err
		}
		t.reset()
		t.customerID = draft.CustomerID
		t.cart.Load(draft.Cart)
		return nil
	})
}

func (s *Service) ListDrafts(ctx context.Context) ([]domain.Draft, error) {
	return s.drafts.List(ctx)
}

func (s *Service) DeleteDraft(ctx context.Context, draftID string, confirmed bool) error {
	return s.drafts.Delete(ctx, strings.TrimSpace(draftID), confirmed)
}

func (s *Service) Quote(ctx context.Context, terminalID string) (receipt.Receipt, error) {
	var lines []domain.CartLine
	var taxRate decimal.Decimal
	var customerID string
	if _, err := s.withTill(ctx, terminalID, func(t *till) error {
		lines = t.cart.Lines()
		taxRate = t.taxRate
		customerID = t.customerID
		return nil
	}); err != nil {
		return receipt.Receipt{}, err
	}

	renderer, err := s.renderer(ctx)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return renderer.Quote(lines, taxRate, customerID, s.now())
}

func (s *Service) ListTransactions(ctx context.Context, filter ledger.Filter) ([]domain.Transaction, error) {
	return s.ledger.List(ctx, filter)
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.ledger.Get(ctx, id)
}

// DeleteTransaction removes a sale and puts its remaining units back on the
// shelf. A transaction open for editing on any till cannot be deleted.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tills {
		if t.editingID == id {
			return domain.Transaction{}, fmt.Errorf("%w: transaction %d is being edited on %s", store.ErrConflict, id, t.terminalID)
		}
	}

	tx, err := s.ledger.Delete(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Warn().Int64("transaction_id", tx.ID).Str("receipt_id", tx.ReceiptID).Msg("transaction deleted and restocked")
	return tx, nil
}

func (s *Service) Receipt(ctx context.Context, id int64) (receipt.Receipt, error) {
	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return receipt.Receipt{}, err
	}
	renderer, err := s.renderer(ctx)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return renderer.Transaction(tx)
}

func (s *Service) PreviewRefund(ctx context.Context, req refund.Request) (refund.Result, error) {
	return s.refunds.Preview(ctx, req)
}

func (s *Service) Refund(ctx context.Context, req refund.Request) (domain.RefundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tills {
		if t.editingID == req.TransactionID {
			return domain.RefundRecord{}, fmt.Errorf("%w: transaction %d is being edited on %s", store.ErrConflict, req.TransactionID, t.terminalID)
		}
	}

	record, _, err := s.refunds.Process(ctx, req)
	if err != nil {
		if !errors.Is(err, refund.ErrInvalidRefund) && !errors.Is(err, store.ErrNotFound) {
			s.log.Error().Err(err).Int64("transaction_id", req.TransactionID).Msg("refund failed")
		}
		return domain.RefundRecord{}, err
	}
	s.log.Info().
		Int64("transaction_id", record.TransactionID).
		Str("refund_id", record.ID).
		Str("mode", record.Mode).
		Str("refund_total", record.RefundTotal.StringFixed(2)).
		Msg("refund recorded")
	return record, nil
}

func (s *Service) Summary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	return s.ledger.Summary(ctx, from, to)
}

func (s *Service) VATRates(ctx context.Context) ([]domain.VATRate, error) {
	return s.settings.VATRates(ctx)
}

func (s *Service) SaveVATRates(ctx context.Context, rates []domain.VATRate) ([]domain.VATRate, error) {
	return s.settings.SaveVATRates(ctx, rates)
}

func (s *Service) ReceiptTemplate(ctx context.Context) (domain.ReceiptTemplate, error) {
	return s.settings.ReceiptTemplate(ctx)
}

func (s *Service) SaveReceiptTemplate(ctx context.Context, tmpl domain.ReceiptTemplate) (domain.ReceiptTemplate, error) {
	return s.settings.SaveReceiptTemplate(ctx, tmpl)
}

func (s *Service) ExportTransactions(ctx context.Context, w io.Writer, filter ledger.Filter) error {
	txs, err := s.ledger.List(ctx, filter)
	if err != nil {
		return err
	}
	return export.WriteTransactions(w, txs)
}

func (s *Service) ExportCatalog(ctx context.Context, w io.Writer) error {
	items, err := s.catalog.GetAll(ctx)
	if err != nil {
		return err
	}
	return export.WriteCatalog(w, items)
}

// withTill runs fn on the till of terminalID with a fresh stock snapshot and
// returns the resulting state. fn's error is returned alongside the state
// as it was left.
func (s *Service) withTill(ctx context.Context, terminalID string, fn func(t *till) error) (domain.TillState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tillLocked(ctx, terminalID)
	if err != nil {
		return domain.TillState{}, err
	}
	stock, err := s.stockFor(ctx, t)
	if err != nil {
		return domain.TillState{}, err
	}
	t.cart.SetStock(stock)

	fnErr := fn(t)
	t.payments.SetTotal(t.cart.ComputeTotals(t.taxRate).Total)
	if fnErr != nil {
		return domain.TillState{}, fnErr
	}

	tmpl, err := s.settings.ReceiptTemplate(ctx)
	if err != nil {
		return domain.TillState{}, err
	}
	return t.state(tmpl.CurrencySymbol), nil
}

func (s *Service) tillLocked(ctx context.Context, terminalID string) (*till, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, fmt.Errorf("%w: terminal id is required", store.ErrInvalidInput)
	}
	if t, ok := s.tills[terminalID]; ok {
		return t, nil
	}

	rate, err := s.settings.DefaultVATRate(ctx)
	if err != nil {
		return nil, err
	}
	t := &till{
		terminalID: terminalID,
		cart:       cart.New(nil),
		payments:   payment.New(decimal.Zero),
		taxRate:    rate,
	}
	s.tills[terminalID] = t
	return t, nil
}

// stockFor is the catalog on-hand quantity plus, during an edit, the units
// the edited transaction already holds.
func (s *Service) stockFor(ctx context.Context, t *till) (cart.Stock, error) {
	items, err := s.catalog.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	stock := cart.StockFromCatalog(items)
	for _, adj := range catalog.Consumption(t.editing, 1) {
		if _, ok := stock[adj.ItemID]; ok {
			stock[adj.ItemID] += adj.Delta
		}
	}
	return stock, nil
}

func (s *Service) renderer(ctx context.Context) (*receipt.Renderer, error) {
	tmpl, err := s.settings.ReceiptTemplate(ctx)
	if err != nil {
		return nil, err
	}
	return receipt.NewRenderer(tmpl), nil
}

func (s *Service) warnLowStock(items []domain.CatalogItem) {
	for _, item := range items {
		if item.QuantityOnHand <= item.LowStockThreshold {
			s.log.Warn().
				Str("item_id", item.ID).
				Str("name", item.Name).
				Int("quantity_on_hand", item.QuantityOnHand).
				Int("low_stock_threshold", item.LowStockThreshold).
				Msg("low stock")
		}
	}
}

func (t *till) reset() {
	t.cart.Clear()
	t.payments = payment.New(decimal.Zero)
	t.customerID = ""
	if t.editingID != 0 {
		t.taxRate = t.tillRate
	}
	t.editingID = 0
	t.editing = nil
}

func (t *till) state(currencySymbol string) domain.TillState {
	return domain.TillState{
		TerminalID:     t.terminalID,
		CustomerID:     t.customerID,
		EditingID:      t.editingID,
		TaxRate:        t.taxRate,
		Lines:          t.cart.Lines(),
		Totals:         t.cart.ComputeTotals(t.taxRate),
		Payments:       t.payments.Entries(),
		Paid:           t.payments.Paid(),
		Remaining:      t.payments.Remaining(),
		Change:         t.payments.Change(),
		CanComplete:    !t.cart.IsEmpty() && t.payments.CanComplete(),
		PaymentStrings: t.payments.MethodStrings(currencySymbol),
	}
}
