package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/cart"
	"repairdesk/backend/internal/catalog"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/payment"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

var ErrEmptySale = fmt.Errorf("%w: sale has no items", store.ErrInvalidInput)

// keys is every collection a checkout, edit or delete touches.
var keys = []string{store.KeyInventory, store.KeyTransactions, store.KeyLastTransactionID}

// StockPublisher is told about the catalog after a committed stock change.
type StockPublisher interface {
	Publish(items []domain.CatalogItem)
}

// Sale is a frozen cart plus its settled payment.
type Sale struct {
	Lines      []domain.CartLine
	CustomerID string
	TaxRate    decimal.Decimal
	Payment    payment.Settlement
}

type Filter struct {
	From       time.Time
	To         time.Time
	CustomerID string
}

type Ledger struct {
	repo      store.Repository
	publisher StockPublisher
	now       func() time.Time
}

func New(repo store.Repository, publisher StockPublisher) *Ledger {
	return &Ledger{repo: repo, publisher: publisher, now: func() time.Time { return time.Now().UTC() }}
}

// Checkout records sale as a new transaction and sells its stock. Nothing is
// persisted unless every line can be fulfilled.
func (l *Ledger) Checkout(ctx context.Context, sale Sale) (domain.Transaction, error) {
	lines, totals, err := prepare(sale)
	if err != nil {
		return domain.Transaction{}, err
	}

	var created domain.Transaction
	var stock []domain.CatalogItem
	err = l.repo.WithTransaction(ctx, keys, func(ctx context.Context, tx store.Repository) error {
		items, err := tx.LoadCatalog(ctx)
		if err != nil {
			return err
		}
		txs, err := tx.LoadTransactions(ctx)
		if err != nil {
			return err
		}
		lastID, err := tx.LoadLastTransactionID(ctx)
		if err != nil {
			return err
		}

		stock, err = catalog.ApplyAdjustments(items, catalog.Consumption(lines, -1))
		if err != nil {
			return err
		}

		id := nextID(lastID, txs)
		created = domain.Transaction{
			ID:             id,
			ReceiptID:      xid.ReceiptID(id),
			Date:           l.now(),
			CustomerID:     strings.TrimSpace(sale.CustomerID),
			Items:          lines,
			Subtotal:       totals.Subtotal,
			TaxRate:        sale.TaxRate,
			Tax:            totals.Tax,
			Total:          totals.Total,
			Change:         sale.Payment.Change,
			PaymentMethods: slices.Clone(sale.Payment.Methods),
			Refunds:        []domain.RefundRecord{},
		}

		if err := tx.SaveCatalog(ctx, stock); err != nil {
			return err
		}
		if err := tx.SaveTransactions(ctx, append(txs, created)); err != nil {
			return err
		}
		return tx.SaveLastTransactionID(ctx, id)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	l.publish(stock)
	return created, nil
}

// Edit replaces the items, totals and payments of transaction id. The stock
// held by the old snapshot is returned before the new lines are sold, so a
// cart that reuses the same items never dips below zero.
func (l *Ledger) Edit(ctx context.Context, id int64, sale Sale) (domain.Transaction, error) {
	lines, totals, err := prepare(sale)
	if err != nil {
		return domain.Transaction{}, err
	}

	var edited domain.Transaction
	var stock []domain.CatalogItem
	err = l.repo.WithTransaction(ctx, keys, func(ctx context.Context, tx store.Repository) error {
		items, err := tx.LoadCatalog(ctx)
		if err != nil {
			return err
		}
		txs, err := tx.LoadTransactions(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(txs, id)
		if idx < 0 {
			return store.ErrNotFound
		}
		original := txs[idx]

		restocked, err := catalog.ApplyAdjustments(items, catalog.Consumption(original.Items, 1))
		if err != nil {
			return err
		}
		stock, err = catalog.ApplyAdjustments(restocked, catalog.Consumption(lines, -1))
		if err != nil {
			return err
		}

		editedAt := l.now()
		edited = original
		edited.CustomerID = strings.TrimSpace(sale.CustomerID)
		edited.Items = lines
		edited.Subtotal = totals.Subtotal
		edited.TaxRate = sale.TaxRate
		edited.Tax = totals.Tax
		edited.Total = totals.Total
		edited.Change = sale.Payment.Change
		edited.PaymentMethods = slices.Clone(sale.Payment.Methods)
		edited.EditedAt = &editedAt
		if edited.Refunds == nil {
			edited.Refunds = []domain.RefundRecord{}
		}
		txs[idx] = edited

		if err := tx.SaveCatalog(ctx, stock); err != nil {
			return err
		}
		return tx.SaveTransactions(ctx, txs)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	l.publish(stock)
	return edited, nil
}

// Delete removes transaction id and restocks the quantities its snapshot
// still holds. Units already refunded were restocked (or not) by the refund.
func (l *Ledger) Delete(ctx context.Context, id int64) (domain.Transaction, error) {
	var deleted domain.Transaction
	var stock []domain.CatalogItem
	err := l.repo.WithTransaction(ctx, keys, func(ctx context.Context, tx store.Repository) error {
		items, err := tx.LoadCatalog(ctx)
		if err != nil {
			return err
		}
		txs, err := tx.LoadTransactions(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(txs, id)
		if idx < 0 {
			return store.ErrNotFound
		}
		deleted = txs[idx]

		stock, err = catalog.ApplyAdjustments(items, catalog.Consumption(deleted.Items, 1))
		if err != nil {
			return err
		}
		if err := tx.SaveCatalog(ctx, stock); err != nil {
			return err
		}
		return tx.SaveTransactions(ctx, slices.Delete(txs, idx, idx+1))
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	l.publish(stock)
	return deleted, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	txs, err := l.repo.LoadTransactions(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	idx := indexOf(txs, id)
	if idx < 0 {
		return domain.Transaction{}, store.ErrNotFound
	}
	return txs[idx], nil
}

// List returns matching transactions, newest first. Zero bounds are open;
// To is exclusive.
func (l *Ledger) List(ctx context.Context, f Filter) ([]domain.Transaction, error) {
	txs, err := l.repo.LoadTransactions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.matches(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Summary aggregates sales in [from, to). Payment totals come from the
// recorded method strings, so change handed back is not subtracted.
func (l *Ledger) Summary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	txs, err := l.List(ctx, Filter{From: from, To: to})
	if err != nil {
		return domain.SalesSummary{}, err
	}

	summary := domain.SalesSummary{
		From:          from,
		To:            to,
		GrossTotal:    decimal.Zero,
		TaxTotal:      decimal.Zero,
		RefundedTotal: decimal.Zero,
		ByPayment:     []domain.PaymentMethodTotal{},
	}
	byMethod := make(map[string]*domain.PaymentMethodTotal)
	for _, tx := range txs {
		summary.Transactions++
		summary.GrossTotal = summary.GrossTotal.Add(tx.Total)
		summary.TaxTotal = summary.TaxTotal.Add(tx.Tax)
		summary.RefundedTotal = summary.RefundedTotal.Add(tx.RefundedTotal())

		for _, raw := range tx.PaymentMethods {
			method, amount, ok := payment.ParseMethodString(raw)
			if !ok {
				continue
			}
			agg, exists := byMethod[method]
			if !exists {
				agg = &domain.PaymentMethodTotal{Method: method, Total: decimal.Zero}
				byMethod[method] = agg
			}
			agg.Count++
			agg.Total = agg.Total.Add(amount)
		}
	}
	summary.NetTotal = summary.GrossTotal.Sub(summary.RefundedTotal)

	for _, agg := range byMethod {
		summary.ByPayment = append(summary.ByPayment, *agg)
	}
	sort.Slice(summary.ByPayment, func(i, j int) bool {
		return summary.ByPayment[i].Method < summary.ByPayment[j].Method
	})
	return summary, nil
}

func (f Filter) matches(tx domain.Transaction) bool {
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.Date.Before(f.To) {
		return false
	}
	if f.CustomerID != "" && tx.CustomerID != f.CustomerID {
		return false
	}
	return true
}

func prepare(sale Sale) ([]domain.CartLine, domain.Totals, error) {
	lines := make([]domain.CartLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, domain.Totals{}, ErrEmptySale
	}

	totals := cart.ComputeTotals(lines, sale.TaxRate)
	if !payment.Covers(totals.Total, sale.Payment.Paid) {
		return nil, domain.Totals{}, &payment.InsufficientPaymentError{
			Remaining: totals.Total.Sub(sale.Payment.Paid),
		}
	}
	return lines, totals, nil
}

// nextID never reuses an id, even if the counter fell behind the ledger.
func nextID(lastID int64, txs []domain.Transaction) int64 {
	for _, tx := range txs {
		lastID = max(lastID, tx.ID)
	}
	return lastID + 1
}

func indexOf(txs []domain.Transaction, id int64) int {
	return slices.IndexFunc(txs, func(tx domain.Transaction) bool { return tx.ID == id })
}

func (l *Ledger) publish(items []domain.CatalogItem) {
	if l.publisher != nil && items != nil {
		l.publisher.Publish(items)
	}
}
