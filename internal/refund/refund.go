package refund

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/catalog"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

var ErrInvalidRefund = errors.New("invalid refund")

var keys = []string{store.KeyInventory, store.KeyTransactions}

type StockPublisher interface {
	Publish(items []domain.CatalogItem)
}

// Request selects either Items (item mode) or Amount (amount mode).
type Request struct {
	TransactionID int64               `json:"transactionId"`
	Mode          string              `json:"mode"`
	Items         []domain.RefundItem `json:"items,omitempty"`
	Amount        domain.FlexNumber   `json:"amount,omitempty"`
	Reason        string              `json:"reason,omitempty"`
}

// Result is the computed refund before anything is written.
type Result struct {
	TransactionID    int64               `json:"transactionId"`
	Mode             string              `json:"mode"`
	Items            []domain.RefundItem `json:"items"`
	RefundTotal      decimal.Decimal     `json:"refundTotal"`
	OriginalTotal    decimal.Decimal     `json:"originalTotal"`
	AlreadyRefunded  decimal.Decimal     `json:"alreadyRefunded"`
	RemainingBalance decimal.Decimal     `json:"remainingBalance"`
	Valid            bool                `json:"isValidRefund"`
	Problem          string              `json:"problem,omitempty"`
}

// Preview computes the refund req describes against tx. Item quantities are
// clamped to what the snapshot still holds and amounts to the sale total.
func Preview(tx domain.Transaction, req Request) Result {
	res := Result{
		TransactionID:   tx.ID,
		Mode:            normalizeMode(req.Mode),
		Items:           []domain.RefundItem{},
		RefundTotal:     decimal.Zero,
		OriginalTotal:   tx.Total,
		AlreadyRefunded: tx.RefundedTotal(),
	}

	switch res.Mode {
	case domain.RefundModeItems:
		for _, item := range mergeItems(req.Items) {
			idx := slices.IndexFunc(tx.Items, func(line domain.CartLine) bool { return line.ID == item.ID })
			if idx < 0 {
				continue
			}
			line := tx.Items[idx]
			qty := min(max(item.RefundQty, 0), line.Quantity)
			if qty == 0 {
				continue
			}
			res.Items = append(res.Items, domain.RefundItem{ID: line.ID, RefundQty: qty, Restock: item.Restock})
			res.RefundTotal = res.RefundTotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
		}
	case domain.RefundModeAmount:
		amount := req.Amount.Decimal().Round(2)
		res.RefundTotal = decimal.Min(amount, tx.Total)
	default:
		res.Problem = fmt.Sprintf("unknown refund mode %q", req.Mode)
		res.RemainingBalance = tx.Total.Sub(res.AlreadyRefunded)
		return res
	}

	refundable := tx.Total.Sub(res.AlreadyRefunded)
	res.RemainingBalance = refundable.Sub(res.RefundTotal)
	switch {
	case !res.RefundTotal.IsPositive():
		res.Problem = "refund total must be greater than zero"
	case res.RefundTotal.GreaterThan(tx.Total):
		res.Problem = "refund exceeds the original total"
	case res.RefundTotal.GreaterThan(refundable):
		res.Problem = fmt.Sprintf("refund exceeds the remaining refundable balance of %s", refundable.StringFixed(2))
	default:
		res.Valid = true
	}
	return res
}

type Processor struct {
	repo      store.Repository
	publisher StockPublisher
	now       func() time.Time
}

func NewProcessor(repo store.Repository, publisher StockPublisher) *Processor {
	return &Processor{repo: repo, publisher: publisher, now: func() time.Time { return time.Now().UTC() }}
}

// Preview loads the transaction and computes the refund without writing.
func (p *Processor) Preview(ctx context.Context, req Request) (Result, error) {
	txs, err := p.repo.LoadTransactions(ctx)
	if err != nil {
		return Result{}, err
	}
	idx := indexOf(txs, req.TransactionID)
	if idx < 0 {
		return Result{}, store.ErrNotFound
	}
	return Preview(txs[idx], req), nil
}

// Process records the refund on its transaction. Flagged items go back on
// the shelf and item refunds shrink the snapshot so the same units cannot be
// refunded twice. The transaction's total and change are left as sold.
func (p *Processor) Process(ctx context.Context, req Request) (domain.RefundRecord, domain.Transaction, error) {
	var record domain.RefundRecord
	var updated domain.Transaction
	var stock []domain.CatalogItem
	err := p.repo.WithTransaction(ctx, keys, func(ctx context.Context, tx store.Repository) error {
		txs, err := tx.LoadTransactions(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(txs, req.TransactionID)
		if idx < 0 {
			return store.ErrNotFound
		}
		sale := txs[idx]

		res := Preview(sale, req)
		if !res.Valid {
			return fmt.Errorf("%w: %s", ErrInvalidRefund, res.Problem)
		}

		record = domain.RefundRecord{
			ID:               xid.New("refund"),
			TransactionID:    sale.ID,
			Mode:             res.Mode,
			Items:            res.Items,
			RefundTotal:      res.RefundTotal,
			OriginalTotal:    sale.Total,
			RemainingBalance: res.RemainingBalance,
			Reason:           strings.TrimSpace(req.Reason),
			Date:             p.now(),
		}

		restock := make([]catalog.Adjustment, 0, len(res.Items))
		sale.Items = slices.Clone(sale.Items)
		for _, item := range res.Items {
			li := slices.IndexFunc(sale.Items, func(line domain.CartLine) bool { return line.ID == item.ID })
			line := sale.Items[li]
			sale.Items[li].Quantity -= item.RefundQty
			if item.Restock && !line.IsCustom && line.CatalogItemID != "" {
				restock = append(restock, catalog.Adjustment{ItemID: line.CatalogItemID, Delta: item.RefundQty})
			}
		}
		sale.Refunds = append(slices.Clone(sale.Refunds), record)
		txs[idx] = sale
		updated = sale

		if len(restock) > 0 {
			items, err := tx.LoadCatalog(ctx)
			if err != nil {
				return err
			}
			if stock, err = catalog.ApplyAdjustments(items, restock); err != nil {
				return err
			}
			if err := tx.SaveCatalog(ctx, stock); err != nil {
				return err
			}
		}
		return tx.SaveTransactions(ctx, txs)
	})
	if err != nil {
		return domain.RefundRecord{}, domain.Transaction{}, err
	}

	if stock != nil && p.publisher != nil {
		p.publisher.Publish(stock)
	}
	return record, updated, nil
}

func normalizeMode(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}

// mergeItems folds repeated lines into one request per line id.
func mergeItems(items []domain.RefundItem) []domain.RefundItem {
	out := make([]domain.RefundItem, 0, len(items))
	for _, item := range items {
		item.RefundQty = max(item.RefundQty, 0)
		idx := slices.IndexFunc(out, func(o domain.RefundItem) bool { return o.ID == item.ID })
		if idx < 0 {
			out = append(out, item)
			continue
		}
		out[idx].RefundQty += item.RefundQty
		out[idx].Restock = out[idx].Restock || item.Restock
	}
	return out
}

func indexOf(txs []domain.Transaction, id int64) int {
	return slices.IndexFunc(txs, func(tx domain.Transaction) bool { return tx.ID == id })
}
