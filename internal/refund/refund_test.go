package refund

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/store/memory"
)

type countingPublisher struct{ calls int }

func (p *countingPublisher) Publish([]domain.CatalogItem) { p.calls++ }

// seedSale stores the state right after selling two screens at 50 with 10%
// tax out of a stock of five.
func seedSale(t *testing.T) (*store.BlobRepository, domain.Transaction) {
	t.Helper()
	ctx := context.Background()
	repo := store.NewRepository(memory.New())

	require.NoError(t, repo.SaveCatalog(ctx, []domain.CatalogItem{
		{ID: "item-screen", Name: "OLED screen", Type: domain.ItemTypePart, Price: decimal.NewFromInt(50), QuantityOnHand: 3},
	}))
	sale := domain.Transaction{
		ID:        1,
		ReceiptID: "REC-0001",
		Date:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Items: []domain.CartLine{
			{ID: "item-screen", CatalogItemID: "item-screen", Name: "OLED screen", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
		},
		Subtotal:       decimal.NewFromInt(100),
		TaxRate:        decimal.RequireFromString("0.10"),
		Tax:            decimal.NewFromInt(10),
		Total:          decimal.NewFromInt(110),
		Change:         decimal.Zero,
		PaymentMethods: []string{"cash: $110.00"},
		Refunds:        []domain.RefundRecord{},
	}
	require.NoError(t, repo.SaveTransactions(ctx, []domain.Transaction{sale}))
	return repo, sale
}

func onHand(t *testing.T, repo store.Repository) int {
	t.Helper()
	items, err := repo.LoadCatalog(context.Background())
	require.NoError(t, err)
	return items[0].QuantityOnHand
}

func TestItemRefundWithRestock(t *testing.T) {
	repo, _ := seedSale(t)
	publisher := &countingPublisher{}
	p := NewProcessor(repo, publisher)

	record, updated, err := p.Process(context.Background(), Request{
		TransactionID: 1,
		Mode:          domain.RefundModeItems,
		Items:         []domain.RefundItem{{ID: "item-screen", RefundQty: 1, Restock: true}},
		Reason:        "cracked on arrival",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, onHand(t, repo))
	assert.True(t, record.RefundTotal.Equal(decimal.NewFromInt(50)))
	assert.True(t, record.RemainingBalance.Equal(decimal.NewFromInt(60)))
	assert.True(t, record.OriginalTotal.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, "cracked on arrival", record.Reason)

	assert.True(t, updated.Total.Equal(decimal.NewFromInt(110)))
	assert.True(t, updated.Change.IsZero())
	assert.Equal(t, 1, updated.Items[0].Quantity)
	require.Len(t, updated.Refunds, 1)
	assert.Equal(t, 1, publisher.calls)

	stored, err := repo.LoadTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updated.Refunds[0].ID, stored[0].Refunds[0].ID)
}

func TestItemRefundWithoutRestockLeavesCatalog(t *testing.T) {
	repo, _ := seedSale(t)
	publisher := &countingPublisher{}
	p := NewProcessor(repo, publisher)

	_, _, err := p.Process(context.Background(), Request{
		TransactionID: 1,
		Mode:          domain.RefundModeItems,
		Items:         []domain.RefundItem{{ID: "item-screen", RefundQty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, onHand(t, repo))
	assert.Zero(t, publisher.calls)
}

func TestItemRefundsCannotRefundTheSameUnitsTwice(t *testing.T) {
	repo, _ := seedSale(t)
	p := NewProcessor(repo, nil)
	ctx := context.Background()

	_, _, err := p.Process(ctx, Request{TransactionID: 1, Mode: "items", Items: []domain.RefundItem{{ID: "item-screen", RefundQty: 2}}})
	require.NoError(t, err)

	res, err := p.Preview(ctx, Request{TransactionID: 1, Mode: "items", Items: []domain.RefundItem{{ID: "item-screen", RefundQty: 1}}})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.RefundTotal.IsZero())

	_, _, err = p.Process(ctx, Request{TransactionID: 1, Mode: "items", Items: []domain.RefundItem{{ID: "item-screen", RefundQty: 1}}})
	require.ErrorIs(t, err, ErrInvalidRefund)
}

func TestPreviewIgnoresNegativeQuantitiesWhenMerging(t *testing.T) {
	_, sale := seedSale(t)

	res := Preview(sale, Request{Mode: "items", Items: []domain.RefundItem{
		{ID: "item-screen", RefundQty: -5},
		{ID: "item-screen", RefundQty: 2},
	}})
	require.True(t, res.Valid, res.Problem)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 2, res.Items[0].RefundQty)
	assert.True(t, res.RefundTotal.Equal(decimal.NewFromInt(100)))
}

func TestAmountRefundClampsToTotal(t *testing.T) {
	_, sale := seedSale(t)

	res := Preview(sale, Request{Mode: domain.RefundModeAmount, Amount: "500"})
	assert.True(t, res.Valid)
	assert.True(t, res.RefundTotal.Equal(decimal.NewFromInt(110)))
	assert.True(t, res.RemainingBalance.IsZero())

	res = Preview(sale, Request{Mode: domain.RefundModeAmount, Amount: "-5"})
	assert.False(t, res.Valid)

	res = Preview(sale, Request{Mode: domain.RefundModeAmount, Amount: "not a number"})
	assert.False(t, res.Valid)
}

func TestAmountRefundsAreBoundedByRemainingBalance(t *testing.T) {
	repo, _ := seedSale(t)
	p := NewProcessor(repo, nil)
	ctx := context.Background()

	first, _, err := p.Process(ctx, Request{TransactionID: 1, Mode: "amount", Amount: "80"})
	require.NoError(t, err)
	assert.True(t, first.RemainingBalance.Equal(decimal.NewFromInt(30)))

	_, _, err = p.Process(ctx, Request{TransactionID: 1, Mode: "amount", Amount: "40"})
	require.ErrorIs(t, err, ErrInvalidRefund)

	second, updated, err := p.Process(ctx, Request{TransactionID: 1, Mode: "amount", Amount: "30"})
	require.NoError(t, err)
	assert.True(t, second.RemainingBalance.IsZero())
	assert.True(t, updated.RefundedTotal().Equal(decimal.NewFromInt(110)))
	assert.Equal(t, 3, onHand(t, repo))
}

func TestPreviewRejectsUnknownMode(t *testing.T) {
	_, sale := seedSale(t)

	res := Preview(sale, Request{Mode: "store-credit", Amount: "10"})
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Problem)
}

func TestProcessUnknownTransaction(t *testing.T) {
	repo, _ := seedSale(t)
	p := NewProcessor(repo, nil)

	_, _, err := p.Process(context.Background(), Request{TransactionID: 9, Mode: "amount", Amount: "1"})
	require.ErrorIs(t, err, store.ErrNotFound)
}
