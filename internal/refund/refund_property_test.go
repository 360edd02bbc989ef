package refund

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
)

func TestRefundClampProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("item refund quantities stay within what was sold", prop.ForAll(
		func(soldA int, soldB int, reqA int, reqB int, priceCents int64) bool {
			price := decimal.New(priceCents, -2)
			lines := []domain.CartLine{
				{ID: "a", CatalogItemID: "a", UnitPrice: price, Quantity: soldA},
				{ID: "b", CatalogItemID: "b", UnitPrice: price, Quantity: soldB},
			}
			subtotal := price.Mul(decimal.NewFromInt(int64(soldA + soldB)))
			tx := domain.Transaction{ID: 1, Items: lines, Subtotal: subtotal, Total: subtotal}

			res := Preview(tx, Request{Mode: domain.RefundModeItems, Items: []domain.RefundItem{
				{ID: "a", RefundQty: reqA},
				{ID: "b", RefundQty: reqB},
			}})

			sold := map[string]int{"a": soldA, "b": soldB}
			units := 0
			for _, item := range res.Items {
				if item.RefundQty < 0 || item.RefundQty > sold[item.ID] {
					return false
				}
				units += item.RefundQty
			}
			if !res.RefundTotal.Equal(price.Mul(decimal.NewFromInt(int64(units)))) {
				return false
			}
			wantValid := res.RefundTotal.IsPositive() && res.RefundTotal.LessThanOrEqual(tx.Total)
			return res.Valid == wantValid
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
		gen.IntRange(-3, 10),
		gen.IntRange(-3, 10),
		gen.Int64Range(0, 20000),
	))

	properties.Property("amount refunds clamp into [0, total]", prop.ForAll(
		func(totalCents int64, amountCents int64) bool {
			total := decimal.New(totalCents, -2)
			tx := domain.Transaction{ID: 1, Total: total}

			res := Preview(tx, Request{Mode: domain.RefundModeAmount, Amount: domain.FlexFromDecimal(decimal.New(amountCents, -2))})

			if res.RefundTotal.IsNegative() || res.RefundTotal.GreaterThan(total) {
				return false
			}
			return res.Valid == res.RefundTotal.IsPositive()
		},
		gen.Int64Range(0, 100000),
		gen.Int64Range(-5000, 200000),
	))

	properties.TestingRun(t)
}
