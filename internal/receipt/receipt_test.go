package receipt

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
)

func sampleTransaction() domain.Transaction {
	return domain.Transaction{
		ID:        7,
		ReceiptID: "REC-0007",
		Date:      time.Date(2026, 4, 12, 14, 30, 0, 0, time.UTC),
		Items: []domain.CartLine{
			{ID: "item-screen", CatalogItemID: "item-screen", Name: "OLED screen", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
			{ID: "custom-1", Name: "<b>Fitting</b>", UnitPrice: decimal.NewFromInt(0), Quantity: 1, WarrantyMonths: 3, IsCustom: true},
		},
		Subtotal:       decimal.NewFromInt(100),
		TaxRate:        decimal.RequireFromString("0.10"),
		Tax:            decimal.NewFromInt(10),
		Total:          decimal.NewFromInt(110),
		Change:         decimal.NewFromInt(10),
		PaymentMethods: []string{"cash: $120.00"},
		Refunds: []domain.RefundRecord{
			{RefundTotal: decimal.NewFromInt(50), Date: time.Date(2026, 4, 13, 9, 0, 0, 0, time.UTC)},
		},
	}
}

func TestTransactionReceipt(t *testing.T) {
	r := NewRenderer(domain.ReceiptTemplate{ShopName: "Fix-It Corner", FooterLines: []string{"Thanks!"}, CurrencySymbol: "$"})

	rec, err := r.Transaction(sampleTransaction())
	require.NoError(t, err)

	assert.Equal(t, KindReceipt, rec.Kind)
	assert.Equal(t, "REC-0007", rec.ReceiptID)
	assert.Contains(t, rec.Text, "Receipt REC-0007")
	assert.Contains(t, rec.Text, "OLED screen x2")
	assert.Contains(t, rec.Text, "Warranty: 3 months")
	assert.Contains(t, rec.Text, "Tax 10%")
	assert.Contains(t, rec.Text, "Paid cash: $120.00")
	assert.Contains(t, rec.Text, "$110.00")
	assert.True(t, rec.Balance.Equal(decimal.NewFromInt(60)))
	assert.Contains(t, rec.Text, "$60.00")
	assert.True(t, strings.HasSuffix(rec.Text, "Thanks!"))

	for _, line := range strings.Split(rec.Text, "\n") {
		if strings.Contains(line, "Total") {
			assert.Len(t, line, width)
		}
	}
}

func TestReceiptHTMLEscapesNames(t *testing.T) {
	rec, err := NewRenderer(domain.ReceiptTemplate{}).Transaction(sampleTransaction())
	require.NoError(t, err)

	assert.Contains(t, rec.HTML, "&lt;b&gt;Fitting&lt;/b&gt;")
	assert.NotContains(t, rec.HTML, "<b>Fitting</b>")
	assert.Contains(t, rec.HTML, "Repair Desk")
}

func TestReceiptESCPOSFraming(t *testing.T) {
	rec, err := NewRenderer(domain.ReceiptTemplate{}).Transaction(sampleTransaction())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(rec.ESCPOS, []byte{0x1b, 0x40}))
	assert.True(t, bytes.HasSuffix(rec.ESCPOS, []byte{0x1d, 0x56, 0x41, 0x10}))
	assert.Contains(t, string(rec.ESCPOS), "OLED screen x2\n")
}

func TestQuoteComputesTotalsFromCart(t *testing.T) {
	lines := []domain.CartLine{
		{ID: "item-screen", CatalogItemID: "item-screen", Name: "OLED screen", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
	}
	r := NewRenderer(domain.ReceiptTemplate{CurrencySymbol: "€"})

	rec, err := r.Quote(lines, decimal.RequireFromString("0.10"), "cust-3", time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, KindQuote, rec.Kind)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(110)))
	assert.Contains(t, rec.Text, "QUOTE")
	assert.Contains(t, rec.Text, "Customer: cust-3")
	assert.Contains(t, rec.Text, "€110.00")
	assert.NotContains(t, rec.Text, "Change")
}
