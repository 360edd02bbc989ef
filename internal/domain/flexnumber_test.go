package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexNumberAcceptsNumbersAndStrings(t *testing.T) {
	var draft ItemDraft
	err := json.Unmarshal([]byte(`{"name":"Screen","price":"49.90","quantityOnHand":3,"lowStockThreshold":null}`), &draft)
	require.NoError(t, err)

	assert.True(t, draft.Price.Decimal().Equal(decimal.RequireFromString("49.90")))
	assert.Equal(t, 3, draft.QuantityOnHand.Int())
	assert.Equal(t, 0, draft.LowStockThreshold.Int())
}

func TestFlexNumberInvalidInputIsZero(t *testing.T) {
	cases := []FlexNumber{"", "abc", "-4", "  ", "1e"}
	for _, n := range cases {
		assert.True(t, n.Decimal().IsZero(), "decimal of %q", n)
		assert.Equal(t, 0, n.Int(), "int of %q", n)
	}
}

func TestFlexNumberIntTruncatesDecimals(t *testing.T) {
	assert.Equal(t, 2, FlexNumber("2.7").Int())
}

func TestMoneyMarshalsAsNumber(t *testing.T) {
	payload, err := json.Marshal(Totals{
		Subtotal: decimal.NewFromInt(100),
		Tax:      decimal.NewFromInt(10),
		Total:    decimal.NewFromInt(110),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"subtotal":100,"tax":10,"total":110}`, string(payload))
}

func TestRefundedTotalSumsRecords(t *testing.T) {
	tx := Transaction{Refunds: []RefundRecord{
		{RefundTotal: decimal.NewFromInt(50)},
		{RefundTotal: decimal.RequireFromString("12.50")},
	}}
	assert.Equal(t, "62.5", tx.RefundedTotal().String())
}

func TestFlexNumberIntClampsOverflow(t *testing.T) {
	cases := []FlexNumber{"18446744073709551615", "9223372036854775808", "99999999999", "1e15"}
	for _, n := range cases {
		assert.Equal(t, MaxFlexInt, n.Int(), "int of %q", n)
	}
}

func TestFlexNumberRejectsExtremeMagnitudes(t *testing.T) {
	cases := []FlexNumber{"1e50000000", "1e-50000000", "1000000000001", "0.0000000000000000001"}
	for _, n := range cases {
		d := n.Decimal()
		assert.True(t, d.IsZero(), "decimal of %q", n)
		assert.True(t, d.Round(2).IsZero())
	}
	assert.True(t, FlexNumber("1e12").Decimal().Equal(MaxFlexAmount))
}
