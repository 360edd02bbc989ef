package settings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/store/memory"
)

func newTestSettings() *Store {
	return New(store.NewRepository(memory.New()), Defaults{
		VATRates: []domain.VATRate{{Name: "Standard", Rate: decimal.RequireFromString("0.20"), Default: true}},
	})
}

func TestDefaultsUntilSaved(t *testing.T) {
	s := newTestSettings()
	ctx := context.Background()

	rate, err := s.DefaultVATRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.2")))

	tmpl, err := s.ReceiptTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Repair Desk", tmpl.ShopName)
	assert.Equal(t, "$", tmpl.CurrencySymbol)
}

func TestSaveVATRates(t *testing.T) {
	s := newTestSettings()
	ctx := context.Background()

	saved, err := s.SaveVATRates(ctx, []domain.VATRate{
		{Name: " Reduced ", Rate: decimal.RequireFromString("0.06")},
		{Name: "Standard", Rate: decimal.RequireFromString("0.21")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reduced", saved[0].Name)
	assert.True(t, saved[0].Default)

	rate, err := s.DefaultVATRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.06")))
}

func TestSaveVATRatesValidation(t *testing.T) {
	s := newTestSettings()
	ctx := context.Background()

	cases := map[string][]domain.VATRate{
		"empty":        nil,
		"blank name":   {{Name: " ", Rate: decimal.Zero}},
		"duplicate":    {{Name: "A", Rate: decimal.Zero}, {Name: "a", Rate: decimal.Zero}},
		"out of range": {{Name: "A", Rate: decimal.RequireFromString("1.5")}},
		"two defaults": {{Name: "A", Default: true}, {Name: "B", Default: true}},
	}
	for name, rates := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.SaveVATRates(ctx, rates)
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}
}

func TestSaveReceiptTemplate(t *testing.T) {
	s := newTestSettings()
	ctx := context.Background()

	_, err := s.SaveReceiptTemplate(ctx, domain.ReceiptTemplate{ShopName: "  "})
	require.ErrorIs(t, err, ErrInvalidSettings)

	saved, err := s.SaveReceiptTemplate(ctx, domain.ReceiptTemplate{ShopName: "Fix-It Corner", FooterLines: []string{"90 day warranty"}})
	require.NoError(t, err)
	assert.Equal(t, "$", saved.CurrencySymbol)

	got, err := s.ReceiptTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}
