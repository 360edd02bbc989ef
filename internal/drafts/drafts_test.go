package drafts

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

func newTestBook(t *testing.T) *Book {
	t.Helper()
	b := NewBook(store.NewRepository(memory.New()))
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return b
}

var sampleLines = []domain.CartLine{
	{ID: "item-screen", CatalogItemID: "item-screen", Name: "OLED screen", UnitPrice: decimal.NewFromInt(149), Quantity: 1},
	{ID: "custom-1", Name: "Fitting", UnitPrice: decimal.NewFromInt(35), Quantity: 1, IsCustom: true},
}

func TestSaveListLoad(t *testing.T) {
	b := newTestBook(t)
	ctx := context.Background()

	first, err := b.Save(ctx, "Mrs Peters iPhone", sampleLines, "cust-1")
	require.NoError(t, err)
	second, err := b.Save(ctx, "  ", sampleLines[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "Draft 2026-05-01 09:02", second.Name)

	drafts, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, second.ID, drafts[0].ID)

	loaded, err := b.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", loaded.CustomerID)
	require.Len(t, loaded.Cart, 2)
	assert.True(t, loaded.Cart[1].IsCustom)

	_, err = b.Load(ctx, "draft-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveRejectsEmptyCart(t *testing.T) {
	b := newTestBook(t)

	_, err := b.Save(context.Background(), "nothing", nil, "")
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	b := newTestBook(t)
	ctx := context.Background()

	draft, err := b.Save(ctx, "Parked", sampleLines, "")
	require.NoError(t, err)

	require.ErrorIs(t, b.Delete(ctx, draft.ID, false), ErrConfirmationRequired)
	drafts, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	require.NoError(t, b.Delete(ctx, draft.ID, true))
	drafts, err = b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	assert.ErrorIs(t, b.Delete(ctx, draft.ID, true), store.ErrNotFound)
}
