package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/store/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(store.NewRepository(memory.New()))
}

func TestAddCoercesNumericInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, domain.ItemDraft{
		Name:              "  Screen protector ",
		Type:              "Accessory",
		Price:             "12.5",
		QuantityOnHand:    "abc",
		LowStockThreshold: "-3",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(item.ID, "item-"))
	assert.Equal(t, "Screen protector", item.Name)
	assert.Equal(t, domain.ItemTypeAccessory, item.Type)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, 0, item.QuantityOnHand)
	assert.Equal(t, 0, item.LowStockThreshold)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, item.ID, all[0].ID)
}

func TestAddDefaultsTypeAndRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, domain.ItemDraft{Name: "Diagnostics", Price: "15"})
	require.NoError(t, err)
	assert.Equal(t, domain.ItemTypeCustom, item.Type)

	_, err = s.Add(ctx, domain.ItemDraft{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = s.Add(ctx, domain.ItemDraft{Name: "Drone", Type: "vehicle"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUpdateMergesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, domain.ItemDraft{Name: "Battery", Type: "part", Price: "59", QuantityOnHand: "8", LowStockThreshold: "2"})
	require.NoError(t, err)

	updated, found, err := s.Update(ctx, domain.ItemDraft{ID: item.ID, QuantityOnHand: "11", Price: "oops"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Battery", updated.Name)
	assert.Equal(t, domain.ItemTypePart, updated.Type)
	assert.Equal(t, 11, updated.QuantityOnHand)
	assert.True(t, updated.Price.IsZero())
	assert.Equal(t, 2, updated.LowStockThreshold)

	got, err := s.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, got.ID)
	assert.Equal(t, updated.Name, got.Name)
	assert.Equal(t, updated.Type, got.Type)
	assert.Equal(t, updated.QuantityOnHand, got.QuantityOnHand)
	assert.Equal(t, updated.LowStockThreshold, got.LowStockThreshold)
	assert.True(t, got.Price.Equal(updated.Price))
}

func TestOversizedQuantityNeverGoesNegative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, domain.ItemDraft{Name: "Cable", Price: "1e50000000", QuantityOnHand: "18446744073709551615"})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxFlexInt, item.QuantityOnHand)
	assert.True(t, item.Price.IsZero())

	updated, found, err := s.Update(ctx, domain.ItemDraft{ID: item.ID, QuantityOnHand: "9223372036854775808"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.MaxFlexInt, updated.QuantityOnHand)
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.Update(context.Background(), domain.ItemDraft{ID: "item-missing", Name: "x"})
	require.NoError(t, err)
	assert.False(t, found)

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, domain.ItemDraft{Name: "Case", Type: "accessory"})
	require.NoError(t, err)

	removed, err := s.Remove(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.GetByID(ctx, item.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListenersSeeEveryMutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var sizes []int
	unsubscribe := s.Subscribe(func(items []domain.CatalogItem) {
		sizes = append(sizes, len(items))
	})

	item, err := s.Add(ctx, domain.ItemDraft{Name: "Cable"})
	require.NoError(t, err)
	_, _, err = s.Update(ctx, domain.ItemDraft{ID: item.ID, Price: "5"})
	require.NoError(t, err)
	_, err = s.Remove(ctx, item.ID)
	require.NoError(t, err)

	unsubscribe()
	_, err = s.Add(ctx, domain.ItemDraft{Name: "Charger"})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 0}, sizes)
}

func TestLowStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, domain.ItemDraft{Name: "Plenty", QuantityOnHand: "10", LowStockThreshold: "2"})
	require.NoError(t, err)
	low, err := s.Add(ctx, domain.ItemDraft{Name: "Scarce", QuantityOnHand: "2", LowStockThreshold: "2"})
	require.NoError(t, err)

	items, err := s.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)
}
