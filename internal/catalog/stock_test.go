package catalog

import (
	"errors"
	"testing"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
)

func TestApplyAdjustmentsNeverGoesNegative(t *testing.T) {
	items := []domain.CatalogItem{{ID: "item-a", Name: "Screen", QuantityOnHand: 2}}

	_, err := ApplyAdjustments(items, []Adjustment{{ItemID: "item-a", Delta: -3}})
	var shortage *ShortageError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected ShortageError, got %v", err)
	}
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if shortage.Available != 2 || shortage.Requested != 3 {
		t.Fatalf("unexpected shortage: %+v", shortage)
	}
	if items[0].QuantityOnHand != 2 {
		t.Fatalf("input was mutated: %+v", items[0])
	}
}

func TestApplyAdjustmentsRestockBeforeDecrement(t *testing.T) {
	items := []domain.CatalogItem{{ID: "item-a", QuantityOnHand: 1}}

	out, err := ApplyAdjustments(items, []Adjustment{
		{ItemID: "item-a", Delta: 3},
		{ItemID: "item-a", Delta: -4},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].QuantityOnHand != 0 {
		t.Fatalf("expected 0 on hand, got %d", out[0].QuantityOnHand)
	}
}

func TestApplyAdjustmentsUnknownItems(t *testing.T) {
	items := []domain.CatalogItem{{ID: "item-a", QuantityOnHand: 1}}

	out, err := ApplyAdjustments(items, []Adjustment{{ItemID: "item-gone", Delta: 2}})
	if err != nil {
		t.Fatalf("restock of removed item should be dropped, got %v", err)
	}
	if len(out) != 1 || out[0].QuantityOnHand != 1 {
		t.Fatalf("unexpected items: %+v", out)
	}

	if _, err := ApplyAdjustments(items, []Adjustment{{ItemID: "item-gone", Delta: -1}}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumptionAggregatesCatalogLines(t *testing.T) {
	lines := []domain.CartLine{
		{ID: "item-a", CatalogItemID: "item-a", Quantity: 2},
		{ID: "custom-1", Name: "Labour", Quantity: 1, IsCustom: true},
		{ID: "item-b", CatalogItemID: "item-b", Quantity: 1},
		{ID: "item-a-2", CatalogItemID: "item-a", Quantity: 3},
	}

	got := Consumption(lines, -1)
	want := []Adjustment{{ItemID: "item-a", Delta: -5}, {ItemID: "item-b", Delta: -1}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
