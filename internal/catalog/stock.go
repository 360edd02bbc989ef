package catalog

import (
	"fmt"
	"slices"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
)

// Adjustment changes the on-hand quantity of one item. Negative deltas sell
// stock, positive deltas restock it.
type Adjustment struct {
	ItemID string
	Delta  int
}

type ShortageError struct {
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *ShortageError) Unwrap() error {
	return store.ErrInsufficientStock
}

// ApplyAdjustments returns a copy of items with adjustments applied.
// Decrements of unknown items fail with store.ErrNotFound; restocks of items
// removed from the catalog are dropped. No quantity ever goes negative.
func ApplyAdjustments(items []domain.CatalogItem, adjustments []Adjustment) ([]domain.CatalogItem, error) {
	out := slices.Clone(items)
	for _, adj := range adjustments {
		if adj.Delta == 0 {
			continue
		}
		idx := indexOf(out, adj.ItemID)
		if idx < 0 {
			if adj.Delta < 0 {
				return nil, fmt.Errorf("catalog item %s: %w", adj.ItemID, store.ErrNotFound)
			}
			continue
		}
		next := out[idx].QuantityOnHand + adj.Delta
		if next < 0 {
			return nil, &ShortageError{
				ItemID:    out[idx].ID,
				Name:      out[idx].Name,
				Requested: -adj.Delta,
				Available: out[idx].QuantityOnHand,
			}
		}
		out[idx].QuantityOnHand = next
	}
	return out, nil
}

// Consumption turns catalog-backed lines into stock adjustments of sign
// times their quantity, one adjustment per item.
func Consumption(lines []domain.CartLine, sign int) []Adjustment {
	totals := make(map[string]int)
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.IsCustom || line.CatalogItemID == "" || line.Quantity <= 0 {
			continue
		}
		if _, seen := totals[line.CatalogItemID]; !seen {
			order = append(order, line.CatalogItemID)
		}
		totals[line.CatalogItemID] += line.Quantity
	}

	adjustments := make([]Adjustment, 0, len(order))
	for _, id := range order {
		adjustments = append(adjustments, Adjustment{ItemID: id, Delta: sign * totals[id]})
	}
	return adjustments
}
