package cart

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

var (
	ErrOutOfStock   = errors.New("out of stock")
	ErrLineNotFound = fmt.Errorf("cart line %w", store.ErrNotFound)
	ErrInvalidLine  = fmt.Errorf("%w: cart line", store.ErrInvalidInput)
)

// StockSource reports how many units of a catalog item the cart may hold.
type StockSource interface {
	Available(itemID string) (int, bool)
}

// Stock is a StockSource backed by a snapshot of on-hand quantities.
type Stock map[string]int

func (s Stock) Available(itemID string) (int, bool) {
	qty, ok := s[itemID]
	return qty, ok
}

// StockFromCatalog snapshots the on-hand quantity of every item.
func StockFromCatalog(items []domain.CatalogItem) Stock {
	stock := make(Stock, len(items))
	for _, item := range items {
		stock[item.ID] = item.QuantityOnHand
	}
	return stock
}

type StockError struct {
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("%s is out of stock", e.Name)
	}
	return fmt.Sprintf("only %d of %s in stock, requested %d", e.Available, e.Name, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrOutOfStock
}

// Cart is the ordered list of lines of one open sale. It refuses any
// quantity of a catalog item above what its StockSource reports.
type Cart struct {
	lines []domain.CartLine
	stock StockSource
}

func New(stock StockSource) *Cart {
	return &Cart{stock: stock}
}

// SetStock replaces the stock source used for ceiling checks.
func (c *Cart) SetStock(stock StockSource) {
	c.stock = stock
}

// AddItem adds one unit of item, merging into an existing line for the same
// catalog item.
func (c *Cart) AddItem(item domain.CatalogItem) (domain.CartLine, error) {
	idx := c.indexOf(item.ID)
	requested := 1
	if idx >= 0 {
		requested = c.lines[idx].Quantity + 1
	}

	available := c.available(item.ID, item.QuantityOnHand)
	if requested > available {
		return domain.CartLine{}, &StockError{ItemID: item.ID, Name: item.Name, Requested: requested, Available: available}
	}

	if idx >= 0 {
		c.lines[idx].Quantity = requested
		return c.lines[idx], nil
	}
	line := domain.CartLine{
		ID:            item.ID,
		CatalogItemID: item.ID,
		Name:          item.Name,
		UnitPrice:     item.Price,
		Quantity:      1,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// AddCustom appends a line that is not backed by the catalog, such as labour.
func (c *Cart) AddCustom(name string, unitPrice decimal.Decimal, warrantyMonths int) (domain.CartLine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.CartLine{}, fmt.Errorf("%w: name is required", ErrInvalidLine)
	}
	if unitPrice.IsNegative() {
		return domain.CartLine{}, fmt.Errorf("%w: price must not be negative", ErrInvalidLine)
	}
	if warrantyMonths < 0 {
		warrantyMonths = 0
	}

	line := domain.CartLine{
		ID:             xid.New("custom"),
		Name:           name,
		UnitPrice:      unitPrice.Round(2),
		Quantity:       1,
		WarrantyMonths: warrantyMonths,
		IsCustom:       true,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// UpdateQuantity sets the quantity of line id. Negative quantities clamp to
// zero and zero removes the line.
func (c *Cart) UpdateQuantity(id string, qty int) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return ErrLineNotFound
	}
	if qty < 0 {
		qty = 0
	}
	if qty == 0 {
		c.lines = slices.Delete(c.lines, idx, idx+1)
		return nil
	}

	line := c.lines[idx]
	if !line.IsCustom && line.CatalogItemID != "" {
		available := c.available(line.CatalogItemID, 0)
		if qty > available {
			return &StockError{ItemID: line.CatalogItemID, Name: line.Name, Requested: qty, Available: available}
		}
	}
	c.lines[idx].Quantity = qty
	return nil
}

func (c *Cart) RemoveItem(id string) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.lines = slices.Delete(c.lines, idx, idx+1)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Load replaces the cart contents with lines. Lines without a positive
// quantity are dropped.
func (c *Cart) Load(lines []domain.CartLine) {
	c.lines = make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > 0 {
			c.lines = append(c.lines, line)
		}
	}
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) ComputeTotals(taxRate decimal.Decimal) domain.Totals {
	return ComputeTotals(c.lines, taxRate)
}

// ComputeTotals returns subtotal = Σ unitPrice×qty, tax = subtotal×taxRate
// rounded to cents, and their sum.
func ComputeTotals(lines []domain.CartLine, taxRate decimal.Decimal) domain.Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return domain.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func (c *Cart) indexOf(id string) int {
	return slices.IndexFunc(c.lines, func(line domain.CartLine) bool { return line.ID == id })
}

func (c *Cart) available(itemID string, fallback int) int {
	if c.stock != nil {
		if qty, ok := c.stock.Available(itemID); ok {
			return qty
		}
	}
	return fallback
}
