package payment

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

// Tolerance absorbs rounding when comparing what was paid with the total.
var Tolerance = decimal.RequireFromString("0.01")

var (
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrEntryNotFound       = fmt.Errorf("payment entry %w", store.ErrNotFound)
	ErrInvalidEntry        = fmt.Errorf("%w: payment entry", store.ErrInvalidInput)
)

const (
	FieldMethod = "method"
	FieldAmount = "amount"
)

type InsufficientPaymentError struct {
	Remaining decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: %s remaining", e.Remaining.StringFixed(2))
}

func (e *InsufficientPaymentError) Unwrap() error {
	return ErrInsufficientPayment
}

// Settlement is what a completed payment dialog hands to the ledger.
type Settlement struct {
	Paid    decimal.Decimal
	Change  decimal.Decimal
	Methods []string
}

// Reconciliation tracks split payments against a running total. It always
// holds at least one entry.
type Reconciliation struct {
	total   decimal.Decimal
	entries []domain.PaymentEntry
}

func New(total decimal.Decimal) *Reconciliation {
	r := &Reconciliation{total: total}
	r.AddEntry()
	return r
}

// Restore rebuilds the entries recorded as method strings on a past sale.
func Restore(total decimal.Decimal, methods []string) *Reconciliation {
	r := New(total)
	for _, raw := range methods {
		method, amount, ok := ParseMethodString(raw)
		if !ok || !IsSupportedMethod(method) {
			continue
		}
		entry := r.entries[len(r.entries)-1]
		if !entry.Amount.IsZero() {
			entry = r.AddEntry()
		}
		idx := r.indexOf(entry.ID)
		r.entries[idx].Method = method
		r.entries[idx].Amount = amount
	}
	return r
}

func (r *Reconciliation) SetTotal(total decimal.Decimal) {
	r.total = total
}

func (r *Reconciliation) Total() decimal.Decimal {
	return r.total
}

func (r *Reconciliation) Entries() []domain.PaymentEntry {
	return slices.Clone(r.entries)
}

// AddEntry appends a blank cash entry.
func (r *Reconciliation) AddEntry() domain.PaymentEntry {
	entry := domain.PaymentEntry{ID: xid.New("pay"), Method: domain.PaymentCash, Amount: decimal.Zero}
	r.entries = append(r.entries, entry)
	return entry
}

// UpdateEntry sets field ("method" or "amount") of entry id. Amounts that do
// not parse, or are negative, become zero.
func (r *Reconciliation) UpdateEntry(id string, field string, value string) error {
	idx := r.indexOf(id)
	if idx < 0 {
		return ErrEntryNotFound
	}

	switch field {
	case FieldMethod:
		method := strings.ToLower(strings.TrimSpace(value))
		if !IsSupportedMethod(method) {
			return fmt.Errorf("%w: unsupported method %q", ErrInvalidEntry, value)
		}
		r.entries[idx].Method = method
	case FieldAmount:
		r.entries[idx].Amount = domain.FlexNumber(value).Decimal().Round(2)
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidEntry, field)
	}
	return nil
}

// RemoveEntry drops entry id unless it is the last one left.
func (r *Reconciliation) RemoveEntry(id string) error {
	idx := r.indexOf(id)
	if idx < 0 {
		return ErrEntryNotFound
	}
	if len(r.entries) <= 1 {
		return nil
	}
	r.entries = slices.Delete(r.entries, idx, idx+1)
	return nil
}

// FillRemaining puts the outstanding amount on the first empty entry, or
// adds it to the last entry when none is empty.
func (r *Reconciliation) FillRemaining() {
	remaining := r.Remaining()
	if remaining.IsZero() {
		return
	}
	for i := range r.entries {
		if r.entries[i].Amount.IsZero() {
			r.entries[i].Amount = remaining
			return
		}
	}
	last := len(r.entries) - 1
	r.entries[last].Amount = r.entries[last].Amount.Add(remaining)
}

func (r *Reconciliation) Paid() decimal.Decimal {
	paid := decimal.Zero
	for _, e := range r.entries {
		paid = paid.Add(e.Amount)
	}
	return paid
}

func (r *Reconciliation) Remaining() decimal.Decimal {
	return decimal.Max(r.total.Sub(r.Paid()), decimal.Zero)
}

func (r *Reconciliation) Change() decimal.Decimal {
	return decimal.Max(r.Paid().Sub(r.total), decimal.Zero)
}

func (r *Reconciliation) CanComplete() bool {
	return Covers(r.total, r.Paid())
}

// Complete closes the dialog. It fails with *InsufficientPaymentError while
// more than the tolerance is outstanding.
func (r *Reconciliation) Complete(currencySymbol string) (Settlement, error) {
	if !r.CanComplete() {
		return Settlement{}, &InsufficientPaymentError{Remaining: r.Remaining()}
	}
	return Settlement{
		Paid:    r.Paid(),
		Change:  r.Change(),
		Methods: r.MethodStrings(currencySymbol),
	}, nil
}

// MethodStrings renders non-zero entries as "<method>: <symbol><amount>".
func (r *Reconciliation) MethodStrings(currencySymbol string) []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Amount.IsZero() {
			continue
		}
		out = append(out, FormatMethod(e.Method, e.Amount, currencySymbol))
	}
	return out
}

// Covers reports whether paid settles total within Tolerance.
func Covers(total decimal.Decimal, paid decimal.Decimal) bool {
	return total.Sub(paid).LessThanOrEqual(Tolerance)
}

func FormatMethod(method string, amount decimal.Decimal, currencySymbol string) string {
	if currencySymbol == "" {
		currencySymbol = "$"
	}
	return fmt.Sprintf("%s: %s%s", method, currencySymbol, amount.StringFixed(2))
}

// ParseMethodString splits "cash: $60.00" into its method and amount. Any
// non-digit prefix of the amount is treated as the currency symbol.
func ParseMethodString(s string) (method string, amount decimal.Decimal, ok bool) {
	method, rest, found := strings.Cut(s, ":")
	if !found {
		return "", decimal.Zero, false
	}
	method = strings.TrimSpace(method)
	rest = strings.TrimSpace(rest)
	rest = strings.TrimLeftFunc(rest, func(r rune) bool {
		return (r < '0' || r > '9') && r != '-' && r != '.'
	})
	amount, err := decimal.NewFromString(rest)
	if err != nil || method == "" {
		return "", decimal.Zero, false
	}
	return method, amount, true
}

func IsSupportedMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentOther:
		return true
	default:
		return false
	}
}

func (r *Reconciliation) indexOf(id string) int {
	return slices.IndexFunc(r.entries, func(e domain.PaymentEntry) bool { return e.ID == id })
}
