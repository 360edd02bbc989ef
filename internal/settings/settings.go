package settings

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
)

var ErrInvalidSettings = fmt.Errorf("%w: settings", store.ErrInvalidInput)

// Defaults apply until the shop saves its own values.
type Defaults struct {
	VATRates        []domain.VATRate
	ReceiptTemplate domain.ReceiptTemplate
}

type Store struct {
	repo     store.Repository
	defaults Defaults
}

func New(repo store.Repository, defaults Defaults) *Store {
	if len(defaults.VATRates) == 0 {
		defaults.VATRates = []domain.VATRate{{Name: "Zero", Rate: decimal.Zero, Default: true}}
	}
	if defaults.ReceiptTemplate.ShopName == "" {
		defaults.ReceiptTemplate.ShopName = "Repair Desk"
	}
	if defaults.ReceiptTemplate.CurrencySymbol == "" {
		defaults.ReceiptTemplate.CurrencySymbol = "$"
	}
	return &Store{repo: repo, defaults: defaults}
}

func (s *Store) VATRates(ctx context.Context) ([]domain.VATRate, error) {
	rates, err := s.repo.LoadVATRates(ctx)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return slices.Clone(s.defaults.VATRates), nil
	}
	return rates, nil
}

// DefaultVATRate is the rate flagged default, or the first one.
func (s *Store) DefaultVATRate(ctx context.Context) (decimal.Decimal, error) {
	rates, err := s.VATRates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, r := range rates {
		if r.Default {
			return r.Rate, nil
		}
	}
	return rates[0].Rate, nil
}

// SaveVATRates replaces the rate table. Names must be unique, rates lie in
// [0, 1] and at most one rate is the default; with none flagged the first
// becomes the default.
func (s *Store) SaveVATRates(ctx context.Context, rates []domain.VATRate) ([]domain.VATRate, error) {
	normalized, err := NormalizeVATRates(rates)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveVATRates(ctx, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

func NormalizeVATRates(rates []domain.VATRate) ([]domain.VATRate, error) {
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: at least one VAT rate is required", ErrInvalidSettings)
	}

	out := make([]domain.VATRate, 0, len(rates))
	seen := make(map[string]struct{}, len(rates))
	defaults := 0
	for _, r := range rates {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("%w: VAT rate name is required", ErrInvalidSettings)
		}
		key := strings.ToLower(r.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate VAT rate %q", ErrInvalidSettings, r.Name)
		}
		seen[key] = struct{}{}
		if r.Rate.IsNegative() || r.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("%w: VAT rate %q must be between 0 and 1", ErrInvalidSettings, r.Name)
		}
		if r.Default {
			defaults++
		}
		out = append(out, r)
	}
	if defaults > 1 {
		return nil, fmt.Errorf("%w: only one VAT rate can be the default", ErrInvalidSettings)
	}
	if defaults == 0 {
		out[0].Default = true
	}
	return out, nil
}

func (s *Store) ReceiptTemplate(ctx context.Context) (domain.ReceiptTemplate, error) {
	tmpl, err := s.repo.LoadReceiptTemplate(ctx)
	if err != nil {
		return domain.ReceiptTemplate{}, err
	}
	if tmpl == nil {
		return s.defaults.ReceiptTemplate, nil
	}
	return *tmpl, nil
}

func (s *Store) SaveReceiptTemplate(ctx context.Context, tmpl domain.ReceiptTemplate) (domain.ReceiptTemplate, error) {
	tmpl.ShopName = strings.TrimSpace(tmpl.ShopName)
	if tmpl.ShopName == "" {
		return domain.ReceiptTemplate{}, fmt.Errorf("%w: shop name is required", ErrInvalidSettings)
	}
	tmpl.CurrencySymbol = strings.TrimSpace(tmpl.CurrencySymbol)
	if tmpl.CurrencySymbol == "" {
		tmpl.CurrencySymbol = s.defaults.ReceiptTemplate.CurrencySymbol
	}
	if err := s.repo.SaveReceiptTemplate(ctx, tmpl); err != nil {
		return domain.ReceiptTemplate{}, err
	}
	return tmpl, nil
}
