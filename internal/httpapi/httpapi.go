package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"repairdesk/backend/internal/cart"
	"repairdesk/backend/internal/drafts"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/payment"
	"repairdesk/backend/internal/refund"
	"repairdesk/backend/internal/service"
	"repairdesk/backend/internal/store"
)

type API struct {
	service       *service.Service
	log           zerolog.Logger
	allowedOrigin string
	limiter       *RateLimiter
	now           func() time.Time
}

type Options struct {
	AllowedOrigin string
	Logger        zerolog.Logger
	// Limiter is optional; a nil limiter lets every request through.
	Limiter *RateLimiter
}

func New(svc *service.Service, opts Options) *API {
	return &API{
		service:       svc,
		log:           opts.Logger,
		allowedOrigin: opts.AllowedOrigin,
		limiter:       opts.Limiter,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/catalog", a.handleCatalog)
	mux.HandleFunc("/api/v1/catalog/low-stock", a.handleLowStock)
	mux.HandleFunc("/api/v1/catalog/{id}", a.handleCatalogItem)

	mux.HandleFunc("/api/v1/tills/{terminal}", a.handleTill)
	mux.HandleFunc("/api/v1/tills/{terminal}/items", a.handleTillItems)
	mux.HandleFunc("/api/v1/tills/{terminal}/custom-items", a.handleTillCustomItems)
	mux.HandleFunc("/api/v1/tills/{terminal}/items/{lineID}", a.handleTillLine)
	mux.HandleFunc("/api/v1/tills/{terminal}/clear", a.handleTillClear)
	mux.HandleFunc("/api/v1/tills/{terminal}/customer", a.handleTillCustomer)
	mux.HandleFunc("/api/v1/tills/{terminal}/tax-rate", a.handleTillTaxRate)
	mux.HandleFunc("/api/v1/tills/{terminal}/payments", a.handleTillPayments)
	mux.HandleFunc("/api/v1/tills/{terminal}/payments/fill", a.handleTillFillPayment)
	mux.HandleFunc("/api/v1/tills/{terminal}/payments/{id}", a.handleTillPayment)
	mux.HandleFunc("/api/v1/tills/{terminal}/checkout", a.handleTillCheckout)
	mux.HandleFunc("/api/v1/tills/{terminal}/edit/{txID}", a.handleTillEdit)
	mux.HandleFunc("/api/v1/tills/{terminal}/drafts", a.handleTillSaveDraft)
	mux.HandleFunc("/api/v1/tills/{terminal}/drafts/{id}/load", a.handleTillLoadDraft)
	mux.HandleFunc("/api/v1/tills/{terminal}/quote", a.handleTillQuote)

	mux.HandleFunc("/api/v1/transactions", a.handleTransactions)
	mux.HandleFunc("/api/v1/transactions/summary", a.handleSummary)
	mux.HandleFunc("/api/v1/transactions/{id}", a.handleTransaction)
	mux.HandleFunc("/api/v1/transactions/{id}/receipt", a.handleReceipt)
	mux.HandleFunc("/api/v1/transactions/{id}/refund-preview", a.handleRefundPreview)
	mux.HandleFunc("/api/v1/transactions/{id}/refunds", a.handleRefunds)

	mux.HandleFunc("/api/v1/drafts", a.handleDrafts)
	mux.HandleFunc("/api/v1/drafts/{id}", a.handleDraft)

	mux.HandleFunc("/api/v1/settings/vat-rates", a.handleVATRates)
	mux.HandleFunc("/api/v1/settings/receipt-template", a.handleReceiptTemplate)

	mux.HandleFunc("/api/v1/export/transactions.csv", a.handleExportTransactions)
	mux.HandleFunc("/api/v1/export/catalog.csv", a.handleExportCatalog)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": a.now().Format(time.RFC3339),
	})
}

// statusFor maps domain errors onto HTTP status codes. Anything unknown is a
// server fault.
func statusFor(err error) int {
	var stockErr *cart.StockError
	switch {
	case errors.As(err, &stockErr),
		errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, payment.ErrInsufficientPayment),
		errors.Is(err, refund.ErrInvalidRefund):
		return http.StatusUnprocessableEntity
	case errors.Is(err, drafts.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", store.ErrInvalidInput, name)
	}
	return id, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an exclusive upper bound covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", store.ErrInvalidInput, raw)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(err), err)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// 5xx responses never echo internal details back to the client.
	msg := err.Error()
	if status >= 500 {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("internal error")
		msg = "internal server error"
	}
	body := map[string]any{"error": msg}

	var short *payment.InsufficientPaymentError
	if errors.As(err, &short) {
		body["remaining"] = short.Remaining
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
