package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"repairdesk/backend/internal/ledger"
	"repairdesk/backend/internal/receipt"
	"repairdesk/backend/internal/refund"
	"repairdesk/backend/internal/store"
)

func parseFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"), false)
	if err != nil {
		return ledger.Filter{}, err
	}
	to, err := parseTime(q.Get("to"), true)
	if err != nil {
		return ledger.Filter{}, err
	}
	return ledger.Filter{From: from, To: to, CustomerID: strings.TrimSpace(q.Get("customerId"))}, nil
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	txs, err := a.service.ListTransactions(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// handleSummary defaults to the current UTC day.
func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if filter.From.IsZero() && filter.To.IsZero() {
		y, m, d := a.now().Date()
		filter.From = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		filter.To = filter.From.AddDate(0, 0, 1)
	}
	summary, err := a.service.Summary(r.Context(), filter.From, filter.To)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (a *API) handleTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		tx, err := a.service.GetTransaction(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
	case http.MethodDelete:
		tx, err := a.service.DeleteTransaction(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.Receipt(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeReceipt(w, r, rec)
}

// writeReceipt honours ?format=text|html|escpos and falls back to JSON.
func writeReceipt(w http.ResponseWriter, r *http.Request, rec receipt.Receipt) {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{"receipt": rec})
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rec.Text))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rec.HTML))
	case "escpos":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(rec.ESCPOS)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rec.ESCPOS)
	default:
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: unknown receipt format", store.ErrInvalidInput))
	}
}

func (a *API) decodeRefund(w http.ResponseWriter, r *http.Request) (refund.Request, bool) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return refund.Request{}, false
	}
	var req refund.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return refund.Request{}, false
	}
	req.TransactionID = id
	return req, true
}

func (a *API) handleRefundPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	req, ok := a.decodeRefund(w, r)
	if !ok {
		return
	}
	preview, err := a.service.PreviewRefund(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": preview})
}

func (a *API) handleRefunds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	req, ok := a.decodeRefund(w, r)
	if !ok {
		return
	}
	record, err := a.service.Refund(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"refund": record})
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	list, err := a.service.ListDrafts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": list})
}

func (a *API) handleDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, r)
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := a.service.DeleteDraft(r.Context(), r.PathValue("id"), confirmed); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	var buf bytes.Buffer
	if err := a.service.ExportTransactions(r.Context(), &buf, filter); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeCSV(w, "transactions.csv", buf.Bytes())
}

func (a *API) handleExportCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	var buf bytes.Buffer
	if err := a.service.ExportCatalog(r.Context(), &buf); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeCSV(w, "catalog.csv", buf.Bytes())
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
