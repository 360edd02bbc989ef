package httpapi

import (
	"net/http"

	"repairdesk/backend/internal/domain"
)

type vatRatesRequest struct {
	Rates []domain.VATRate `json:"rates"`
}

func (a *API) handleVATRates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rates, err := a.service.VATRates(r.Context())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rates": rates})
	case http.MethodPut:
		var req vatRatesRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		rates, err := a.service.SaveVATRates(r.Context(), req.Rates)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rates": rates})
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleReceiptTemplate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tmpl, err := a.service.ReceiptTemplate(r.Context())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"template": tmpl})
	case http.MethodPut:
		var req domain.ReceiptTemplate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		tmpl, err := a.service.SaveReceiptTemplate(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"template": tmpl})
	default:
		writeMethodNotAllowed(w, r)
	}
}
