package httpapi

import (
	"fmt"
	"net/http"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/payment"
	"repairdesk/backend/internal/store"
)

func (a *API) writeTill(w http.ResponseWriter, r *http.Request, state domain.TillState, err error) {
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"till": state})
}

func (a *API) handleTill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	state, err := a.service.Till(r.Context(), r.PathValue("terminal"))
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.AddItem(r.Context(), r.PathValue("terminal"), req)
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillCustomItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	var req domain.CustomItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.AddCustomItem(r.Context(), r.PathValue("terminal"), req)
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillLine(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")
	lineID := r.PathValue("lineID")

	switch r.Method {
	case http.MethodPatch:
		var req domain.QuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		state, err := a.service.UpdateLineQuantity(r.Context(), terminal, lineID, req.Quantity.Int())
		a.writeTill(w, r, state, err)
	case http.MethodDelete:
		state, err := a.service.RemoveLine(r.Context(), terminal, lineID)
		a.writeTill(w, r, state, err)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleTillClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	state, err := a.service.ClearTill(r.Context(), r.PathValue("terminal"))
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w, r)
		return
	}
	var req domain.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.SetCustomer(r.Context(), r.PathValue("terminal"), req.CustomerID)
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillTaxRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w, r)
		return
	}
	var req domain.TaxRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.SetTaxRate(r.Context(), r.PathValue("terminal"), req)
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	state, err := a.service.AddPayment(r.Context(), r.PathValue("terminal"))
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillFillPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	state, err := a.service.FillRemaining(r.Context(), r.PathValue("terminal"))
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillPayment(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")
	entryID := r.PathValue("id")

	switch r.Method {
	case http.MethodPatch:
		var req domain.PaymentUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if req.Method == nil && req.Amount == nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: method or amount is required", store.ErrInvalidInput))
			return
		}

		var (
			state domain.TillState
			err   error
		)
		if req.Method != nil {
			state, err = a.service.UpdatePayment(r.Context(), terminal, entryID, payment.FieldMethod, *req.Method)
		}
		if err == nil && req.Amount != nil {
			state, err = a.service.UpdatePayment(r.Context(), terminal, entryID, payment.FieldAmount, string(*req.Amount))
		}
		a.writeTill(w, r, state, err)
	case http.MethodDelete:
		state, err := a.service.RemovePayment(r.Context(), terminal, entryID)
		a.writeTill(w, r, state, err)
	default:
		writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleTillCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	resp, err := a.service.Checkout(r.Context(), r.PathValue("terminal"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Edited {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (a *API) handleTillEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	txID, err := pathInt64(r, "txID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.EditTransaction(r.Context(), r.PathValue("terminal"), txID)
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillSaveDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	var req domain.DraftSaveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	draft, err := a.service.SaveDraft(r.Context(), r.PathValue("terminal"), req.Name)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"draft": draft})
}

func (a *API) handleTillLoadDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}
	state, err := a.service.LoadDraft(r.Context(), r.PathValue("terminal"), r.PathValue("id"))
	a.writeTill(w, r, state, err)
}

func (a *API) handleTillQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	quote, err := a.service.Quote(r.Context(), r.PathValue("terminal"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeReceipt(w, r, quote)
}
