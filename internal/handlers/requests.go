package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"baydelivery/db"
	"baydelivery/internal/patch"
	"baydelivery/internal/workflow"
)

type customerDecisionRequest struct {
	Action              string       `json:"action"`
	Notes               patch.String `json:"notes"`
	RequestedJobDate    patch.String `json:"requested_job_date"`
	RequestedTimeWindow patch.String `json:"requested_time_window"`
}

// CustomerDecisionHandler handles POST /api/quotes/{quoteId}/decision: the
// customer accepts or declines a quote. Repeating a decision, or changing
// one's mind, lands on the same request row.
func (h *Handler) CustomerDecisionHandler(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteId")
	if quoteID == "" {
		http.Error(w, "Missing quoteId", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req customerDecisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	qr, err := h.Flow.RecordCustomerDecision(r.Context(), quoteID, req.Action, workflow.DecisionFields{
		Notes:               req.Notes,
		RequestedJobDate:    req.RequestedJobDate,
		RequestedTimeWindow: req.RequestedTimeWindow,
	})
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrUnknownAction):
			http.Error(w, "action must be 'accept' or 'decline'", http.StatusBadRequest)
		case errors.Is(err, workflow.ErrQuoteNotFound):
			http.Error(w, "Quote not found", http.StatusNotFound)
		default:
			h.Log.Error("customer decision failed", zap.String("quote_id", quoteID), zap.Error(err))
			http.Error(w, "Failed to record decision", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, qr)
}

type adminDecisionRequest struct {
	Action string       `json:"action"`
	Notes  patch.String `json:"notes"`
}

type adminDecisionResponse struct {
	Request *db.QuoteRequest `json:"request"`
	Job     *db.Job          `json:"job,omitempty"`
}

// AdminDecisionHandler handles POST /api/requests/{requestId}/admin-decision.
// Approval also materializes the job; the response carries both.
func (h *Handler) AdminDecisionHandler(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	if requestID == "" {
		http.Error(w, "Missing requestId", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req adminDecisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	qr, job, err := h.Flow.RecordAdminDecision(r.Context(), requestID, req.Action, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrUnknownAction):
			http.Error(w, "action must be 'approve' or 'reject'", http.StatusBadRequest)
		case errors.Is(err, workflow.ErrRequestNotFound):
			http.Error(w, "Quote request not found", http.StatusNotFound)
		default:
			h.Log.Error("admin decision failed", zap.String("request_id", requestID), zap.Error(err))
			http.Error(w, "Failed to record decision", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, adminDecisionResponse{Request: qr, Job: job})
}

func (h *Handler) GetQuoteRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	if requestID == "" {
		http.Error(w, "Missing requestId", http.StatusBadRequest)
		return
	}

	qr, err := h.Store.GetQuoteRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Quote request not found", http.StatusNotFound)
			return
		}
		h.Log.Error("get quote request failed", zap.String("request_id", requestID), zap.Error(err))
		http.Error(w, "Failed to get quote request", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, qr)
}

// GetRequestForQuoteHandler handles GET /api/quotes/{quoteId}/request: the
// workflow record for a quote, if the customer has decided anything yet.
func (h *Handler) GetRequestForQuoteHandler(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteId")
	if quoteID == "" {
		http.Error(w, "Missing quoteId", http.StatusBadRequest)
		return
	}

	qr, err := h.Store.GetQuoteRequestByQuoteID(r.Context(), quoteID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "No request for this quote", http.StatusNotFound)
			return
		}
		h.Log.Error("get request by quote failed", zap.String("quote_id", quoteID), zap.Error(err))
		http.Error(w, "Failed to get quote request", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, qr)
}

func (h *Handler) ListQuoteRequestsHandler(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.ListQuoteRequests(r.Context(), r.URL.Query().Get("status"), parseLimit(r))
	if err != nil {
		h.Log.Error("list quote requests failed", zap.Error(err))
		http.Error(w, "Failed to list quote requests", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}
