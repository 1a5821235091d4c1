package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"baydelivery/db"
)

func parseLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

func (h *Handler) GetQuoteHandler(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteId")
	if quoteID == "" {
		http.Error(w, "Missing quoteId", http.StatusBadRequest)
		return
	}

	quote, err := h.Store.GetQuote(r.Context(), quoteID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Quote not found", http.StatusNotFound)
			return
		}
		h.Log.Error("get quote failed", zap.String("quote_id", quoteID), zap.Error(err))
		http.Error(w, "Failed to get quote", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) ListQuotesHandler(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.Store.ListQuotes(r.Context(), parseLimit(r))
	if err != nil {
		h.Log.Error("list quotes failed", zap.Error(err))
		http.Error(w, "Failed to list quotes", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quotes)
}

// SearchQuotesHandler handles GET /api/quotes/search with optional
// service_type, min_total, max_total, after, before and limit parameters.
func (h *Handler) SearchQuotesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.QuoteFilter{
		ServiceType: q.Get("service_type"),
		Limit:       parseLimit(r),
	}

	if v := q.Get("min_total"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "Invalid min_total", http.StatusBadRequest)
			return
		}
		filter.MinTotal = &n
	}
	if v := q.Get("max_total"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "Invalid max_total", http.StatusBadRequest)
			return
		}
		filter.MaxTotal = &n
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid after timestamp, want RFC3339", http.StatusBadRequest)
			return
		}
		filter.After = &t
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid before timestamp, want RFC3339", http.StatusBadRequest)
			return
		}
		filter.Before = &t
	}

	quotes, err := h.Store.SearchQuotes(r.Context(), filter)
	if err != nil {
		h.Log.Error("search quotes failed", zap.Error(err))
		http.Error(w, "Failed to search quotes", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quotes)
}
