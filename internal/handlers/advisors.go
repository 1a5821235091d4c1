package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"baydelivery/internal/geo"
	"baydelivery/internal/vision"
)

// DistanceHandler handles GET /api/distance?origin=..&destination=.. and
// returns driving distance in kilometers. Advisory only.
func (h *Handler) DistanceHandler(w http.ResponseWriter, r *http.Request) {
	if h.Geo == nil {
		http.Error(w, "Distance lookup is not configured", http.StatusServiceUnavailable)
		return
	}

	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")
	if origin == "" || destination == "" {
		http.Error(w, "Missing origin or destination", http.StatusBadRequest)
		return
	}

	km, err := h.Geo.ResolveKM(r.Context(), origin, destination)
	if err != nil {
		if errors.Is(err, geo.ErrUpstream) {
			h.Log.Warn("distance lookup failed", zap.Error(err))
			http.Error(w, "Distance provider unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"distance_km": km})
}

type estimateRequest struct {
	Description string   `json:"description"`
	ImageURLs   []string `json:"image_urls"`
}

// EstimateFromPhotosHandler handles POST /api/estimate: a model-generated,
// clamped pre-fill for the quote form. Never feeds pricing directly.
func (h *Handler) EstimateFromPhotosHandler(w http.ResponseWriter, r *http.Request) {
	if h.Vision == nil {
		http.Error(w, "Image estimation is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req estimateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(req.ImageURLs) == 0 {
		http.Error(w, "image_urls is required", http.StatusBadRequest)
		return
	}

	suggestion, err := h.Vision.EstimateFromImages(r.Context(), req.Description, req.ImageURLs)
	if err != nil {
		if errors.Is(err, vision.ErrUpstream) {
			h.Log.Warn("image estimation failed", zap.Error(err))
			http.Error(w, "Estimation provider unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, suggestion)
}
