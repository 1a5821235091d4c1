package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"baydelivery/db"
)

func (h *Handler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		http.Error(w, "Missing jobId", http.StatusBadRequest)
		return
	}

	job, err := h.Store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.Log.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context(), r.URL.Query().Get("status"), parseLimit(r))
	if err != nil {
		h.Log.Error("list jobs failed", zap.Error(err))
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

type jobUpdateRequest struct {
	Status         *string  `json:"status"`
	CustomerName   *string  `json:"customer_name"`
	CustomerPhone  *string  `json:"customer_phone"`
	JobAddress     *string  `json:"job_address"`
	JobDescription *string  `json:"job_description"`
	PaidCAD        *float64 `json:"paid_cad"`
	Notes          *string  `json:"notes"`
}

// UpdateJobHandler handles PATCH /api/jobs/{jobId}. Only the fields present in
// the body change; setting paid_cad recomputes owing_cad from the frozen total.
func (h *Handler) UpdateJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		http.Error(w, "Missing jobId", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req jobUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if req.Status != nil && *req.Status == "" {
		http.Error(w, "status must not be empty", http.StatusBadRequest)
		return
	}
	if req.PaidCAD != nil && *req.PaidCAD < 0 {
		http.Error(w, "paid_cad must not be negative", http.StatusBadRequest)
		return
	}

	job, err := h.Store.UpdateJobFields(r.Context(), jobID, db.JobPatch{
		Status:         req.Status,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		JobAddress:     req.JobAddress,
		JobDescription: req.JobDescription,
		PaidCAD:        req.PaidCAD,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.Log.Error("update job failed", zap.String("job_id", jobID), zap.Error(err))
		http.Error(w, "Failed to update job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
