package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"baydelivery/db"
)

const maxSnapshotBytes = 64 << 20

// ExportBackupHandler handles GET /api/backup/export: the full database as one
// snapshot document.
func (h *Handler) ExportBackupHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.ExportAll(r.Context())
	if err != nil {
		h.Log.Error("export failed", zap.Error(err))
		http.Error(w, "Failed to export backup", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="bay_delivery_backup.json"`)
	writeJSON(w, http.StatusOK, snap)
}

// ImportBackupHandler handles POST /api/backup/import: destructive restore
// from a snapshot. All-or-nothing; the response reports per-table row counts.
func (h *Handler) ImportBackupHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSnapshotBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var snap db.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		http.Error(w, "Invalid snapshot JSON", http.StatusBadRequest)
		return
	}

	counts, err := h.Store.ImportAll(r.Context(), &snap)
	if err != nil {
		h.Log.Error("import failed", zap.Error(err))
		http.Error(w, "Failed to import backup: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restored": counts,
	})
}

// UploadBackupHandler handles POST /api/backup/upload: export, push the
// snapshot to the vault, then prune old snapshots past the retention count.
func (h *Handler) UploadBackupHandler(w http.ResponseWriter, r *http.Request) {
	if h.Vault == nil {
		http.Error(w, "Backup storage is not configured", http.StatusServiceUnavailable)
		return
	}

	snap, err := h.Store.ExportAll(r.Context())
	if err != nil {
		h.Log.Error("export failed", zap.Error(err))
		http.Error(w, "Failed to export backup", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		http.Error(w, "Failed to export backup", http.StatusInternalServerError)
		return
	}

	key, err := h.Vault.UploadBackup(r.Context(), data)
	if err != nil {
		h.Log.Error("backup upload failed", zap.Error(err))
		http.Error(w, "Failed to upload backup", http.StatusBadGateway)
		return
	}

	pruned, err := h.Vault.PruneBackups(r.Context())
	if err != nil {
		// The snapshot is already safe; report the key and log the prune
		// failure instead of failing the request.
		h.Log.Warn("backup prune failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":    key,
		"pruned": pruned,
	})
}
