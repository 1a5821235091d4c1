package handlers

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"baydelivery/db"
)

const maxPhotoBytes = 15 << 20

// UploadAttachmentHandler handles POST /api/attachments: a multipart form with
// a "file" part plus owner_id and kind fields. The photo body goes to the
// vault; only the metadata row lands in the database.
func (h *Handler) UploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	if h.Vault == nil {
		http.Error(w, "Photo storage is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	ownerID := r.FormValue("owner_id")
	kind := r.FormValue("kind")
	if ownerID == "" {
		http.Error(w, "Missing owner_id", http.StatusBadRequest)
		return
	}
	if kind == "" {
		kind = "photo"
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.Vault.UploadPhoto(r.Context(), header.Filename, contentType, data)
	if err != nil {
		h.Log.Error("photo upload failed", zap.String("owner_id", ownerID), zap.Error(err))
		http.Error(w, "Failed to store photo", http.StatusBadGateway)
		return
	}

	attachment := &db.Attachment{
		AttachmentID: uuid.NewString(),
		OwnerID:      ownerID,
		Kind:         kind,
		FileName:     header.Filename,
		MimeType:     contentType,
		SizeBytes:    int64(len(data)),
		StorageURL:   &key,
		CreatedAt:    clockNow(),
	}
	if err := h.Store.CreateAttachment(r.Context(), attachment); err != nil {
		h.Log.Error("create attachment failed", zap.String("owner_id", ownerID), zap.Error(err))
		http.Error(w, "Failed to save attachment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, attachment)
}

func (h *Handler) ListAttachmentsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, "Missing owner_id parameter", http.StatusBadRequest)
		return
	}

	attachments, err := h.Store.ListAttachments(r.Context(), ownerID)
	if err != nil {
		h.Log.Error("list attachments failed", zap.String("owner_id", ownerID), zap.Error(err))
		http.Error(w, "Failed to list attachments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, attachments)
}
