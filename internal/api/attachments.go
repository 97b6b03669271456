package api

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/ingest"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadAttachment handles POST /api/attachments (multipart/form-data, field "file").
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	name, err := h.d.Vault.SaveAttachment(header.Filename, data)
	if err != nil {
		writeError(w, h.d.Logger, "save attachment", err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Filename: name,
		Size:     len(data),
		URL:      "/api/attachments/" + name,
	})
}

// ServeAttachment handles GET /api/attachments/{name}.
func (h *Handler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.d.Vault.ReadAttachment(name)
	if err != nil {
		writeError(w, h.d.Logger, "read attachment", err)
		return
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = ingest.NormalizeMIME("", data)
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
