package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/storage"
)

// Uploader stores an attachment and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f storage.File, kind domain.Kind) (string, error)
}

type UploadHandler struct {
	uploader Uploader
	maxSize  int64
}

func NewUploadHandler(uploader Uploader, maxSize int64) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxSize: maxSize}
}

type uploadResponse struct {
	URL  string      `json:"url"`
	Kind domain.Kind `json:"kind"`
	Name string      `json:"name"`
	Size int64       `json:"size"`
}

// Upload accepts a multipart form with a "file" part and a "kind" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "File is too large")
		} else {
			writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form")
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind, err := domain.ParseKind(r.FormValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "file is required")
		return
	}
	defer part.Close()

	f := storage.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        part,
	}
	if err := storage.Validate(f, kind, h.maxSize); err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "File is too large")
		default:
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_FILE", err.Error())
		}
		return
	}

	url, err := h.uploader.Upload(r.Context(), f, kind)
	if err != nil {
		writeInternal(w, "upload", err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{URL: url, Kind: kind, Name: f.Name, Size: f.Size})
}
