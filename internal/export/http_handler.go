package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/leadstream/internal/auth"
	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/middleware"
)

// UploadAuthorizer loads an upload on behalf of a user.
type UploadAuthorizer interface {
	AuthorizeUpload(ctx context.Context, userID, uploadID int64) (domain.Upload, error)
}

// Handler serves upload exports as file downloads.
type Handler struct {
	service *Service
	uploads UploadAuthorizer
}

// NewHTTPHandler wraps the service. uploads gates access to each exported upload.
func NewHTTPHandler(service *Service, uploads UploadAuthorizer) *Handler {
	return &Handler{service: service, uploads: uploads}
}

// Register mounts the export route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/uploads/{id}/export", auth.RequireUser(http.HandlerFunc(h.handleExport)))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.PathID(r, "id")
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if _, err := h.uploads.AuthorizeUpload(r.Context(), userID, id); err != nil {
		middleware.WriteError(w, err)
		return
	}
	q := r.URL.Query()
	format, err := ParseFormat(q.Get("format"))
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	req := Request{UploadID: id, Format: format}
	for _, raw := range strings.Split(q.Get("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := domain.ParseEnrichmentStatus(raw)
		if !ok {
			middleware.BadRequest(w, "invalid status %q", raw)
			return
		}
		req.Statuses = append(req.Statuses, status)
	}

	// Buffered so failures can still be reported as JSON errors.
	var buf bytes.Buffer
	result, err := h.service.Export(r.Context(), req, &buf)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(result.Bytes, 10))
	w.Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
