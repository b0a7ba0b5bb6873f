package ingestion

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/leadstream/internal/auth"
	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/middleware"
	"github.com/rpattn/leadstream/internal/statusloader"
)

const maxMemory = 32 << 20

// Handler exposes upload management over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the upload routes on mux. Every route requires a user.
func (h *Handler) Register(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireUser(fn))
	}
	handle("POST /api/uploads", h.createUpload)
	handle("GET /api/uploads", h.listUploads)
	handle("GET /api/uploads/{id}", h.getUpload)
	handle("DELETE /api/uploads/{id}", h.deleteUpload)
	handle("POST /api/uploads/{id}/save", h.save)
	handle("GET /api/uploads/{id}/persons", h.listPersons)
	handle("GET /api/ingestion-logs", h.listLogs)
}

func userID(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// authorizedUpload parses the {id} path value and loads the upload for the caller.
// It writes the error response and returns false on failure.
func (h *Handler) authorizedUpload(w http.ResponseWriter, r *http.Request) (domain.Upload, bool) {
	id, err := middleware.PathID(r, "id")
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return domain.Upload{}, false
	}
	upload, err := h.service.AuthorizeUpload(r.Context(), userID(r), id)
	if err != nil {
		middleware.WriteError(w, err)
		return domain.Upload{}, false
	}
	return upload, true
}

func (h *Handler) createUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.service.maxSize+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, &domain.TooLargeError{Limit: h.service.maxSize})
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			middleware.BadRequest(w, "invalid form data: %v", err)
			return
		}
	}

	req := CreateUploadRequest{UserID: userID(r)}
	if raw := strings.TrimSpace(r.FormValue("ownerCompanyId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			middleware.BadRequest(w, "invalid ownerCompanyId %q", raw)
			return
		}
		req.OwnerCompanyID = id
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		middleware.WriteError(w, &domain.MissingFileError{})
		return
	case err != nil:
		middleware.BadRequest(w, "failed to read file: %v", err)
		return
	}
	defer file.Close()

	req.FileName = header.Filename
	req.MimeType = mimeTypeOf(header)
	req.Size = header.Size
	req.Data = file

	upload, err := h.service.CreateUpload(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, upload)
}

func mimeTypeOf(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// UploadWithStatus is a listed upload with its persons' enrichment progress.
type UploadWithStatus struct {
	domain.Upload
	StatusSummary domain.StatusCounts `json:"status_summary"`
}

func (h *Handler) listUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePagination(q)
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	filter, err := parseUploadFilter(q)
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	if filter, err = h.service.ScopeUploadFilter(r.Context(), userID(r), filter); err != nil {
		middleware.WriteError(w, err)
		return
	}

	result, err := h.service.ListUploads(r.Context(), filter, page)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	loader := middleware.StatusLoaderFromContext(r.Context())
	if loader == nil {
		loader = statusloader.NewStatusLoader(h.service.store.Persons())
	}
	ids := make([]int64, len(result.Data))
	for i, u := range result.Data {
		ids[i] = u.ID
	}
	counts, err := loader.LoadMany(r.Context(), ids)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	data := make([]UploadWithStatus, len(result.Data))
	for i, u := range result.Data {
		data[i] = UploadWithStatus{Upload: u, StatusSummary: counts[u.ID]}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"data":       data,
		"pagination": result.Pagination,
	})
}

func (h *Handler) getUpload(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.authorizedUpload(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, upload)
}

func (h *Handler) deleteUpload(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.authorizedUpload(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUpload(r.Context(), upload.ID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.authorizedUpload(w, r)
	if !ok {
		return
	}
	result, err := h.service.Save(r.Context(), upload.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) listPersons(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.authorizedUpload(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := parsePagination(q)
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	filter, err := parsePersonFilter(q)
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	filter.UploadID = upload.ID
	filter.OwnerCompanyID = upload.OwnerCompanyID

	result, err := h.service.ListPersons(r.Context(), filter, page)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, err := parseInt(q, "ownerCompanyId")
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	if companyID == 0 {
		middleware.BadRequest(w, "ownerCompanyId is required")
		return
	}
	if _, err := h.service.AuthorizeCompany(r.Context(), userID(r), companyID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	page, err := parsePagination(q)
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}
	entries, err := h.service.ListIngestionLogs(r.Context(), companyID, strings.TrimSpace(q.Get("fileName")), page)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func parsePagination(q url.Values) (domain.Pagination, error) {
	page, err := parseInt(q, "page")
	if err != nil {
		return domain.Pagination{}, err
	}
	size, err := parseInt(q, "pageSize")
	if err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{Page: int(page), PageSize: int(size)}.Normalize(), nil
}

func parseUploadFilter(q url.Values) (domain.UploadFilter, error) {
	var (
		filter domain.UploadFilter
		err    error
	)
	if filter.ID, err = parseInt(q, "id"); err != nil {
		return filter, err
	}
	if filter.OwnerCompanyID, err = parseInt(q, "ownerCompanyId"); err != nil {
		return filter, err
	}
	filter.FileName = strings.TrimSpace(q.Get("fileName"))
	if raw := q.Get("isSaved"); raw != "" {
		saved, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid isSaved %q", raw)
		}
		filter.IsSaved = &saved
	}
	filter.CreatedAtRange, err = parseTimeRange(q)
	return filter, err
}

func parsePersonFilter(q url.Values) (domain.PersonFilter, error) {
	var (
		filter domain.PersonFilter
		err    error
	)
	filter.Name = strings.TrimSpace(q.Get("name"))
	filter.Department = strings.TrimSpace(q.Get("department"))
	filter.Position = strings.TrimSpace(q.Get("position"))
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := domain.ParseEnrichmentStatus(part)
			if !ok {
				return filter, fmt.Errorf("invalid status %q", part)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if filter.CreatedAtRange, err = parseTimeRange(q); err != nil {
		return filter, err
	}
	if filter.IntentScoreRange.Min, err = parseFloat(q, "intentScoreMin"); err != nil {
		return filter, err
	}
	if filter.IntentScoreRange.Max, err = parseFloat(q, "intentScoreMax"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseInt(q url.Values, name string) (int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func parseFloat(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

func parseTimeRange(q url.Values) (domain.TimeRange, error) {
	var r domain.TimeRange
	for name, dst := range map[string]**time.Time{"createdFrom": &r.From, "createdTo": &r.To} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.TimeRange{}, fmt.Errorf("invalid %s %q: expected RFC3339", name, raw)
		}
		*dst = &t
	}
	return r, nil
}
