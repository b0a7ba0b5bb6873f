package enrichment

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/leadstream/internal/auth"
	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/middleware"
)

// Handler exposes enrichment triggers over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the enrichment routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/uploads/{id}/enrich", auth.RequireUser(http.HandlerFunc(h.enrich)))
	mux.Handle("GET /api/enrichment/batches/{batchId}", auth.RequireUser(http.HandlerFunc(h.getBatch)))
}

func (h *Handler) enrich(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, domain.ErrUnauthenticated)
		return
	}
	id, err := middleware.PathID(r, "id")
	if err != nil {
		middleware.BadRequest(w, "%v", err)
		return
	}

	result, err := h.service.Enrich(r.Context(), EnrichRequest{UploadID: id, UserID: userID})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, result)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, domain.ErrUnauthenticated)
		return
	}
	batchID, err := uuid.Parse(r.PathValue("batchId"))
	if err != nil {
		middleware.BadRequest(w, "invalid batchId: %v", err)
		return
	}
	audit, err := h.service.GetBatch(r.Context(), userID, batchID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, audit)
}
