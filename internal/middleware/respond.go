package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpattn/leadstream/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// WriteError maps err onto a status and writes it with its diagnostic details.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	WriteJSON(w, status, ErrorBody{Error: msg, Details: detailsFor(err)})
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySaved):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func detailsFor(err error) map[string]any {
	var (
		mediaErr  *domain.MediaTypeError
		schemaErr *domain.SchemaError
		rowErr    *domain.RowError
		dupErr    *domain.DuplicateError
	)
	switch {
	case errors.As(err, &mediaErr):
		return map[string]any{"accepted": mediaErr.Accepted, "actual": mediaErr.Actual}
	case errors.As(err, &schemaErr):
		return map[string]any{"expected": schemaErr.Expected, "actual": schemaErr.Actual}
	case errors.As(err, &rowErr):
		return map[string]any{"row": rowErr.Row, "field": rowErr.Field, "value": rowErr.Value, "values": rowErr.Values}
	case errors.As(err, &dupErr):
		return map[string]any{"duplicates": dupErr.Duplicates}
	}
	return nil
}

// BadRequest writes a 400 for malformed input that never reached a service.
func BadRequest(w http.ResponseWriter, format string, args ...any) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: fmt.Sprintf(format, args...)})
}

// PathID parses a positive integer path value.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
