package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rpattn/leadstream/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&domain.MediaTypeError{Actual: "image/png"}, http.StatusUnsupportedMediaType},
		{&domain.SchemaError{}, http.StatusUnprocessableEntity},
		{&domain.RowError{Row: 2, Field: "email"}, http.StatusUnprocessableEntity},
		{&domain.EmptyUploadError{}, http.StatusUnprocessableEntity},
		{&domain.DuplicateError{}, http.StatusUnprocessableEntity},
		{&domain.MissingFileError{}, http.StatusUnprocessableEntity},
		{&domain.TooLargeError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{&domain.NotFoundError{Resource: "upload", ID: 1}, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", &domain.AlreadySavedError{UploadID: 1}), http.StatusConflict},
		{&domain.ForbiddenError{}, http.StatusForbidden},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}

func TestWriteErrorIncludesRowDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, &domain.RowError{Row: 2, Field: "email", Value: "nope", Values: []string{"a", "b", "nope"}})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "row 2: invalid email \"nope\"", body.Error)
	assert.EqualValues(t, 2, body.Details["row"])
	assert.Equal(t, "email", body.Details["field"])
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("connection refused to 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var (
		got int64
		err error
	)
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, err = PathID(r, "id")
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/12", nil))
	require.NoError(t, err)
	assert.EqualValues(t, 12, got)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/abc", nil))
	assert.Error(t, err)
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.EqualValues(t, http.StatusTeapot, entry.ContextMap()["status"])
	assert.Equal(t, "/brew", entry.ContextMap()["path"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRecovererReturns500(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
