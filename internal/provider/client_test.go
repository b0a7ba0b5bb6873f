package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/leadstream/internal/domain"
)

func echoServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/person/bulk", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var req bulkRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Reverse the order so callers cannot rely on position.
		items := make([]ResponseItem, 0, len(req.Requests))
		for i := len(req.Requests) - 1; i >= 0; i-- {
			in := req.Requests[i]
			items = append(items, ResponseItem{
				Status:   http.StatusOK,
				Data:     map[string]any{"full_name": in.Params.Name},
				Metadata: in.Metadata,
			})
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
}

func TestBulkEnrichChunksRequests(t *testing.T) {
	var calls atomic.Int32
	srv := echoServer(t, &calls)
	defer srv.Close()

	client := NewClient("secret", WithBaseURL(srv.URL), WithBatchSize(2), WithRateLimit(1000))

	items := make([]RequestItem, 5)
	for i := range items {
		items[i] = RequestItem{Params: Params{Name: "p"}, Metadata: Metadata{PersonID: int64(i + 1)}}
	}

	got, err := client.BulkEnrich(context.Background(), items)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.EqualValues(t, 3, calls.Load())

	seen := map[int64]bool{}
	for _, item := range got {
		seen[item.Metadata.PersonID] = true
	}
	assert.Len(t, seen, 5)
}

func TestBulkEnrichMapsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewClient("secret", WithBaseURL(srv.URL))
	_, err := client.BulkEnrich(context.Background(), []RequestItem{{Metadata: Metadata{PersonID: 1}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProvider))

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusPaymentRequired, perr.StatusCode)
	assert.Contains(t, perr.Body, "quota exceeded")
}

func TestBulkEnrichReturnsAnsweredChunksOnFailure(t *testing.T) {
	var calls atomic.Int32
	echo := echoServer(t, &calls)
	defer echo.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() >= 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		echo.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := NewClient("secret", WithBaseURL(srv.URL), WithBatchSize(2), WithRateLimit(1000))
	items := make([]RequestItem, 5)
	for i := range items {
		items[i] = RequestItem{Metadata: Metadata{PersonID: int64(i + 1)}}
	}

	got, err := client.BulkEnrich(context.Background(), items)
	require.ErrorIs(t, err, domain.ErrProvider)
	require.Len(t, got, 2)
	ids := []int64{got[0].Metadata.PersonID, got[1].Metadata.PersonID}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestBulkEnrichHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("secret", WithBaseURL(srv.URL))
	_, err := client.BulkEnrich(ctx, []RequestItem{{Metadata: Metadata{PersonID: 1}}})
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestBulkEnrichEmptyIsNoop(t *testing.T) {
	client := NewClient("secret", WithBaseURL("http://127.0.0.1:1"))
	got, err := client.BulkEnrich(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMetadataAcceptsStringIDs(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"person_id":"42","email":"a@b.co"}`), &m))
	assert.EqualValues(t, 42, m.PersonID)

	require.NoError(t, json.Unmarshal([]byte(`{"person_id":7}`), &m))
	assert.EqualValues(t, 7, m.PersonID)
	assert.Empty(t, m.Email)

	assert.Error(t, json.Unmarshal([]byte(`{"person_id":"abc"}`), &m))
}
