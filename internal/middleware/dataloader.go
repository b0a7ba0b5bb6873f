package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/leadstream/internal/statusloader"
)

type ctxKey string

const statusLoaderKey ctxKey = "statusLoader"

// DataLoaderMiddleware attaches a fresh per-request status loader to the request context.
func DataLoaderMiddleware(repo statusloader.Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := statusloader.NewStatusLoader(repo)
			ctx := context.WithValue(r.Context(), statusLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusLoaderFromContext retrieves the status loader from context
func StatusLoaderFromContext(ctx context.Context) *statusloader.StatusLoader {
	if l, ok := ctx.Value(statusLoaderKey).(*statusloader.StatusLoader); ok {
		return l
	}
	return nil
}
