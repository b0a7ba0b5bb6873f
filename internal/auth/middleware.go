package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserHeader is trusted for identity when no signing secret is configured.
const UserHeader = "X-User-Id"

// Config controls bearer token validation.
type Config struct {
	// Secret is the HMAC key. Empty disables token validation.
	Secret string
	Issuer string
}

// Middleware resolves the current user from an HS256 bearer token, or from the
// X-User-Id header when no secret is configured. Requests without an identity pass
// through anonymously; handlers that need a user reject them.
func Middleware(cfg Config, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			if cfg.Secret == "" {
				if raw := strings.TrimSpace(r.Header.Get(UserHeader)); raw != "" {
					id, err := strconv.ParseInt(raw, 10, 64)
					if err != nil || id <= 0 {
						writeUnauthorized(w, "invalid "+UserHeader+" header")
						return
					}
					r = r.WithContext(ContextWithUserID(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeUnauthorized(w, "invalid authorization header")
				return
			}

			id, err := ParseToken(strings.TrimPrefix(authHeader, "Bearer "), cfg)
			if err != nil {
				logger.Debug("rejected bearer token", zap.Error(err))
				writeUnauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), id)))
		})
	}
}

// RequireUser rejects requests that carry no user identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeUnauthorized(w, "missing user identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseToken validates an HS256 token and returns the numeric subject.
func ParseToken(tokenString string, cfg Config) (int64, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return 0, fmt.Errorf("token validation failed: %w", err)
	}

	if claims.Subject == "" {
		return 0, errors.New("token has no subject")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("token subject %q is not a user id", claims.Subject)
	}
	return id, nil
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, "{\"error\": %q}\n", msg)
}
