package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	h "reconned/internal/delivery/http/helpers"
	"reconned/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

var (
	errNoCredentials = errors.New("missing authorization header")
	errBadFormat     = errors.New("invalid authorization format")
	errEmptyToken    = errors.New("missing token")
)

// SetIdentity returns a context carrying the authenticated caller. Used by auth middleware.
func SetIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated caller from the context, if present.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*domain.Identity)
	return id, ok && id != nil
}

// tokenFromRequest reads the Bearer token, falling back to the session cookie
// set by the identity provider for browser navigations.
func tokenFromRequest(r *http.Request, sessionCookie string) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return "", errBadFormat
		}
		token := strings.TrimSpace(auth[len(prefix):])
		if token == "" {
			return "", errEmptyToken
		}
		return token, nil
	}
	if sessionCookie != "" {
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errNoCredentials
}

// RequireAuth returns a wrapper that validates the caller's token and sets the identity in the request context.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, sessionCookie string, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r, sessionCookie)
			if err != nil {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, err.Error())
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			next(w, r.WithContext(SetIdentity(r.Context(), identity)))
		}
	}
}

// OptionalAuth sets the identity when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(verifier domain.TokenVerifier, sessionCookie string, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r, sessionCookie)
			if err == nil {
				if identity, verr := verifier.Verify(token); verr == nil {
					r = r.WithContext(SetIdentity(r.Context(), identity))
				} else {
					logger.DebugContext(r.Context(), "ignoring invalid token", "path", r.URL.Path, "err", verr)
				}
			}
			next(w, r)
		}
	}
}
