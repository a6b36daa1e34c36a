package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	h "reconned/internal/delivery/http/helpers"
)

// RequireBearerSecret guards scheduler and identity-provider callbacks with a
// static shared secret. An empty secret disables the endpoints.
func RequireBearerSecret(secret string, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.WarnContext(r.Context(), "secret-protected endpoint called without a configured secret", "path", r.URL.Path)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
				return
			}
			next(w, r)
		}
	}
}
