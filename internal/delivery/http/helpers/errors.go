package helpers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"reconned/internal/domain"
)

// WriteServiceError maps an engine error to its HTTP status and error code.
// Internal errors are logged and reported without their message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case domain.KindConflict:
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case domain.KindWindowViolation:
		apiErr := &APIError{Code: ErrCodeWindowViolation, Message: err.Error()}
		var we *domain.WindowError
		if errors.As(err, &we) {
			apiErr.Message = we.Err.Error()
			apiErr.Boundary = we.Boundary.UTC().Format(time.RFC3339)
		}
		writeError(w, http.StatusUnprocessableEntity, apiErr)
	case domain.KindAuthorization:
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case domain.KindValidation:
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case domain.KindUnauthenticated:
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
