// Package handlers provides the HTTP surface over the requirement service.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"reqspec-backend/pkg/api"
	appErrors "reqspec-backend/pkg/errors"
)

// contextKey avoids collisions with other packages' context values.
type contextKey struct {
	name string
}

var userIDKey = contextKey{"userID"}

var validate = validator.New()

// Authenticator extracts the caller identity set by the fronting gateway.
// The service trusts the X-User-ID header; authentication itself happens
// upstream.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			api.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getUserID retrieves the authenticated user from the request context.
func getUserID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// handleServiceError translates the application error taxonomy onto HTTP
// status codes. Unknown errors are logged and hidden behind a 500.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch {
	case appErrors.IsValidation(err):
		api.Error(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotFound(err):
		api.Error(w, http.StatusNotFound, err.Error())
	case appErrors.IsUnauthorized(err):
		api.Error(w, http.StatusForbidden, err.Error())
	case appErrors.IsConflict(err):
		api.Error(w, http.StatusConflict, err.Error())
	case appErrors.IsUnavailable(err):
		api.Error(w, http.StatusServiceUnavailable, err.Error())
	case appErrors.IsUnsupported(err):
		api.Error(w, http.StatusGone, err.Error())
	default:
		logger.Error("unhandled service error", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "An internal error occurred")
	}
}
