package api

import (
	"net/http"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// statusFor maps a service error to the HTTP status returned to the caller.
func statusFor(err error) int {
	switch {
	case apperrors.IsValidationError(err), apperrors.IsBadRequestError(err):
		return http.StatusBadRequest
	case apperrors.IsNotFoundError(err):
		return http.StatusNotFound
	case apperrors.IsRateLimitedError(err):
		return http.StatusTooManyRequests
	case apperrors.IsWebhookError(err), apperrors.IsTimeoutError(err):
		return http.StatusBadGateway
	case apperrors.IsDatabaseError(err), apperrors.IsNATSError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as {"error": ...}. Internal and backing
// service failures are not echoed to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	log := logger.FromContext(r.Context())

	msg := err.Error()
	if code == http.StatusInternalServerError || code == http.StatusServiceUnavailable {
		log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = http.StatusText(code)
	} else {
		log.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	utils.WriteJSONError(w, code, msg)
}
