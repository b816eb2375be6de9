package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestContext scopes every request: request id, tenant and logger in
// the context, an access log line and panic recovery.
func (h *Handler) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := tenant.WithRequestID(r.Context(), requestID)
		if h.companyID != "" {
			ctx = tenant.WithCompanyID(ctx, h.companyID)
		}
		ctx = logger.WithLogger(ctx, h.logger)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		log := logger.FromContext(ctx)

		defer func() {
			if p := recover(); p != nil {
				log.Error("Panic while handling request",
					zap.Any("panic", p),
					zap.Stack("stack"),
				)
				utils.WriteJSONError(rec, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
			log.Info("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}
