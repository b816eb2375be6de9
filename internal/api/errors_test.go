package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.NewFatal(apperrors.ErrValidation, "upsert contact"), http.StatusBadRequest},
		{"bad request", fmt.Errorf("decode: %w", apperrors.ErrBadRequest), http.StatusBadRequest},
		{"enrichment disabled", usecase.ErrEnrichmentDisabled, http.StatusBadRequest},
		{"not found", fmt.Errorf("contact c1: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"pool full", fmt.Errorf("enrich: %w", apperrors.ErrRateLimited), http.StatusTooManyRequests},
		{"webhook", fmt.Errorf("%w: status 500", apperrors.ErrWebhook), http.StatusBadGateway},
		{"timeout", apperrors.ErrTimeout, http.StatusBadGateway},
		{"database", apperrors.NewRetryable(apperrors.ErrDatabase, "list contacts"), http.StatusServiceUnavailable},
		{"nats", fmt.Errorf("%w: failed to publish message", apperrors.ErrNATS), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteError_BackingServiceDetailsAreHidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/contacts", nil)
	req = req.WithContext(logger.WithLogger(req.Context(), zaptest.NewLogger(t)))
	rec := httptest.NewRecorder()

	writeError(rec, req, fmt.Errorf("%w: dial tcp 10.0.0.5:5432: connection refused", apperrors.ErrDatabase))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), errorBody(t, rec))
}
