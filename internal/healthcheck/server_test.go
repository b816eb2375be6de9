package healthcheck

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServer_Health(t *testing.T) {
	s := NewServer("0", zaptest.NewLogger(t))

	rec, body := get(t, s.Handler(), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP", body.Status)
	assert.Equal(t, Version, body.Version)
}

func TestServer_Ready(t *testing.T) {
	s := NewServer("0", zaptest.NewLogger(t))
	s.AddProbe(Probe{Name: "indexed_contacts", Check: func() (string, error) { return "42", nil }})

	rec, body := get(t, s.Handler(), "/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", body.Status)
	assert.Equal(t, "42", body.Details["indexed_contacts"])
	assert.NotEmpty(t, body.Details["timestamp"])
}

func TestServer_Ready_FailingProbe(t *testing.T) {
	s := NewServer("0", zaptest.NewLogger(t))
	s.AddProbe(Probe{Name: "indexed_contacts", Check: func() (string, error) { return "3", nil }})
	s.AddProbe(Probe{Name: "nats", Check: func() (string, error) { return "", errors.New("disconnected") }})

	rec, body := get(t, s.Handler(), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", body.Status)
	assert.Equal(t, "disconnected", body.Details["nats"])
	assert.Equal(t, "3", body.Details["indexed_contacts"])
}

func TestServer_RegisterHandler(t *testing.T) {
	s := NewServer("0", zaptest.NewLogger(t))
	s.RegisterHandler("/v1/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/contacts", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
