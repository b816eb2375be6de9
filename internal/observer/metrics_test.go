package observer

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Gauge != nil {
		return out.GetGauge().GetValue()
	}
	return out.GetCounter().GetValue()
}

func TestSanitizeErrorType(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "none"},
		{"validation failed: field 'id'", "validation"},
		{"contact x: resource not found", "not_found"},
		{"lookup: webhook request failed: 503", "webhook"},
		{"database error: connection refused", "database"},
		{"nats communication error", "nats"},
		{"context deadline exceeded", "timeout"},
		{"failed to unmarshal event", "unmarshal"},
		{"panic recovered: boom", "panic"},
		{"something unexpected", "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeErrorType(tc.in), tc.in)
	}
}

func TestIndexMetrics(t *testing.T) {
	InitMetrics(true)

	SetIndexedContacts(12)
	assert.Equal(t, 12.0, value(t, IndexedContacts))

	before := value(t, ContactUpsertsTotal.WithLabelValues("test"))
	AddContactUpserts("test", 3)
	AddContactUpserts("test", 0)
	assert.Equal(t, before+3, value(t, ContactUpsertsTotal.WithLabelValues("test")))
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	InitMetrics(false)
	defer InitMetrics(true)
	assert.False(t, Enabled())

	before := value(t, ContactRemovalsTotal.WithLabelValues("disabled"))
	IncContactRemovals("disabled")
	ObserveSearch(time.Millisecond, 4)
	assert.Equal(t, before, value(t, ContactRemovalsTotal.WithLabelValues("disabled")))
}

func TestSanitizeTenant(t *testing.T) {
	assert.Equal(t, "unknown", sanitizeTenant(""))
	assert.Equal(t, "acme", sanitizeTenant("acme"))
}

func TestLoadgenMetrics(t *testing.T) {
	InitMetrics(true)

	published := LoadgenMessagesPublishedTotal.WithLabelValues("v1.contacts.upserted", "unknown")
	before := value(t, published)
	IncLoadgenMessagesAttempted("v1.contacts.upserted", "")
	IncLoadgenMessagesPublished("v1.contacts.upserted", "")
	assert.Equal(t, before+1, value(t, published))
}
