package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for standard event metrics
	eventProcessingLabels = []string{"event_type", "company_id"}
	// Labels for tracking specific processing actions
	eventActionLabels = []string{"event_type", "company_id", "action", "error_type"}

	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_events_received_total",
			Help: "Total number of contact events received from NATS.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_events_processed_total",
			Help: "Total number of contact events successfully processed and acknowledged.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_events_failed_total",
			Help: "Total number of contact events that failed processing (NAK or TERM).",
		},
		eventProcessingLabels,
	)
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_inbox_event_processing_duration_seconds",
			Help:    "Histogram of contact event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		eventProcessingLabels,
	)
	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_event_processing_actions_total",
			Help: "Total count of ack decisions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)
)

// Contact index metrics
var (
	IndexedContacts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_inbox_indexed_contacts",
			Help: "Number of contacts currently held in the contact index.",
		},
	)
	ContactUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_contact_upserts_total",
			Help: "Total contact upserts accepted by the index, labeled by source.",
		},
		[]string{"source"},
	)
	ContactRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_contact_rejections_total",
			Help: "Total contacts rejected before or by the index, labeled by source.",
		},
		[]string{"source"},
	)
	ContactRemovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_contact_removals_total",
			Help: "Total contacts removed from the index, labeled by source.",
		},
		[]string{"source"},
	)
	SearchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_inbox_search_duration_seconds",
			Help:    "Histogram of contact search durations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15), // 10us to ~160ms
		},
	)
	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_inbox_search_results",
			Help:    "Histogram of the number of contacts returned per search.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
		},
	)
)

// Webhook client metrics
var (
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_webhook_requests_total",
			Help: "Total requests sent to the phone-system webhook API.",
		},
		[]string{"endpoint", "status"},
	)
	WebhookRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_inbox_webhook_request_duration_seconds",
			Help:    "Histogram of webhook API request durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"endpoint"},
	)
)

// Enrichment worker pool metrics
var (
	enrichmentTasksSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_inbox_enrichment_tasks_submitted_total",
			Help: "Total number of contact enrichment tasks submitted to the worker pool.",
		},
	)
	enrichmentTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_enrichment_tasks_processed_total",
			Help: "Total number of contact enrichment tasks processed, labeled by status.",
		},
		[]string{"status"}, // enriched, no_data, skipped, failed, gone
	)
	enrichmentProcessingDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_inbox_enrichment_processing_duration_seconds",
			Help:    "Histogram of contact enrichment task durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
	enrichmentQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_inbox_enrichment_queue_length",
			Help: "Number of enrichment tasks waiting for a worker.",
		},
	)
	enrichmentCacheChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_enrichment_cache_checks_total",
			Help: "Bloom cache lookups for already enriched numbers, labeled by result.",
		},
		[]string{"result"}, // hit, miss
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "company_id", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_inbox_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Load generator metrics, exported by cmd/tester
var (
	loadgenLabels = []string{"event_type", "company_id"}

	LoadgenMessagesAttemptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_loadgen_messages_attempted_total",
			Help: "Contact events the load generator tried to publish.",
		},
		loadgenLabels,
	)
	LoadgenMessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_loadgen_messages_published_total",
			Help: "Contact events the load generator published.",
		},
		loadgenLabels,
	)
	LoadgenPublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_inbox_loadgen_publish_errors_total",
			Help: "Contact events the load generator failed to publish.",
		},
		loadgenLabels,
	)
)

// InitMetrics turns metric collection on or off. promauto has already
// registered every collector; when disabled the helpers become no-ops.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// Enabled reports whether metric collection is on.
func Enabled() bool {
	return metricsEnabled
}

// sanitizeTenant ensures the tenant label is valid or returns a default value.
func sanitizeTenant(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}

// --- Event Metric Helpers ---

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, tenant string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType, sanitizeTenant(tenant)).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, tenant string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType, sanitizeTenant(tenant)).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, tenant string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType, sanitizeTenant(tenant)).Inc()
}

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, tenant string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(eventType, sanitizeTenant(tenant)).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, tenant, action, errorType string) {
	if !metricsEnabled {
		return
	}
	EventProcessingActionsTotal.WithLabelValues(eventType, sanitizeTenant(tenant), action, SanitizeErrorType(errorType)).Inc()
}

// --- Contact Index Metric Helpers ---

// SetIndexedContacts sets the indexed contacts gauge.
func SetIndexedContacts(n int) {
	if !metricsEnabled {
		return
	}
	IndexedContacts.Set(float64(n))
}

// AddContactUpserts adds n accepted upserts for source.
func AddContactUpserts(source string, n int) {
	if !metricsEnabled || n <= 0 {
		return
	}
	ContactUpsertsTotal.WithLabelValues(source).Add(float64(n))
}

// AddContactRejections adds n rejected contacts for source.
func AddContactRejections(source string, n int) {
	if !metricsEnabled || n <= 0 {
		return
	}
	ContactRejectionsTotal.WithLabelValues(source).Add(float64(n))
}

// IncContactRemovals increments the removals counter for source.
func IncContactRemovals(source string) {
	if !metricsEnabled {
		return
	}
	ContactRemovalsTotal.WithLabelValues(source).Inc()
}

// ObserveSearch records the duration and result size of one search.
func ObserveSearch(duration time.Duration, results int) {
	if !metricsEnabled {
		return
	}
	SearchDurationSeconds.Observe(duration.Seconds())
	SearchResults.Observe(float64(results))
}

// --- Webhook Metric Helpers ---

// ObserveWebhookRequest records one webhook call. status is the HTTP status
// code as text, or "error" when no response was received.
func ObserveWebhookRequest(endpoint, status string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	WebhookRequestsTotal.WithLabelValues(endpoint, status).Inc()
	WebhookRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// --- Enrichment Metric Helpers ---

// IncEnrichmentTasksSubmitted increments the counter for submitted enrichment tasks.
func IncEnrichmentTasksSubmitted() {
	if !metricsEnabled {
		return
	}
	enrichmentTasksSubmittedTotal.Inc()
}

// IncEnrichmentTasksProcessed increments the counter for processed enrichment tasks.
func IncEnrichmentTasksProcessed(status string) {
	if !metricsEnabled {
		return
	}
	enrichmentTasksProcessedTotal.WithLabelValues(status).Inc()
}

// ObserveEnrichmentProcessingDuration records the processing time for an enrichment task.
func ObserveEnrichmentProcessingDuration(duration time.Duration) {
	if !metricsEnabled {
		return
	}
	enrichmentProcessingDurationSeconds.Observe(duration.Seconds())
}

// SetEnrichmentQueueLength sets the current number of waiting enrichment tasks.
func SetEnrichmentQueueLength(length int) {
	if !metricsEnabled {
		return
	}
	enrichmentQueueLength.Set(float64(length))
}

// IncEnrichmentCacheCheck counts a bloom cache lookup.
func IncEnrichmentCacheCheck(hit bool) {
	if !metricsEnabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	enrichmentCacheChecksTotal.WithLabelValues(result).Inc()
}

// --- Database Metric Helpers ---

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, companyID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeTenant(companyID), status).Observe(duration.Seconds())
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "webhook"):
		return "webhook"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Load Generator Metric Helpers ---

// IncLoadgenMessagesAttempted counts one publish attempt.
func IncLoadgenMessagesAttempted(eventType, tenant string) {
	if !metricsEnabled {
		return
	}
	LoadgenMessagesAttemptedTotal.WithLabelValues(eventType, sanitizeTenant(tenant)).Inc()
}

// IncLoadgenMessagesPublished counts one published event.
func IncLoadgenMessagesPublished(eventType, tenant string) {
	if !metricsEnabled {
		return
	}
	LoadgenMessagesPublishedTotal.WithLabelValues(eventType, sanitizeTenant(tenant)).Inc()
}

// IncLoadgenPublishErrors counts one failed publish.
func IncLoadgenPublishErrors(eventType, tenant string) {
	if !metricsEnabled {
		return
	}
	LoadgenPublishErrorsTotal.WithLabelValues(eventType, sanitizeTenant(tenant)).Inc()
}
