package ingestion

import (
	"context"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

// RouterInterface defines the interface for an event router
type RouterInterface interface {
	// Register registers a handler for an event type
	Register(eventType model.EventType, handler EventHandler)

	// RegisterDefault registers a default handler for unknown event types
	RegisterDefault(handler EventHandler)

	// Route routes an event to the appropriate handler
	Route(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error
}

// ConsumerInterface defines the basic methods for a NATS consumer
type ConsumerInterface interface {
	// Setup creates or updates the stream and durable consumer
	Setup() error

	// Start subscribes to the consumer
	Start() error

	// Stop drains the subscription
	Stop()
}

// ContactUpdater applies contact mutations carried by events.
type ContactUpdater interface {
	Upsert(ctx context.Context, payload model.UpsertContactPayload) (model.Contact, error)
	Remove(ctx context.Context, id string) error
}

// Ensure Router implements RouterInterface
var _ RouterInterface = (*Router)(nil)

// Ensure ContactConsumer implements ConsumerInterface
var _ ConsumerInterface = (*ContactConsumer)(nil)
