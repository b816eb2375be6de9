package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// Publisher is the part of the JetStream client the event publisher needs.
type Publisher interface {
	Publish(subject string, data []byte, headers map[string]string) error
}

// EventPublisher announces contact mutations made through the HTTP API on the
// company's contact subjects. The service's own consumer receives them too;
// re-applying a snapshot or a removal is harmless.
type EventPublisher struct {
	client    Publisher
	companyID string
}

// NewEventPublisher creates a publisher for companyID.
func NewEventPublisher(client Publisher, companyID string) *EventPublisher {
	return &EventPublisher{client: client, companyID: companyID}
}

func (p *EventPublisher) subject(eventType model.EventType) string {
	return fmt.Sprintf("%s.%s", eventType, p.companyID)
}

func (p *EventPublisher) publish(ctx context.Context, eventType model.EventType, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	subject := p.subject(eventType)
	msgID := uuid.NewString()
	if err := p.client.Publish(subject, data, map[string]string{nats.MsgIdHdr: msgID}); err != nil {
		return err
	}

	logger.FromContext(ctx).Debug("Published contact event",
		zap.String("subject", subject),
		zap.String("nats_message_id", msgID),
	)
	return nil
}

// PublishUpserted publishes the stored snapshot of contact.
func (p *EventPublisher) PublishUpserted(ctx context.Context, contact model.Contact) error {
	return p.publish(ctx, model.V1ContactsUpserted, model.ContactUpsertedEvent{
		CompanyID: p.companyID,
		Contact:   contact.ToPayload(),
	})
}

// PublishRemoved publishes the removal of contactID.
func (p *EventPublisher) PublishRemoved(ctx context.Context, contactID string) error {
	return p.publish(ctx, model.V1ContactsRemoved, model.ContactRemovedEvent{
		CompanyID: p.companyID,
		ContactID: contactID,
	})
}
