package ingestion

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// ContactEventHandler applies contact events to the contact service.
type ContactEventHandler struct {
	contacts ContactUpdater
}

// NewContactEventHandler creates a handler backed by contacts.
func NewContactEventHandler(contacts ContactUpdater) *ContactEventHandler {
	return &ContactEventHandler{contacts: contacts}
}

// Register binds the contact event types on router.
func (h *ContactEventHandler) Register(router RouterInterface) {
	router.Register(model.V1ContactsUpserted, h.HandleUpserted)
	router.Register(model.V1ContactsRemoved, h.HandleRemoved)
}

// checkCompany rejects events addressed to another tenant. An event without
// company_id inherits the subject's.
func checkCompany(ctx context.Context, companyID string) error {
	if companyID == "" {
		return nil
	}
	if err := tenant.ValidateCompany(ctx, companyID); err != nil {
		return apperrors.NewFatal(err, "event company")
	}
	return nil
}

// HandleUpserted replaces the contact carried by the event.
func (h *ContactEventHandler) HandleUpserted(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	var event model.ContactUpsertedEvent
	if err := json.Unmarshal(rawEvent, &event); err != nil {
		return apperrors.NewFatal(err, "failed to unmarshal %s event", eventType)
	}
	if err := checkCompany(ctx, event.CompanyID); err != nil {
		return err
	}

	contact, err := h.contacts.Upsert(ctx, event.Contact)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("Applied contact upsert",
		zap.String("contact_id", contact.ID),
		zap.Uint64("num_delivered", metadata.NumDelivered),
	)
	return nil
}

// HandleRemoved drops the contact named by the event. Removing an unknown
// contact is not an error.
func (h *ContactEventHandler) HandleRemoved(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	var event model.ContactRemovedEvent
	if err := json.Unmarshal(rawEvent, &event); err != nil {
		return apperrors.NewFatal(err, "failed to unmarshal %s event", eventType)
	}
	if event.ContactID == "" {
		return apperrors.NewFatal(apperrors.ErrValidation, "%s event without contact_id", eventType)
	}
	if err := checkCompany(ctx, event.CompanyID); err != nil {
		return err
	}

	log := logger.FromContext(ctx).With(zap.String("contact_id", event.ContactID))
	if err := h.contacts.Remove(ctx, event.ContactID); err != nil {
		if apperrors.IsNotFoundError(err) {
			log.Debug("Contact already absent")
			return nil
		}
		return err
	}

	log.Info("Applied contact removal", zap.Uint64("num_delivered", metadata.NumDelivered))
	return nil
}
