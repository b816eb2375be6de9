package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/validator"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/webhook"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// Action names reported in ActionResponse.
const (
	ActionSendSMS   = "send_sms"
	ActionStartCall = "start_call"
	ActionEnroll    = "enroll"
	ActionDisenroll = "disenroll"
)

// ActionService forwards inbox actions on indexed contacts to the webhook API.
type ActionService struct {
	contacts ContactStore
	client   webhook.ClientInterface
}

// NewActionService creates an action service.
func NewActionService(contacts ContactStore, client webhook.ClientInterface) *ActionService {
	return &ActionService{contacts: contacts, client: client}
}

// contact resolves id before any network call is made.
func (s *ActionService) contact(id string) (model.Contact, error) {
	c, ok := s.contacts.Get(id)
	if !ok {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
	}
	return c, nil
}

func done(contactID, action string) model.ActionResponse {
	return model.ActionResponse{Status: "ok", ContactID: contactID, Action: action}
}

// SendSMS texts the contact.
func (s *ActionService) SendSMS(ctx context.Context, contactID string, payload model.SendSMSPayload) (model.ActionResponse, error) {
	if err := validator.Validate(payload); err != nil {
		return model.ActionResponse{}, err
	}
	c, err := s.contact(contactID)
	if err != nil {
		return model.ActionResponse{}, err
	}
	if err := s.client.SendSMS(ctx, c.PhoneNumber, payload.Message, payload.MediaURL); err != nil {
		return model.ActionResponse{}, err
	}

	logger.FromContext(ctx).Info("Sent SMS to contact", zap.String("contact_id", c.ID))
	return done(c.ID, ActionSendSMS), nil
}

// StartCall rings the agent device and bridges it to the contact.
func (s *ActionService) StartCall(ctx context.Context, contactID string, payload model.StartCallPayload) (model.ActionResponse, error) {
	if err := validator.Validate(payload); err != nil {
		return model.ActionResponse{}, err
	}
	c, err := s.contact(contactID)
	if err != nil {
		return model.ActionResponse{}, err
	}
	if err := s.client.StartCall(ctx, c.PhoneNumber, payload.UserPhoneNumber); err != nil {
		return model.ActionResponse{}, err
	}

	logger.FromContext(ctx).Info("Started call to contact", zap.String("contact_id", c.ID))
	return done(c.ID, ActionStartCall), nil
}

// identifier is the phone number when known, the contact id otherwise.
func identifier(c model.Contact) string {
	if c.PhoneNumber != "" {
		return c.PhoneNumber
	}
	return c.ID
}

// EnrollInSequence force-enrolls the contact into sequenceID.
func (s *ActionService) EnrollInSequence(ctx context.Context, contactID, sequenceID string) (model.ActionResponse, error) {
	if sequenceID == "" {
		return model.ActionResponse{}, fmt.Errorf("sequence id is required: %w", apperrors.ErrBadRequest)
	}
	c, err := s.contact(contactID)
	if err != nil {
		return model.ActionResponse{}, err
	}
	if err := s.client.EnrollInSequence(ctx, identifier(c), sequenceID); err != nil {
		return model.ActionResponse{}, err
	}

	logger.FromContext(ctx).Info("Enrolled contact in sequence",
		zap.String("contact_id", c.ID),
		zap.String("sequence_id", sequenceID),
	)
	return done(c.ID, ActionEnroll), nil
}

// DisenrollFromSequence removes the contact from every sequence.
func (s *ActionService) DisenrollFromSequence(ctx context.Context, contactID string) (model.ActionResponse, error) {
	c, err := s.contact(contactID)
	if err != nil {
		return model.ActionResponse{}, err
	}
	if err := s.client.DisenrollFromSequence(ctx, identifier(c)); err != nil {
		return model.ActionResponse{}, err
	}

	logger.FromContext(ctx).Info("Disenrolled contact from sequences", zap.String("contact_id", c.ID))
	return done(c.ID, ActionDisenroll), nil
}

// ListAgents returns the phone-system users.
func (s *ActionService) ListAgents(ctx context.Context) ([]model.Agent, error) {
	return s.client.ListUsers(ctx)
}

// InboxAvailability reports how many agents of ringGroupID can take calls.
func (s *ActionService) InboxAvailability(ctx context.Context, ringGroupID string) (model.RingGroupAvailability, error) {
	if ringGroupID == "" {
		return model.RingGroupAvailability{}, fmt.Errorf("ring group id is required: %w", apperrors.ErrBadRequest)
	}
	return s.client.RingGroupAvailability(ctx, ringGroupID)
}
