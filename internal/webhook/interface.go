package webhook

import (
	"context"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

// ClientInterface is the set of webhook API calls the service depends on.
type ClientInterface interface {
	SendSMS(ctx context.Context, to, message, mediaURL string) error
	StartCall(ctx context.Context, contactPhoneNumber, userPhoneNumber string) error
	EnrollInSequence(ctx context.Context, contactIdentifier, sequenceID string) error
	DisenrollFromSequence(ctx context.Context, contactIdentifier string) error
	Lookup(ctx context.Context, phoneNumber string) (model.LookupResult, error)
	ListUsers(ctx context.Context) ([]model.Agent, error)
	RingGroupAvailability(ctx context.Context, ringGroupID string) (model.RingGroupAvailability, error)
}

var _ ClientInterface = (*Client)(nil)
