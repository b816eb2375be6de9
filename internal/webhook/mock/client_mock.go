package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/webhook"
)

// ClientMock is a mock implementation of the webhook client
type ClientMock struct {
	mock.Mock
}

// Ensure ClientMock implements webhook.ClientInterface
var _ webhook.ClientInterface = (*ClientMock)(nil)

// SendSMS mocks the SendSMS method
func (m *ClientMock) SendSMS(ctx context.Context, to, message, mediaURL string) error {
	args := m.Called(ctx, to, message, mediaURL)
	return args.Error(0)
}

// StartCall mocks the StartCall method
func (m *ClientMock) StartCall(ctx context.Context, contactPhoneNumber, userPhoneNumber string) error {
	args := m.Called(ctx, contactPhoneNumber, userPhoneNumber)
	return args.Error(0)
}

// EnrollInSequence mocks the EnrollInSequence method
func (m *ClientMock) EnrollInSequence(ctx context.Context, contactIdentifier, sequenceID string) error {
	args := m.Called(ctx, contactIdentifier, sequenceID)
	return args.Error(0)
}

// DisenrollFromSequence mocks the DisenrollFromSequence method
func (m *ClientMock) DisenrollFromSequence(ctx context.Context, contactIdentifier string) error {
	args := m.Called(ctx, contactIdentifier)
	return args.Error(0)
}

// Lookup mocks the Lookup method
func (m *ClientMock) Lookup(ctx context.Context, phoneNumber string) (model.LookupResult, error) {
	args := m.Called(ctx, phoneNumber)
	return args.Get(0).(model.LookupResult), args.Error(1)
}

// ListUsers mocks the ListUsers method
func (m *ClientMock) ListUsers(ctx context.Context) ([]model.Agent, error) {
	args := m.Called(ctx)
	if agents := args.Get(0); agents != nil {
		return agents.([]model.Agent), args.Error(1)
	}
	return nil, args.Error(1)
}

// RingGroupAvailability mocks the RingGroupAvailability method
func (m *ClientMock) RingGroupAvailability(ctx context.Context, ringGroupID string) (model.RingGroupAvailability, error) {
	args := m.Called(ctx, ringGroupID)
	return args.Get(0).(model.RingGroupAvailability), args.Error(1)
}
