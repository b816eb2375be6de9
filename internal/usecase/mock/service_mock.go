package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/usecase"
)

// ContactServiceMock is a mock implementation of usecase.ContactServiceInterface
type ContactServiceMock struct {
	mock.Mock
}

var _ usecase.ContactServiceInterface = (*ContactServiceMock)(nil)

// Upsert mocks the Upsert method
func (m *ContactServiceMock) Upsert(ctx context.Context, payload model.UpsertContactPayload) (model.Contact, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(model.Contact), args.Error(1)
}

// Remove mocks the Remove method
func (m *ContactServiceMock) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Get mocks the Get method
func (m *ContactServiceMock) Get(ctx context.Context, id string) (model.Contact, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Contact), args.Error(1)
}

// List mocks the List method
func (m *ContactServiceMock) List(ctx context.Context) []model.Contact {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.Contact)
}

// Search mocks the Search method
func (m *ContactServiceMock) Search(ctx context.Context, query string) []model.Contact {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.Contact)
}

// Enrich mocks the Enrich method
func (m *ContactServiceMock) Enrich(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Count mocks the Count method
func (m *ContactServiceMock) Count() int {
	args := m.Called()
	return args.Int(0)
}

// Messages mocks the Messages method
func (m *ContactServiceMock) Messages(ctx context.Context, contactID string) ([]model.Message, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

// Enrollments mocks the Enrollments method
func (m *ContactServiceMock) Enrollments(ctx context.Context, contactID string) ([]model.Enrollment, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Enrollment), args.Error(1)
}

// Sequences mocks the Sequences method
func (m *ContactServiceMock) Sequences(ctx context.Context) []model.Sequence {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.Sequence)
}

// ActionServiceMock is a mock implementation of usecase.ActionServiceInterface
type ActionServiceMock struct {
	mock.Mock
}

var _ usecase.ActionServiceInterface = (*ActionServiceMock)(nil)

// SendSMS mocks the SendSMS method
func (m *ActionServiceMock) SendSMS(ctx context.Context, contactID string, payload model.SendSMSPayload) (model.ActionResponse, error) {
	args := m.Called(ctx, contactID, payload)
	return args.Get(0).(model.ActionResponse), args.Error(1)
}

// StartCall mocks the StartCall method
func (m *ActionServiceMock) StartCall(ctx context.Context, contactID string, payload model.StartCallPayload) (model.ActionResponse, error) {
	args := m.Called(ctx, contactID, payload)
	return args.Get(0).(model.ActionResponse), args.Error(1)
}

// EnrollInSequence mocks the EnrollInSequence method
func (m *ActionServiceMock) EnrollInSequence(ctx context.Context, contactID, sequenceID string) (model.ActionResponse, error) {
	args := m.Called(ctx, contactID, sequenceID)
	return args.Get(0).(model.ActionResponse), args.Error(1)
}

// DisenrollFromSequence mocks the DisenrollFromSequence method
func (m *ActionServiceMock) DisenrollFromSequence(ctx context.Context, contactID string) (model.ActionResponse, error) {
	args := m.Called(ctx, contactID)
	return args.Get(0).(model.ActionResponse), args.Error(1)
}

// ListAgents mocks the ListAgents method
func (m *ActionServiceMock) ListAgents(ctx context.Context) ([]model.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Agent), args.Error(1)
}

// InboxAvailability mocks the InboxAvailability method
func (m *ActionServiceMock) InboxAvailability(ctx context.Context, ringGroupID string) (model.RingGroupAvailability, error) {
	args := m.Called(ctx, ringGroupID)
	return args.Get(0).(model.RingGroupAvailability), args.Error(1)
}
