package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// ListContacts mocks the ListContacts method
func (m *ContactRepoMock) ListContacts(ctx context.Context) ([]model.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// FindContactByID mocks the FindContactByID method
func (m *ContactRepoMock) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// Close mocks the Close method
func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
