package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

type contactUpdaterMock struct {
	mock.Mock
}

func (m *contactUpdaterMock) Upsert(ctx context.Context, payload model.UpsertContactPayload) (model.Contact, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(model.Contact), args.Error(1)
}

func (m *contactUpdaterMock) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func handlerContext(t *testing.T) context.Context {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	return tenant.WithCompanyID(ctx, "tenantA")
}

func TestContactEventHandler_Register(t *testing.T) {
	router := NewRouter()
	NewContactEventHandler(new(contactUpdaterMock)).Register(router)

	assert.Contains(t, router.handlers, model.V1ContactsUpserted)
	assert.Contains(t, router.handlers, model.V1ContactsRemoved)
}

func TestContactEventHandler_HandleUpserted(t *testing.T) {
	metadata := &model.MessageMetadata{NumDelivered: 1}
	payload := model.UpsertContactPayload{ID: "+15550001", PhoneNumber: "+15550001", FirstName: "Ada"}

	t.Run("applies the contact", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		updater.On("Upsert", mock.Anything, payload).Return(payload.ToContact(), nil)
		h := NewContactEventHandler(updater)

		raw := []byte(`{"company_id":"tenantA","contact":{"id":"+15550001","phone_number":"+15550001","first_name":"Ada"}}`)
		err := h.HandleUpserted(handlerContext(t), model.V1ContactsUpserted, metadata, raw)

		assert.NoError(t, err)
		updater.AssertExpectations(t)
	})

	t.Run("missing company id inherits the subject's", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		updater.On("Upsert", mock.Anything, payload).Return(payload.ToContact(), nil)
		h := NewContactEventHandler(updater)

		raw := []byte(`{"contact":{"id":"+15550001","phone_number":"+15550001","first_name":"Ada"}}`)
		assert.NoError(t, h.HandleUpserted(handlerContext(t), model.V1ContactsUpserted, metadata, raw))
	})

	t.Run("malformed json is fatal", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		h := NewContactEventHandler(updater)

		err := h.HandleUpserted(handlerContext(t), model.V1ContactsUpserted, metadata, []byte(`{"contact":`))

		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err))
		updater.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("foreign company is fatal", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		h := NewContactEventHandler(updater)

		raw := []byte(`{"company_id":"tenantB","contact":{"id":"x","phone_number":"+15550001"}}`)
		err := h.HandleUpserted(handlerContext(t), model.V1ContactsUpserted, metadata, raw)

		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err))
		assert.ErrorIs(t, err, tenant.ErrCompanyMismatch)
		updater.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("updater error is returned as is", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		wantErr := apperrors.NewRetryable(errors.New("busy"), "upsert")
		updater.On("Upsert", mock.Anything, mock.Anything).Return(model.Contact{}, wantErr)
		h := NewContactEventHandler(updater)

		raw := []byte(`{"contact":{"id":"+15550001","phone_number":"+15550001"}}`)
		err := h.HandleUpserted(handlerContext(t), model.V1ContactsUpserted, metadata, raw)

		assert.Equal(t, wantErr, err)
	})
}

func TestContactEventHandler_HandleRemoved(t *testing.T) {
	metadata := &model.MessageMetadata{NumDelivered: 1}

	t.Run("removes the contact", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		updater.On("Remove", mock.Anything, "c1").Return(nil)
		h := NewContactEventHandler(updater)

		err := h.HandleRemoved(handlerContext(t), model.V1ContactsRemoved, metadata, []byte(`{"contact_id":"c1"}`))

		assert.NoError(t, err)
		updater.AssertExpectations(t)
	})

	t.Run("unknown contact is acknowledged", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		updater.On("Remove", mock.Anything, "ghost").Return(fmt.Errorf("contact ghost: %w", apperrors.ErrNotFound))
		h := NewContactEventHandler(updater)

		err := h.HandleRemoved(handlerContext(t), model.V1ContactsRemoved, metadata, []byte(`{"contact_id":"ghost"}`))

		assert.NoError(t, err)
	})

	t.Run("missing contact id is fatal", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		h := NewContactEventHandler(updater)

		err := h.HandleRemoved(handlerContext(t), model.V1ContactsRemoved, metadata, []byte(`{}`))

		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err))
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("malformed json is fatal", func(t *testing.T) {
		h := NewContactEventHandler(new(contactUpdaterMock))

		err := h.HandleRemoved(handlerContext(t), model.V1ContactsRemoved, metadata, []byte(`nope`))

		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err))
	})

	t.Run("other errors propagate", func(t *testing.T) {
		updater := new(contactUpdaterMock)
		wantErr := errors.New("boom")
		updater.On("Remove", mock.Anything, "c1").Return(wantErr)
		h := NewContactEventHandler(updater)

		err := h.HandleRemoved(handlerContext(t), model.V1ContactsRemoved, metadata, []byte(`{"contact_id":"c1"}`))

		assert.ErrorIs(t, err, wantErr)
	})
}
