package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/contactindex"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	webhookmock "gitlab.com/timkado/api/daisi-crm-inbox/internal/webhook/mock"
)

func setupActionService(t *testing.T) (*ActionService, *webhookmock.ClientMock) {
	t.Helper()
	index := contactindex.New()
	index.BulkUpsert([]model.Contact{
		{ID: "c1", Name: "Ada", PhoneNumber: "+15550001111"},
		{ID: "12345", Name: "No Phone"},
	})
	client := new(webhookmock.ClientMock)
	return NewActionService(index, client), client
}

func TestActionService_SendSMS(t *testing.T) {
	ctx, _ := observedContext()
	svc, client := setupActionService(t)
	client.On("SendSMS", mock.Anything, "+15550001111", "hello", "").Return(nil).Once()

	resp, err := svc.SendSMS(ctx, "c1", model.SendSMSPayload{Message: "hello"})

	require.NoError(t, err)
	assert.Equal(t, model.ActionResponse{Status: "ok", ContactID: "c1", Action: ActionSendSMS}, resp)
	client.AssertExpectations(t)
}

func TestActionService_SendSMS_Errors(t *testing.T) {
	ctx, _ := observedContext()

	t.Run("empty message", func(t *testing.T) {
		svc, client := setupActionService(t)
		_, err := svc.SendSMS(ctx, "c1", model.SendSMSPayload{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		client.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown contact makes no call", func(t *testing.T) {
		svc, client := setupActionService(t)
		_, err := svc.SendSMS(ctx, "ghost", model.SendSMSPayload{Message: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		client.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("webhook failure", func(t *testing.T) {
		svc, client := setupActionService(t)
		client.On("SendSMS", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: status 500", apperrors.ErrWebhook))
		_, err := svc.SendSMS(ctx, "c1", model.SendSMSPayload{Message: "hi"})
		assert.True(t, apperrors.IsWebhookError(err))
	})
}

func TestActionService_StartCall(t *testing.T) {
	ctx, _ := observedContext()
	svc, client := setupActionService(t)
	client.On("StartCall", mock.Anything, "+15550001111", "+15559990000").Return(nil).Once()

	resp, err := svc.StartCall(ctx, "c1", model.StartCallPayload{UserPhoneNumber: "+15559990000"})

	require.NoError(t, err)
	assert.Equal(t, ActionStartCall, resp.Action)
	client.AssertExpectations(t)
}

func TestActionService_Sequences(t *testing.T) {
	ctx, _ := observedContext()

	t.Run("enroll by phone number", func(t *testing.T) {
		svc, client := setupActionService(t)
		client.On("EnrollInSequence", mock.Anything, "+15550001111", "seq-1").Return(nil).Once()

		resp, err := svc.EnrollInSequence(ctx, "c1", "seq-1")
		require.NoError(t, err)
		assert.Equal(t, ActionEnroll, resp.Action)
		client.AssertExpectations(t)
	})

	t.Run("enroll falls back to the contact id", func(t *testing.T) {
		svc, client := setupActionService(t)
		client.On("EnrollInSequence", mock.Anything, "12345", "seq-1").Return(nil).Once()

		_, err := svc.EnrollInSequence(ctx, "12345", "seq-1")
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("enroll requires a sequence", func(t *testing.T) {
		svc, _ := setupActionService(t)
		_, err := svc.EnrollInSequence(ctx, "c1", "")
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})

	t.Run("disenroll", func(t *testing.T) {
		svc, client := setupActionService(t)
		client.On("DisenrollFromSequence", mock.Anything, "+15550001111").Return(nil).Once()

		resp, err := svc.DisenrollFromSequence(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, ActionDisenroll, resp.Action)
	})

	t.Run("disenroll unknown contact", func(t *testing.T) {
		svc, _ := setupActionService(t)
		_, err := svc.DisenrollFromSequence(ctx, "ghost")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestActionService_Agents(t *testing.T) {
	ctx, _ := observedContext()
	svc, client := setupActionService(t)

	agents := []model.Agent{{ID: 1, Name: "Agent Smith", AgentStatus: 1}}
	client.On("ListUsers", mock.Anything).Return(agents, nil).Once()
	client.On("RingGroupAvailability", mock.Anything, "rg-1").
		Return(model.RingGroupAvailability{AvailableUsersCount: 2, TotalUsersCount: 3}, nil).Once()

	got, err := svc.ListAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, agents, got)

	avail, err := svc.InboxAvailability(ctx, "rg-1")
	require.NoError(t, err)
	assert.Equal(t, 2, avail.AvailableUsersCount)

	_, err = svc.InboxAvailability(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	client.AssertExpectations(t)
}
