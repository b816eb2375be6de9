package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

func hasMsgID(headers map[string]string) bool {
	return headers[nats.MsgIdHdr] != ""
}

func TestEventPublisher_PublishUpserted(t *testing.T) {
	mockClient, _ := setupTest(t)
	contact := model.Contact{ID: "+15550001", PhoneNumber: "+15550001", Name: "Ada", Tags: []string{"vip"}}

	var published []byte
	mockClient.On("Publish", "v1.contacts.upserted.tenantA", mock.Anything, mock.MatchedBy(hasMsgID)).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil)

	err := NewEventPublisher(mockClient, "tenantA").PublishUpserted(context.Background(), contact)
	require.NoError(t, err)

	var event model.ContactUpsertedEvent
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, "tenantA", event.CompanyID)
	assert.Equal(t, contact, event.Contact.ToContact())
	mockClient.AssertExpectations(t)
}

func TestEventPublisher_PublishRemoved(t *testing.T) {
	mockClient, _ := setupTest(t)

	var published []byte
	mockClient.On("Publish", "v1.contacts.removed.tenantA", mock.Anything, mock.MatchedBy(hasMsgID)).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil)

	err := NewEventPublisher(mockClient, "tenantA").PublishRemoved(context.Background(), "c1")
	require.NoError(t, err)

	assert.JSONEq(t, `{"company_id":"tenantA","contact_id":"c1"}`, string(published))
}

func TestEventPublisher_PublishError(t *testing.T) {
	mockClient, _ := setupTest(t)
	wantErr := errors.Join(apperrors.ErrNATS, errors.New("no responders"))
	mockClient.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(wantErr)

	err := NewEventPublisher(mockClient, "tenantA").PublishRemoved(context.Background(), "c1")

	assert.ErrorIs(t, err, apperrors.ErrNATS)
}
