package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyIDRoundTrip(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrCompanyIDNotFound)

	ctx := WithCompanyID(context.Background(), "acme")
	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", got)

	_, err = FromContext(WithCompanyID(context.Background(), ""))
	assert.ErrorIs(t, err, ErrCompanyIDNotFound)
}

func TestRequestIDRoundTrip(t *testing.T) {
	_, err := FromRequestIDContext(context.Background())
	assert.ErrorIs(t, err, ErrNoRequestIDInContext)

	got, err := FromRequestIDContext(WithRequestID(context.Background(), "req-1"))
	require.NoError(t, err)
	assert.Equal(t, "req-1", got)
}

func TestCompanyFromSubject(t *testing.T) {
	got, err := CompanyFromSubject("v1.contacts.upserted.acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got)

	for _, bad := range []string{"", "nodots", "v1.contacts.upserted."} {
		_, err := CompanyFromSubject(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateCompany(t *testing.T) {
	ctx := WithCompanyID(context.Background(), "acme")

	assert.NoError(t, ValidateCompany(ctx, ""))
	assert.NoError(t, ValidateCompany(ctx, "acme"))
	assert.ErrorIs(t, ValidateCompany(ctx, "other"), ErrCompanyMismatch)
	assert.ErrorIs(t, ValidateCompany(context.Background(), "acme"), ErrCompanyIDNotFound)
}
