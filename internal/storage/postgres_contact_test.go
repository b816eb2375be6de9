package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/tenant"
)

const testTenantIDContact = "tenant-contact-test-789"

var contactColumns = []string{
	"id", "first_name", "last_name", "name", "phone_number", "email", "company_name",
	"lead_source", "city", "state", "country", "timezone", "notes", "tags", "avatar_url",
	"created_at", "updated_at",
}

func contextWithContactTenant() context.Context {
	return tenant.WithCompanyID(context.Background(), testTenantIDContact)
}

func TestPostgresRepo_ListContacts(t *testing.T) {
	query := `SELECT * FROM "contacts" ORDER BY created_at, id`

	t.Run("Success", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}
		now := time.Now()

		rows := sqlmock.NewRows(contactColumns).
			AddRow("+15551234567", "Jane", "Doe", "Jane Doe", "+15551234567", "jane@example.com", "Acme",
				"web", "Austin", "TX", "US", "America/Chicago", "vip lead", []byte(`["vip","lead"]`), "", now, now).
			AddRow("+15559876543", "John", "", "", "+15559876543", "", "",
				"", "", "", "", "", "", []byte(`null`), "", now, now)
		mock.ExpectQuery(query).WillReturnRows(rows)

		contacts, err := repo.ListContacts(contextWithContactTenant())
		require.NoError(t, err)
		require.Len(t, contacts, 2)

		assert.Equal(t, "+15551234567", contacts[0].ID)
		assert.Equal(t, "Jane Doe", contacts[0].Name)
		assert.Equal(t, "Austin", contacts[0].City)
		assert.Equal(t, []string{"vip", "lead"}, contacts[0].Tags)

		assert.Equal(t, "John", contacts[1].FirstName)
		assert.NotNil(t, contacts[1].Tags)
		assert.Empty(t, contacts[1].Tags)
	})

	t.Run("Empty table", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}

		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(contactColumns))

		contacts, err := repo.ListContacts(contextWithContactTenant())
		require.NoError(t, err)
		assert.NotNil(t, contacts)
		assert.Empty(t, contacts)
	})

	t.Run("Transient error retried", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}
		now := time.Now()

		mock.ExpectQuery(query).WillReturnError(errors.New("connection reset by peer"))
		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow("c1", "", "", "Retry", "+15550000000", "", "", "", "", "", "", "", "", []byte(`[]`), "", now, now))

		contacts, err := repo.ListContacts(contextWithContactTenant())
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "Retry", contacts[0].Name)
	})

	t.Run("Permanent error", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}

		mock.ExpectQuery(query).WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "contacts" does not exist`})

		contacts, err := repo.ListContacts(contextWithContactTenant())
		assert.Nil(t, contacts)
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
		assert.Contains(t, err.Error(), "failed to list contacts")
	})
}

func TestPostgresRepo_FindContactByID(t *testing.T) {
	query := `SELECT * FROM "contacts" WHERE id = $1 ORDER BY "contacts"."id" LIMIT $2`

	t.Run("Found", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}
		now := time.Now()

		mock.ExpectQuery(query).WithArgs("c1", 1).WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow("c1", "Ann", "Lee", "Ann Lee", "+15550001111", "", "", "", "Reno", "NV", "", "", "", []byte(`["a"]`), "", now, now))

		contact, err := repo.FindContactByID(contextWithContactTenant(), "c1")
		require.NoError(t, err)
		require.NotNil(t, contact)
		assert.Equal(t, "Ann Lee", contact.Name)
		assert.Equal(t, "NV", contact.State)
		assert.Equal(t, []string{"a"}, contact.Tags)
	})

	t.Run("Not found", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}

		mock.ExpectQuery(query).WithArgs("missing", 1).WillReturnRows(sqlmock.NewRows(contactColumns))

		contact, err := repo.FindContactByID(contextWithContactTenant(), "missing")
		assert.Nil(t, contact)
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("Empty id", func(t *testing.T) {
		gormDB, _, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}

		contact, err := repo.FindContactByID(context.Background(), "")
		assert.Nil(t, contact)
		assert.True(t, apperrors.IsBadRequestError(err))
	})
}
