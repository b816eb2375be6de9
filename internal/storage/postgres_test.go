package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// --- Test Helpers ---

// newMockDB creates a sqlmock-backed GORM instance. Queries are matched
// verbatim, so expectations spell out the SQL GORM generates.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	teardown := func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	}

	return gormDB, mock, teardown
}

// --- Test Cases ---

func TestIsTransientError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil error", err: nil, expected: false},
		{name: "Context deadline exceeded", err: context.DeadlineExceeded, expected: true},
		{name: "Wrapped Context deadline exceeded", err: fmt.Errorf("operation failed: %w", context.DeadlineExceeded), expected: true},
		{name: "GORM Record Not Found", err: gorm.ErrRecordNotFound, expected: false},
		{name: "GORM Invalid Transaction", err: gorm.ErrInvalidTransaction, expected: false},
		{name: "PG Error - Connection Exception (08000)", err: &pgconn.PgError{Code: "08000"}, expected: true},
		{name: "PG Error - Insufficient Resources (53100)", err: &pgconn.PgError{Code: "53100"}, expected: true},
		{name: "PG Error - Deadlock Detected (40P01)", err: &pgconn.PgError{Code: "40P01"}, expected: true},
		{name: "PG Error - Serialization Failure (40001)", err: &pgconn.PgError{Code: "40001"}, expected: true},
		{name: "PG Error - Syntax Error (42601)", err: &pgconn.PgError{Code: "42601"}, expected: false},
		{name: "Network Error - Connection Refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), expected: true},
		{name: "Network Error - I/O Timeout", err: errors.New("read tcp 10.0.0.1:1234->10.0.0.2:5432: i/o timeout"), expected: true},
		{name: "Network Error - Broken Pipe", err: errors.New("write: broken pipe"), expected: true},
		{name: "Network Error - DB Starting Up", err: errors.New("pq: the database system is starting up"), expected: true},
		{name: "Generic Non-Transient Error", err: errors.New("some other database error"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransientError(tc.err))
		})
	}
}

func TestMapDBError(t *testing.T) {
	assert.NoError(t, mapDBError(nil))

	testCases := []struct {
		name   string
		err    error
		target error
	}{
		{name: "Not found", err: gorm.ErrRecordNotFound, target: apperrors.ErrNotFound},
		{name: "Deadline", err: context.DeadlineExceeded, target: apperrors.ErrTimeout},
		{name: "Missing table", err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}, target: apperrors.ErrDatabase},
		{name: "Permission denied", err: &pgconn.PgError{Code: "42501"}, target: apperrors.ErrUnauthorized},
		{name: "Connection", err: &pgconn.PgError{Code: "08006"}, target: apperrors.ErrDatabase},
		{name: "Other pg code", err: &pgconn.PgError{Code: "42601"}, target: apperrors.ErrDatabase},
		{name: "Generic", err: errors.New("boom"), target: apperrors.ErrDatabase},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapDBError(tc.err)
			assert.ErrorIs(t, mapped, tc.target)
			assert.ErrorIs(t, mapped, tc.err)
		})
	}
}

func TestTenantNamer(t *testing.T) {
	namer := tenantNamer{schemaName: SchemaName("acme")}
	assert.Equal(t, `"daisi_acme".contacts`, namer.TableName("contacts"))
	assert.Equal(t, "daisi_acme", SchemaName("acme"))
}

func TestNewPostgresRepo_RequiresCompanyID(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")

	repo, err := NewPostgresRepo("host=localhost", "")
	assert.Nil(t, repo)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestRetryableOperation(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	ctx := context.Background()

	t.Run("Transient error is retried", func(t *testing.T) {
		calls := 0
		err := retryableOperation(ctx, newRetryPolicy(ctx, readRetryMaxElapsedTime), "test", func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Permanent error stops immediately", func(t *testing.T) {
		calls := 0
		err := retryableOperation(ctx, newRetryPolicy(ctx, readRetryMaxElapsedTime), "test", func() error {
			calls++
			return gorm.ErrRecordNotFound
		})
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("Cancelled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := retryableOperation(cctx, newRetryPolicy(cctx, readRetryMaxElapsedTime), "test", func() error {
			return errors.New("i/o timeout")
		})
		assert.Error(t, err)
	})
}

func TestPostgresRepo_Close(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}

		mock.ExpectClose()

		assert.NoError(t, repo.Close(context.Background()))
	})

	t.Run("Close Fails", func(t *testing.T) {
		gormDB, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)
		repo := &PostgresRepo{db: gormDB}

		mock.ExpectClose().WillReturnError(errors.New("db close error"))

		err := repo.Close(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to close SQL DB")
		assert.Contains(t, err.Error(), "db close error")
	})
}
