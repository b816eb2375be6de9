package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	pgtc "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

const DefaultCompanyID = "defaultcompanyid"

// consumerSeq gives every processor in the run its own durable consumer.
var consumerSeq atomic.Int64

// BaseIntegrationSuite sets up the core infrastructure (Postgres, NATS).
type BaseIntegrationSuite struct {
	suite.Suite
	Postgres          testcontainers.Container
	PostgresDSN       string
	NATS              testcontainers.Container
	NATSURL           string
	CompanyID         string
	CompanySchemaName string
	Ctx               context.Context
	cancel            context.CancelFunc
}

// SetupSuite runs once before the tests in the suite are run.
func (s *BaseIntegrationSuite) SetupSuite() {
	s.Ctx, s.cancel = context.WithCancel(context.Background())
	logger.Log = zaptest.NewLogger(s.T()).Named("BaseIntegrationSuite")
	startTime := time.Now()
	var err error

	s.CompanyID = os.Getenv("TEST_COMPANY_ID")
	if s.CompanyID == "" {
		s.CompanyID = DefaultCompanyID
		log.Printf("TEST_COMPANY_ID not set, using default %q", s.CompanyID)
	}

	s.Postgres, s.PostgresDSN, err = startPostgres(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start postgres: %v", err)
	}

	s.NATS, s.NATSURL, err = startNATSContainer(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start NATS: %v", err)
	}

	s.CompanySchemaName = storage.SchemaName(s.CompanyID)
	s.Require().NoError(s.ExecuteNonQuery(s.Ctx, fmt.Sprintf(contactsTableDDL, s.CompanySchemaName, s.CompanySchemaName)))

	log.Printf("BaseIntegrationSuite setup complete in %v", time.Since(startTime))
}

// TearDownSuite runs once after all tests in the suite have finished.
func (s *BaseIntegrationSuite) TearDownSuite() {
	if s.NATS != nil {
		if err := s.NATS.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating NATS container: %v", err)
		}
	}
	if s.Postgres != nil {
		if err := s.Postgres.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating PostgreSQL container: %v", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// SetupTest empties the contacts table.
func (s *BaseIntegrationSuite) SetupTest() {
	err := s.ExecuteNonQuery(s.Ctx, fmt.Sprintf(`TRUNCATE TABLE %q.contacts`, s.CompanySchemaName))
	s.Require().NoError(err, "Failed to truncate contacts table")
}

// ExecuteNonQuery runs a statement against the suite database.
func (s *BaseIntegrationSuite) ExecuteNonQuery(ctx context.Context, statement string, args ...interface{}) error {
	db, err := sql.Open("pgx", s.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, statement, args...); err != nil {
		return fmt.Errorf("failed to execute SQL statement: %w", err)
	}
	return nil
}

// InsertContact writes one row into the tenant contacts table.
func (s *BaseIntegrationSuite) InsertContact(c model.Contact) {
	stmt := fmt.Sprintf(`INSERT INTO %q.contacts
		(id, first_name, last_name, name, phone_number, email, city, state, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, s.CompanySchemaName)

	tags := `[]`
	if len(c.Tags) > 0 {
		tags = fmt.Sprintf(`[%q]`, c.Tags[0])
	}
	s.Require().NoError(s.ExecuteNonQuery(s.Ctx, stmt,
		c.ID, c.FirstName, c.LastName, c.Name, c.PhoneNumber, c.Email, c.City, c.State, tags))
}

// Config returns a service configuration pointing at the suite containers.
// Each call names a fresh durable consumer.
func (s *BaseIntegrationSuite) Config() *config.Config {
	var cfg config.Config
	cfg.Company.ID = s.CompanyID
	cfg.Loader.Source = config.SourcePostgres
	cfg.Database.PostgresDSN = s.PostgresDSN
	cfg.NATS = config.ConsumerNatsConfig{
		Enabled:      true,
		URL:          s.NATSURL,
		MaxAge:       1,
		Stream:       "contact_events_stream",
		Consumer:     fmt.Sprintf("contact_events_consumer_%d", consumerSeq.Add(1)),
		InstanceID:   "integration",
		SubjectList:  []string{string(model.V1ContactsUpserted), string(model.V1ContactsRemoved)},
		MaxDeliver:   3,
		NakBaseDelay: 100 * time.Millisecond,
		NakMaxDelay:  time.Second,

		InactiveThreshold: time.Hour,
	}
	return &cfg
}

const contactsTableDDL = `
CREATE SCHEMA IF NOT EXISTS %q;
CREATE TABLE IF NOT EXISTS %q.contacts (
	id           text PRIMARY KEY,
	first_name   text,
	last_name    text,
	name         text,
	phone_number text,
	email        text,
	company_name text,
	lead_source  text,
	city         text,
	state        text,
	country      text,
	timezone     text,
	notes        text,
	tags         jsonb,
	avatar_url   text,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);`

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := pgtc.Run(ctx,
		"postgres:17-bookworm",
		pgtc.WithDatabase("crm_inbox"),
		pgtc.WithUsername("postgres"),
		pgtc.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return pgContainer, "", fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}
	return pgContainer, dsn, nil
}

func startNATSContainer(ctx context.Context) (testcontainers.Container, string, error) {
	natsContainer, err := tcnats.Run(ctx,
		"nats:2.11-alpine",
		tcnats.WithArgument("name", "test-nats-server"),
		tcnats.WithArgument("store_dir", "/data"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS connection string: %w", err)
	}
	return natsContainer, natsURL, nil
}
