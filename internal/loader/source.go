// Package loader provides the contact sources used to seed the index at
// startup.
package loader

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// ContactSource yields the full contact set used by a bulk load.
type ContactSource interface {
	ListContacts(ctx context.Context) ([]model.Contact, error)
}

// CallLogProvider is implemented by sources that also expose message threads,
// sequences and enrollments.
type CallLogProvider interface {
	CallLog() *CallLog
}

// CSVSource loads contacts from a call-log export on disk. Every ListContacts
// call re-reads the file.
type CSVSource struct {
	path string

	mu   sync.RWMutex
	last *CallLog
}

// NewCSVSource creates a source reading path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// ListContacts parses the export and returns its contacts.
func (s *CSVSource) ListContacts(ctx context.Context) ([]model.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open call log %s: %w", apperrors.ErrBadRequest, s.path, err)
	}
	defer f.Close()

	callLog, err := ParseCallLog(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.last = callLog
	s.mu.Unlock()

	logger.FromContext(ctx).Info("Parsed call log",
		zap.String("path", s.path),
		zap.Int("contacts", len(callLog.Contacts)),
		zap.Int("messages", len(callLog.Messages)),
		zap.Int("sequences", len(callLog.Sequences)),
		zap.Int("enrollments", len(callLog.Enrollments)),
	)
	return callLog.Contacts, nil
}

// CallLog returns the result of the last successful parse, or an empty log.
func (s *CSVSource) CallLog() *CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return &CallLog{}
	}
	return s.last
}

// MockSource generates fake contacts.
type MockSource struct {
	count int
}

// NewMockSource creates a source generating count contacts per load.
func NewMockSource(count int) *MockSource {
	return &MockSource{count: count}
}

// ListContacts returns freshly generated contacts.
func (s *MockSource) ListContacts(ctx context.Context) ([]model.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.count <= 0 {
		return []model.Contact{}, nil
	}
	return model.NewContacts(s.count), nil
}

// EmptySource starts the service with no contacts.
type EmptySource struct{}

// ListContacts always returns an empty set.
func (EmptySource) ListContacts(context.Context) ([]model.Contact, error) {
	return []model.Contact{}, nil
}

// NewSource builds the source selected by cfg.Loader.Source. The returned
// close function releases any connection the source holds.
func NewSource(cfg *config.Config) (ContactSource, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Loader.Source {
	case config.SourceCSV:
		return NewCSVSource(cfg.Loader.CSVPath), noop, nil
	case config.SourcePostgres:
		repo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Company.ID)
		if err != nil {
			return nil, noop, err
		}
		return repo, repo.Close, nil
	case config.SourceMock:
		return NewMockSource(cfg.Loader.MockCount), noop, nil
	case config.SourceNone, "":
		return EmptySource{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown loader source %q", apperrors.ErrBadRequest, cfg.Loader.Source)
	}
}
