package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/contactindex"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/loader"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/validator"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// ErrEnrichmentDisabled is returned by Enrich when no worker is configured.
var ErrEnrichmentDisabled = fmt.Errorf("enrichment is disabled: %w", apperrors.ErrBadRequest)

// ContactService is the entry point for every read and write of the contact
// index.
type ContactService struct {
	index    *contactindex.ContactIndex
	enricher IEnrichmentWorker

	mu      sync.RWMutex
	callLog loader.CallLogProvider
}

// NewContactService creates a service over index. enricher may be nil.
func NewContactService(index *contactindex.ContactIndex, enricher IEnrichmentWorker) *ContactService {
	return &ContactService{index: index, enricher: enricher}
}

// Load replaces the index content with everything source returns.
func (s *ContactService) Load(ctx context.Context, source loader.ContactSource) (contactindex.BatchResult, error) {
	log := logger.FromContext(ctx)
	start := utils.Now()

	contacts, err := source.ListContacts(ctx)
	if err != nil {
		log.Error("Failed to list contacts from source", zap.Error(err))
		return contactindex.BatchResult{}, apperrors.Classify(err, "load contacts")
	}

	res := s.index.Initialize(contacts)
	s.logRejections(log, SourceLoad, res)

	if p, ok := source.(loader.CallLogProvider); ok {
		s.mu.Lock()
		s.callLog = p
		s.mu.Unlock()
	}

	observer.AddContactUpserts(SourceLoad, res.Accepted)
	observer.SetIndexedContacts(s.index.Len())

	log.Info("Loaded contacts into index",
		zap.Int("accepted", res.Accepted),
		zap.Int("rejected", res.Rejected),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *ContactService) logRejections(log *zap.Logger, source string, res contactindex.BatchResult) {
	for _, e := range res.Errors {
		log.Warn("Rejected contact",
			zap.Int("index", e.Index),
			zap.String("contact_id", e.ID),
			zap.Error(e.Err),
		)
	}
	observer.AddContactRejections(source, res.Rejected)
}

// Upsert validates payload and stores it as the contact's full snapshot.
func (s *ContactService) Upsert(ctx context.Context, payload model.UpsertContactPayload) (model.Contact, error) {
	source := sourceFrom(ctx)
	log := logger.FromContext(ctx).With(zap.String("contact_id", payload.ID), zap.String("source", source))

	if err := validator.Validate(payload); err != nil {
		log.Warn("Contact payload failed validation", zap.Error(err))
		observer.AddContactRejections(source, 1)
		return model.Contact{}, apperrors.NewFatal(err, "upsert contact %q", payload.ID)
	}

	contact := payload.ToContact()
	if err := s.index.Upsert(contact); err != nil {
		observer.AddContactRejections(source, 1)
		return model.Contact{}, apperrors.NewFatal(err, "upsert contact %q", payload.ID)
	}

	observer.AddContactUpserts(source, 1)
	observer.SetIndexedContacts(s.index.Len())
	log.Debug("Upserted contact")
	return contact, nil
}

// BulkUpsert stores every contact it can. Rejections are logged, never fatal.
func (s *ContactService) BulkUpsert(ctx context.Context, contacts []model.Contact) contactindex.BatchResult {
	source := sourceFrom(ctx)
	res := s.index.BulkUpsert(contacts)
	s.logRejections(logger.FromContext(ctx), source, res)

	observer.AddContactUpserts(source, res.Accepted)
	observer.SetIndexedContacts(s.index.Len())
	return res
}

// Remove drops the contact with id.
func (s *ContactService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("contact id is required: %w", apperrors.ErrBadRequest)
	}
	if !s.index.Remove(id) {
		return fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
	}

	observer.IncContactRemovals(sourceFrom(ctx))
	observer.SetIndexedContacts(s.index.Len())
	logger.FromContext(ctx).Debug("Removed contact", zap.String("contact_id", id))
	return nil
}

// Get returns the contact with id.
func (s *ContactService) Get(_ context.Context, id string) (model.Contact, error) {
	c, ok := s.index.Get(id)
	if !ok {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
	}
	return c, nil
}

// List returns every contact in index order.
func (s *ContactService) List(_ context.Context) []model.Contact {
	start := time.Now()
	out := s.index.All()
	observer.ObserveSearch(time.Since(start), len(out))
	return out
}

// Search returns the contacts matching every term of query.
func (s *ContactService) Search(ctx context.Context, query string) []model.Contact {
	start := time.Now()
	out := s.index.Search(query)
	duration := time.Since(start)

	observer.ObserveSearch(duration, len(out))
	logger.FromContext(ctx).Debug("Searched contacts",
		zap.String("query", query),
		zap.Int("results", len(out)),
		zap.Duration("duration", duration),
	)
	return out
}

// Count returns the number of indexed contacts.
func (s *ContactService) Count() int {
	return s.index.Len()
}

// Enrich queues a location lookup for the contact with id.
func (s *ContactService) Enrich(ctx context.Context, id string) error {
	if s.enricher == nil {
		return ErrEnrichmentDisabled
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.enricher.SubmitTask(EnrichmentTask{
		Ctx:         context.WithoutCancel(ctx),
		ContactID:   c.ID,
		PhoneNumber: c.PhoneNumber,
	})
}

func (s *ContactService) loadedCallLog() *loader.CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.callLog == nil {
		return nil
	}
	return s.callLog.CallLog()
}

// Messages returns the thread of the contact with id, oldest first.
func (s *ContactService) Messages(ctx context.Context, contactID string) ([]model.Message, error) {
	if _, err := s.Get(ctx, contactID); err != nil {
		return nil, err
	}
	return s.loadedCallLog().MessagesFor(contactID), nil
}

// Enrollments returns the sequence enrollments of the contact with id.
func (s *ContactService) Enrollments(ctx context.Context, contactID string) ([]model.Enrollment, error) {
	if _, err := s.Get(ctx, contactID); err != nil {
		return nil, err
	}
	return s.loadedCallLog().EnrollmentsFor(contactID), nil
}

// Sequences returns the known outreach sequences.
func (s *ContactService) Sequences(_ context.Context) []model.Sequence {
	cl := s.loadedCallLog()
	if cl == nil || cl.Sequences == nil {
		return []model.Sequence{}
	}
	return cl.Sequences
}
