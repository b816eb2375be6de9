package usecase

import (
	"context"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/contactindex"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

// Sources label contact mutations in logs and metrics.
const (
	SourceAPI        = "api"
	SourceEvent      = "event"
	SourceEnrichment = "enrichment"
	SourceLoad       = "load"
)

type sourceKey struct{}

// WithSource tags ctx with the origin of the contact mutations made under it.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// sourceFrom returns the origin stored by WithSource, SourceAPI by default.
func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAPI
}

// ContactStore is the part of the contact index the workers depend on.
type ContactStore interface {
	Get(id string) (model.Contact, bool)
	Update(id string, fn func(c *model.Contact) bool) (model.Contact, error)
}

// ContactPublisher announces contact snapshots changed by this service to
// the other replicas.
type ContactPublisher interface {
	PublishUpserted(ctx context.Context, contact model.Contact) error
}

var _ ContactStore = (*contactindex.ContactIndex)(nil)

// ContactServiceInterface is what the HTTP API needs from the contact service.
type ContactServiceInterface interface {
	Upsert(ctx context.Context, payload model.UpsertContactPayload) (model.Contact, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.Contact, error)
	List(ctx context.Context) []model.Contact
	Search(ctx context.Context, query string) []model.Contact
	Enrich(ctx context.Context, id string) error
	Count() int
	Messages(ctx context.Context, contactID string) ([]model.Message, error)
	Enrollments(ctx context.Context, contactID string) ([]model.Enrollment, error)
	Sequences(ctx context.Context) []model.Sequence
}

// ActionServiceInterface is what the HTTP API needs to act on contacts.
type ActionServiceInterface interface {
	SendSMS(ctx context.Context, contactID string, payload model.SendSMSPayload) (model.ActionResponse, error)
	StartCall(ctx context.Context, contactID string, payload model.StartCallPayload) (model.ActionResponse, error)
	EnrollInSequence(ctx context.Context, contactID, sequenceID string) (model.ActionResponse, error)
	DisenrollFromSequence(ctx context.Context, contactID string) (model.ActionResponse, error)
	ListAgents(ctx context.Context) ([]model.Agent, error)
	InboxAvailability(ctx context.Context, ringGroupID string) (model.RingGroupAvailability, error)
}

var (
	_ ContactServiceInterface = (*ContactService)(nil)
	_ ActionServiceInterface  = (*ActionService)(nil)
)
