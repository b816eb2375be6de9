package storage

import (
	"context"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

// ContactRepo defines the read operations on persisted contacts
type ContactRepo interface {
	ListContacts(ctx context.Context) ([]model.Contact, error)
	FindContactByID(ctx context.Context, id string) (*model.Contact, error)
	Close(ctx context.Context) error
}

var _ ContactRepo = (*PostgresRepo)(nil)
