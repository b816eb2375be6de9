package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

const contactEntity = "contact"

// ListContacts returns every contact row of the tenant schema, oldest first.
func (r *PostgresRepo) ListContacts(ctx context.Context) ([]model.Contact, error) {
	start := time.Now()
	companyID, _ := tenant.FromContext(ctx)

	var records []model.ContactRecord
	operation := func() error {
		records = records[:0]
		return r.db.WithContext(ctx).Order("created_at, id").Find(&records).Error
	}

	err := retryableOperation(ctx, newRetryPolicy(ctx, readRetryMaxElapsedTime), "ListContacts", operation)
	observer.ObserveDbOperationDuration("list", contactEntity, companyID, time.Since(start), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to list contacts", zap.Error(err))
		return nil, fmt.Errorf("failed to list contacts: %w", mapDBError(err))
	}

	contacts := make([]model.Contact, 0, len(records))
	for _, rec := range records {
		contacts = append(contacts, rec.ToContact())
	}
	logger.FromContext(ctx).Debug("Listed contacts", zap.Int("count", len(contacts)))
	return contacts, nil
}

// FindContactByID returns one contact row by primary key.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: contact id is empty", apperrors.ErrBadRequest)
	}
	start := time.Now()
	companyID, _ := tenant.FromContext(ctx)

	var record model.ContactRecord
	operation := func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	}

	err := retryableOperation(ctx, newRetryPolicy(ctx, readRetryMaxElapsedTime), "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find", contactEntity, companyID, time.Since(start), err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find contact %s: %w", id, mapDBError(err))
	}

	contact := record.ToContact()
	return &contact, nil
}
