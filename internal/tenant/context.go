package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Key for tenant ID in context
type contextKey string

const (
	companyIDKey contextKey = "companyID"
	requestIDKey contextKey = "requestID"
)

// ErrCompanyIDNotFound is returned when tenant ID is not found in context
var ErrCompanyIDNotFound = errors.New("company ID not found in context")

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// ErrCompanyMismatch is returned when an event belongs to another tenant.
var ErrCompanyMismatch = errors.New("company ID mismatch")

// WithCompanyID adds a tenant ID to the context
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

// FromContext extracts the tenant ID from the context
func FromContext(ctx context.Context) (string, error) {
	companyID, ok := ctx.Value(companyIDKey).(string)
	if !ok || companyID == "" {
		return "", ErrCompanyIDNotFound
	}
	return companyID, nil
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}

// CompanyFromSubject returns the company token of a tenant subject such as
// "v1.contacts.upserted.<company_id>".
func CompanyFromSubject(subject string) (string, error) {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 || i == len(subject)-1 {
		return "", fmt.Errorf("subject %q has no company suffix", subject)
	}
	return subject[i+1:], nil
}

// ValidateCompany checks that companyID, when given, matches the tenant in ctx.
func ValidateCompany(ctx context.Context, companyID string) error {
	if companyID == "" {
		return nil
	}

	expected, err := FromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tenant ID: %w", err)
	}
	if companyID != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrCompanyMismatch, companyID, expected)
	}
	return nil
}
