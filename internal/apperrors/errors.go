// Package apperrors holds the error sentinels shared by the contact service
// and the retryable/fatal marks that drive retries and message settlement.
package apperrors

import (
	"errors"
	"fmt"
)

// RetryableError marks a failure worth retrying: an event is redelivered
// later and a load is attempted again.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps err as retryable, prefixed with the formatted message.
func NewRetryable(err error, format string, args ...interface{}) error {
	return &RetryableError{Err: fmt.Errorf(format+": %w", append(args, err)...)}
}

// FatalError marks a failure that repeats on every attempt, such as a bad
// payload or a missing call-log file.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps err as fatal, prefixed with the formatted message.
func NewFatal(err error, format string, args ...interface{}) error {
	return &FatalError{Err: fmt.Errorf(format+": %w", append(args, err)...)}
}

var (
	// ErrNotFound: unknown contact, sequence or database row.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation: a contact or payload failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrDatabase: the Postgres contact source failed.
	ErrDatabase = errors.New("database error")
	// ErrNATS: publishing or subscribing on JetStream failed.
	ErrNATS = errors.New("nats communication error")
	// ErrUnauthorized: the database role may not read the tenant schema.
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrBadRequest: malformed input from a caller, an event or a loader file.
	ErrBadRequest = errors.New("bad request")
	// ErrTimeout: an operation ran past its deadline.
	ErrTimeout = errors.New("operation timeout")
	// ErrRateLimited: the enrichment pool is full.
	ErrRateLimited = errors.New("rate limited")
	// ErrWebhook: the phone-system webhook API failed or rejected a call.
	ErrWebhook = errors.New("webhook request failed")
)

// IsRetryable reports whether err carries a RetryableError.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// Classify marks err for a retry loop running op. Marks already present are
// kept. Outages of a backing service (database, NATS, timeouts, a full pool)
// are retryable; everything else, bad input and refused access included, is
// fatal.
func Classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case IsRetryable(err), IsFatal(err):
		return err
	case IsDatabaseError(err), IsNATSError(err), IsTimeoutError(err), IsRateLimitedError(err):
		return NewRetryable(err, op)
	default:
		return NewFatal(err, op)
	}
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsNATSError(err error) bool {
	return errors.Is(err, ErrNATS)
}

func IsUnauthorizedError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsRateLimitedError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsWebhookError(err error) bool {
	return errors.Is(err, ErrWebhook)
}
