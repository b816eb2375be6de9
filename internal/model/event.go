package model

import (
	"strings"
	"time"
)

// EventType represents the kinds of contact events carried on the stream.
type EventType string

// Versioned contact event types. Subjects carry the company id as a trailing
// token, e.g. "v1.contacts.upserted.tenant123".
const (
	V1ContactsUpserted EventType = "v1.contacts.upserted"
	V1ContactsRemoved  EventType = "v1.contacts.removed"
)

// MapToBaseEventType maps a subject (with or without a trailing company id)
// back to a known EventType.
func MapToBaseEventType(input string) (EventType, bool) {
	switch EventType(input) {
	case V1ContactsUpserted, V1ContactsRemoved:
		return EventType(input), true
	}

	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	switch base := EventType(input[:lastDotIndex]); base {
	case V1ContactsUpserted, V1ContactsRemoved:
		return base, true
	default:
		return "", false
	}
}

// GetVersion extracts the version prefix ("v1") or returns "".
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}
	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}
	return ""
}

// GetBaseType returns the event type without the version prefix.
// For example: "v1.contacts.upserted" -> "contacts.upserted"
func (e EventType) GetBaseType() EventType {
	version := e.GetVersion()
	if version == "" {
		return e
	}
	return EventType(strings.TrimPrefix(string(e), version+"."))
}

// ContactUpsertedEvent is the payload of a V1ContactsUpserted message.
type ContactUpsertedEvent struct {
	CompanyID string               `json:"company_id,omitempty"`
	Contact   UpsertContactPayload `json:"contact" validate:"required"`
}

// ContactRemovedEvent is the payload of a V1ContactsRemoved message.
type ContactRemovedEvent struct {
	CompanyID string `json:"company_id,omitempty"`
	ContactID string `json:"contact_id" validate:"required"`
}

// MessageMetadata carries the JetStream delivery metadata of an event.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	MessageID        string
	MessageSubject   string
	CompanyID        string
}
