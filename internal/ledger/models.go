package ledger

import (
	"maps"
	"time"
)

// EventType labels what a ledger entry records.
type EventType string

const (
	EventCredentialIssued   EventType = "credential_issued"
	EventCredentialVerified EventType = "credential_verified"
	EventCredentialRejected EventType = "credential_rejected"
	EventCredentialRevoked  EventType = "credential_revoked"
	EventConsentRequested   EventType = "consent_requested"
	EventConsentApproved    EventType = "consent_approved"
	EventConsentDenied      EventType = "consent_denied"
	EventConsentExpired     EventType = "consent_expired"
	EventAuthSucceeded      EventType = "auth_succeeded"
	EventAuthFailed         EventType = "auth_failed"
)

var validEventTypes = map[EventType]bool{
	EventCredentialIssued:   true,
	EventCredentialVerified: true,
	EventCredentialRejected: true,
	EventCredentialRevoked:  true,
	EventConsentRequested:   true,
	EventConsentApproved:    true,
	EventConsentDenied:      true,
	EventConsentExpired:     true,
	EventAuthSucceeded:      true,
	EventAuthFailed:         true,
}

// IsValid checks if the event type is one of the supported enum values.
func (t EventType) IsValid() bool {
	return validEventTypes[t]
}

// Status is the outcome shown in the activity log.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Status derives the outcome of an event: rejections and failed
// authentications are failures, every other event records a success.
func (t EventType) Status() Status {
	switch t {
	case EventCredentialRejected, EventAuthFailed:
		return StatusFailed
	default:
		return StatusSuccess
	}
}

// Payload carries the event details. Keys are hashed in sorted order, so
// map iteration order never affects the entry hash.
type Payload map[string]string

// Clone returns an independent copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	return maps.Clone(p)
}

// Payload keys shared by the services that write to the ledger.
const (
	KeyCredentialID        = "credential_id"
	KeySubjectID           = "subject_id"
	KeyExpiresAt           = "expires_at"
	KeyReason              = "reason"
	KeyRevokedCredentialID = "revoked_credential_id"
	KeyConsentRequestID    = "consent_request_id"
	KeyRequesterID         = "requester_id"
	KeyPurpose             = "purpose"
	KeyRequestedFields     = "requested_fields"
	KeyAuthMethod          = "auth_method"
)

// Entry is one link of the hash chain.
//
// Invariants:
//   - Sequence starts at 0 and has no gaps
//   - PreviousHash equals the EntryHash of Sequence-1 (ZeroHash for genesis)
//   - EntryHash = ComputeHash(Sequence, PreviousHash, EventType, Payload, Timestamp)
type Entry struct {
	Sequence     uint64    `json:"sequence" yaml:"sequence"`
	PreviousHash Hash      `json:"previous_hash" yaml:"previous_hash"`
	EntryHash    Hash      `json:"entry_hash" yaml:"entry_hash"`
	EventType    EventType `json:"event_type" yaml:"event_type"`
	Payload      Payload   `json:"payload" yaml:"payload"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// Status reports the activity-log outcome of the entry.
func (e Entry) Status() Status {
	return e.EventType.Status()
}

// clone returns a copy that shares no mutable state with e.
func (e Entry) clone() Entry {
	e.Payload = e.Payload.Clone()
	return e
}

// Filter narrows ledger listings. Nil fields match everything.
type Filter struct {
	EventType *EventType
	Status    *Status
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Entry) bool {
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.Status != nil && e.Status() != *f.Status {
		return false
	}
	return true
}
