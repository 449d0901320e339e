package models

import (
	"slices"
	"time"

	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
)

// Status is the lifecycle state of a consent request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusExpired:
		return true
	default:
		return false
	}
}

// IsDecided reports whether the request has left pending. Decided requests
// are immutable.
func (s Status) IsDecided() bool {
	return s != StatusPending
}

// Request is a third party's request to read fields from the wallet.
//
// Invariants:
//   - ExpiresAt is after CreatedAt
//   - RequestedFields is non-empty and has no duplicates
//   - only pending may transition, to approved, denied or expired
//   - DecidedAt is set exactly when Status is not pending
type Request struct {
	ID              id.ConsentRequestID `json:"id"`
	RequesterID     id.RequesterID      `json:"requester_id"`
	RequesterName   string              `json:"requester_name,omitempty"`
	Purpose         string              `json:"purpose"`
	RequestedFields []string            `json:"requested_fields"`
	CreatedAt       time.Time           `json:"created_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
	Status          Status              `json:"status"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
}

// NewRequest creates a pending Request with domain invariant checks.
func NewRequest(
	requestID id.ConsentRequestID,
	requesterID id.RequesterID,
	requesterName, purpose string,
	fields []string,
	createdAt, expiresAt time.Time,
) (*Request, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent request ID required")
	}
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester ID required")
	}
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "at least one requested field required")
	}
	if createdAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creation time required")
	}
	if !expiresAt.After(createdAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry must be after creation time")
	}
	return &Request{
		ID:              requestID,
		RequesterID:     requesterID,
		RequesterName:   requesterName,
		Purpose:         purpose,
		RequestedFields: slices.Clone(fields),
		CreatedAt:       createdAt,
		ExpiresAt:       expiresAt,
		Status:          StatusPending,
	}, nil
}

// IsExpiredAt reports whether a pending request has passed its expiry.
// Decided requests never expire.
func (r *Request) IsExpiredAt(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ExpiresAt)
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	c := *r
	c.RequestedFields = slices.Clone(r.RequestedFields)
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

// Decision is a subject's answer to a pending request.
type Decision bool

const (
	Approve Decision = true
	Deny    Decision = false
)

// Status returns the status the decision moves a request to.
func (d Decision) Status() Status {
	if d {
		return StatusApproved
	}
	return StatusDenied
}

// Filter narrows consent listings. A nil status matches everything.
type Filter struct {
	Status      *Status
	RequesterID id.RequesterID
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *Request) bool {
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if !f.RequesterID.IsNil() && r.RequesterID != f.RequesterID {
		return false
	}
	return true
}

// CreateRequest is the input for opening a consent request. Length and
// count limits are enforced by the service against pkg/platform/validation.
type CreateRequest struct {
	RequesterID     string        `validate:"required,notblank"`
	RequesterName   string
	Purpose         string        `validate:"required,notblank"`
	RequestedFields []string      `validate:"required,min=1,dive,notblank"`
	TTL             time.Duration `validate:"gte=0"`
}
