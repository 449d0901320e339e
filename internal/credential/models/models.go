package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"time"

	id "idwallet/pkg/domain"
)

// Status is the lifecycle state of a verification credential.
type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired, StatusRevoked:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusUsed || s == StatusExpired || s == StatusRevoked
}

// Credential is a short-lived, single-use verification credential.
type Credential struct {
	ID              id.CredentialID `json:"id"`
	SubjectID       id.SubjectID    `json:"subject_id"`
	IssuedAt        time.Time       `json:"issued_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	Status          Status          `json:"status"`
	PayloadHash     string          `json:"payload_hash"`
	StatusChangedAt time.Time       `json:"status_changed_at"`
}

// IsExpiredAt reports whether the credential's validity window has closed.
// The credential is still valid at exactly ExpiresAt.
func (c *Credential) IsExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RemainingAt returns the validity left at now, never negative.
func (c *Credential) RemainingAt(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// MatchesHash compares presented against the issued payload hash in
// constant time.
func (c *Credential) MatchesHash(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(c.PayloadHash), []byte(presented)) == 1
}

const payloadHashPrefix = "sha256:"

// ComputePayloadHash binds a credential to its subject, issuance instant and
// id. Every field is length-prefixed; the timestamp is UTC nanoseconds.
func ComputePayloadHash(subjectID id.SubjectID, issuedAt time.Time, credentialID id.CredentialID) string {
	buf := make([]byte, 0, 96)
	buf = appendField(buf, []byte(subjectID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(issuedAt.UTC().UnixNano()))
	buf = appendField(buf, []byte(credentialID))
	sum := sha256.Sum256(buf)
	return payloadHashPrefix + hex.EncodeToString(sum[:])
}

func appendField(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}

// RejectReason explains why a validation was rejected.
type RejectReason string

const (
	ReasonNone         RejectReason = ""
	ReasonNotFound     RejectReason = "not_found"
	ReasonExpired      RejectReason = "expired"
	ReasonAlreadyUsed  RejectReason = "already_used"
	ReasonRevoked      RejectReason = "revoked"
	ReasonHashMismatch RejectReason = "hash_mismatch"
)

// ReasonForStatus maps a terminal status to the rejection it causes.
func ReasonForStatus(s Status) RejectReason {
	switch s {
	case StatusUsed:
		return ReasonAlreadyUsed
	case StatusRevoked:
		return ReasonRevoked
	case StatusExpired:
		return ReasonExpired
	default:
		return ReasonNone
	}
}

// Outcome is the result of a validation attempt. Rejections are outcomes,
// not errors.
type Outcome struct {
	Accepted     bool
	Reason       RejectReason
	CredentialID id.CredentialID
	SubjectID    id.SubjectID
}

// Accepted builds an accepting outcome for c.
func Accepted(c *Credential) Outcome {
	return Outcome{Accepted: true, CredentialID: c.ID, SubjectID: c.SubjectID}
}

// Rejected builds a rejecting outcome.
func Rejected(credentialID id.CredentialID, reason RejectReason) Outcome {
	return Outcome{CredentialID: credentialID, Reason: reason}
}
