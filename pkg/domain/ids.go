// Package domain provides type-safe identifiers so credential, consent and
// document ids cannot be mixed up at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "idwallet/pkg/domain-errors"
)

// SubjectID identifies the holder of an identity document (e.g. "FYD-2024-001234").
// Subject ids are issued by the national registry, so they are opaque strings.
type SubjectID string

// RequesterID identifies a third party asking for access to identity data.
type RequesterID string

// Prefixed UUID identifiers minted by this module.
type (
	CredentialID     string
	ConsentRequestID string
	DocumentID       string
)

const (
	credentialPrefix = "vc_"
	consentPrefix    = "cr_"
	documentPrefix   = "doc_"
)

// NewCredentialID generates a credential id with a stable prefix.
func NewCredentialID() CredentialID { return CredentialID(credentialPrefix + uuid.NewString()) }

// NewConsentRequestID generates a consent request id with a stable prefix.
func NewConsentRequestID() ConsentRequestID {
	return ConsentRequestID(consentPrefix + uuid.NewString())
}

// NewDocumentID generates a document id with a stable prefix.
func NewDocumentID() DocumentID { return DocumentID(documentPrefix + uuid.NewString()) }

// Parse functions - use at trust boundaries.

func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID cannot be empty")
	}
	return SubjectID(s), nil
}

func ParseRequesterID(s string) (RequesterID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "requester ID cannot be empty")
	}
	return RequesterID(s), nil
}

func ParseCredentialID(s string) (CredentialID, error) {
	v, err := parsePrefixed(s, credentialPrefix, "credential ID")
	return CredentialID(v), err
}

func ParseConsentRequestID(s string) (ConsentRequestID, error) {
	v, err := parsePrefixed(s, consentPrefix, "consent request ID")
	return ConsentRequestID(v), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	v, err := parsePrefixed(s, documentPrefix, "document ID")
	return DocumentID(v), err
}

func (id SubjectID) String() string        { return string(id) }
func (id RequesterID) String() string      { return string(id) }
func (id CredentialID) String() string     { return string(id) }
func (id ConsentRequestID) String() string { return string(id) }
func (id DocumentID) String() string       { return string(id) }

func (id SubjectID) IsNil() bool        { return strings.TrimSpace(string(id)) == "" }
func (id RequesterID) IsNil() bool      { return strings.TrimSpace(string(id)) == "" }
func (id CredentialID) IsNil() bool     { return id == "" }
func (id ConsentRequestID) IsNil() bool { return id == "" }
func (id DocumentID) IsNil() bool       { return id == "" }

// parsePrefixed is the shared validation logic for minted ids.
func parsePrefixed(s, prefix, label string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if !strings.HasPrefix(s, prefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" must start with "+prefix)
	}
	u, err := uuid.Parse(strings.TrimPrefix(s, prefix))
	if err != nil || u == uuid.Nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return s, nil
}
