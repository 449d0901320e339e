package testutil

import (
	"time"

	consentmodels "idwallet/internal/consent/models"
	credentialmodels "idwallet/internal/credential/models"
	id "idwallet/pkg/domain"
)

// Fixed values for deterministic test data.
var (
	TestStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	TestSubjects = struct {
		Primary   id.SubjectID
		Secondary id.SubjectID
	}{
		Primary:   "FYD-001",
		Secondary: "FYD-002",
	}

	TestRequesters = struct {
		Bank    id.RequesterID
		Telecom id.RequesterID
	}{
		Bank:    "commercial-bank-of-ethiopia",
		Telecom: "ethio-telecom",
	}
)

// CredentialBuilder provides a fluent interface for building test credentials.
type CredentialBuilder struct {
	credential *credentialmodels.Credential
}

// NewCredentialBuilder creates an active five-minute credential for the
// primary test subject issued at TestStart.
func NewCredentialBuilder() *CredentialBuilder {
	return &CredentialBuilder{
		credential: &credentialmodels.Credential{
			ID:              id.NewCredentialID(),
			SubjectID:       TestSubjects.Primary,
			IssuedAt:        TestStart,
			ExpiresAt:       TestStart.Add(5 * time.Minute),
			Status:          credentialmodels.StatusActive,
			StatusChangedAt: TestStart,
		},
	}
}

func (b *CredentialBuilder) WithID(credentialID id.CredentialID) *CredentialBuilder {
	b.credential.ID = credentialID
	return b
}

func (b *CredentialBuilder) WithSubject(subjectID id.SubjectID) *CredentialBuilder {
	b.credential.SubjectID = subjectID
	return b
}

// IssuedAt moves the issue time and keeps the validity window length.
func (b *CredentialBuilder) IssuedAt(t time.Time) *CredentialBuilder {
	validity := b.credential.ExpiresAt.Sub(b.credential.IssuedAt)
	b.credential.IssuedAt = t
	b.credential.ExpiresAt = t.Add(validity)
	b.credential.StatusChangedAt = t
	return b
}

func (b *CredentialBuilder) ValidFor(d time.Duration) *CredentialBuilder {
	b.credential.ExpiresAt = b.credential.IssuedAt.Add(d)
	return b
}

func (b *CredentialBuilder) WithStatus(status credentialmodels.Status) *CredentialBuilder {
	b.credential.Status = status
	return b
}

// Build computes the payload hash from the final id, subject and issue time.
func (b *CredentialBuilder) Build() *credentialmodels.Credential {
	c := *b.credential
	c.PayloadHash = credentialmodels.ComputePayloadHash(c.SubjectID, c.IssuedAt, c.ID)
	return &c
}

// ConsentRequestBuilder provides a fluent interface for building test
// consent requests.
type ConsentRequestBuilder struct {
	request *consentmodels.Request
}

// NewConsentRequestBuilder creates a pending request from the test bank,
// created at TestStart with a five-minute window.
func NewConsentRequestBuilder() *ConsentRequestBuilder {
	return &ConsentRequestBuilder{
		request: &consentmodels.Request{
			ID:              id.NewConsentRequestID(),
			RequesterID:     TestRequesters.Bank,
			RequesterName:   "Commercial Bank of Ethiopia",
			Purpose:         "Account Opening Verification",
			RequestedFields: []string{"Full Name", "ID Number", "Date of Birth"},
			CreatedAt:       TestStart,
			ExpiresAt:       TestStart.Add(5 * time.Minute),
			Status:          consentmodels.StatusPending,
		},
	}
}

func (b *ConsentRequestBuilder) WithRequester(requesterID id.RequesterID, name string) *ConsentRequestBuilder {
	b.request.RequesterID = requesterID
	b.request.RequesterName = name
	return b
}

func (b *ConsentRequestBuilder) WithFields(fields ...string) *ConsentRequestBuilder {
	b.request.RequestedFields = fields
	return b
}

// CreatedAt moves the creation time and keeps the window length.
func (b *ConsentRequestBuilder) CreatedAt(t time.Time) *ConsentRequestBuilder {
	window := b.request.ExpiresAt.Sub(b.request.CreatedAt)
	b.request.CreatedAt = t
	b.request.ExpiresAt = t.Add(window)
	return b
}

func (b *ConsentRequestBuilder) WithStatus(status consentmodels.Status) *ConsentRequestBuilder {
	b.request.Status = status
	return b
}

func (b *ConsentRequestBuilder) Build() *consentmodels.Request {
	return b.request.Clone()
}
