// Package wallet is the external interface of the credential lifecycle core.
// It composes the credential, consent, ledger, auth and identity services
// and converts between their types and the values a presentation layer
// consumes.
package wallet

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"idwallet/internal/auth"
	consent "idwallet/internal/consent/models"
	credential "idwallet/internal/credential/models"
	"idwallet/internal/credential/payload"
	"idwallet/internal/identity"
	"idwallet/internal/ledger"
	"idwallet/internal/platform/metrics"
	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
)

// CredentialService issues and validates credentials.
type CredentialService interface {
	Issue(ctx context.Context, subjectID id.SubjectID, validity time.Duration) (*credential.Credential, error)
	Revoke(ctx context.Context, credentialID id.CredentialID) (*credential.Credential, error)
	Current(ctx context.Context, subjectID id.SubjectID) (*credential.Credential, error)
	Validate(ctx context.Context, credentialID id.CredentialID, presentedHash string) (credential.Outcome, error)
}

// ConsentService manages consent requests.
type ConsentService interface {
	Create(ctx context.Context, req consent.CreateRequest) (*consent.Request, error)
	Get(ctx context.Context, requestID id.ConsentRequestID) (*consent.Request, error)
	Decide(ctx context.Context, requestID id.ConsentRequestID, decision consent.Decision) (*consent.Request, error)
	List(ctx context.Context, filter consent.Filter) ([]*consent.Request, error)
}

// Ledger is the read and verification side of the ledger.
type Ledger interface {
	VerifyChain(ctx context.Context) error
	Entries(ctx context.Context, filter ledger.Filter) iter.Seq[ledger.Entry]
	Len() uint64
}

// Authenticator proves holder presence.
type Authenticator interface {
	Authenticate(ctx context.Context, challenge auth.Challenge) (auth.Result, error)
}

// DocumentService stores identity documents.
type DocumentService interface {
	Add(ctx context.Context, req identity.AddDocumentRequest) (*identity.Document, error)
	List(ctx context.Context) ([]*identity.Document, error)
}

// CredentialView is what the presentation layer renders as a QR code.
// DisplayPayload is the signed token encoded into the QR image.
type CredentialView struct {
	ID             string
	SubjectID      string
	ExpiresAt      time.Time
	PayloadHash    string
	DisplayPayload string
}

// ValidationResult is a verifier's answer for a presented credential.
type ValidationResult struct {
	Accepted bool
	Reason   string
}

// ChainReport summarizes a ledger verification. BrokenAt is set only when
// Valid is false.
type ChainReport struct {
	Valid    bool
	Entries  uint64
	BrokenAt *uint64
	Reason   string
}

// Dependencies are the services the wallet composes.
type Dependencies struct {
	Credentials CredentialService
	Consents    ConsentService
	Ledger      Ledger
	Auth        Authenticator
	Documents   DocumentService
	Signer      *payload.Signer
}

type Option func(*Wallet)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wallet) {
		w.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(w *Wallet) {
		w.clock = c
	}
}

// WithRefreshLead sets how long before expiry RefreshCredential reissues.
func WithRefreshLead(d time.Duration) Option {
	return func(w *Wallet) {
		if d >= 0 {
			w.refreshLead = d
		}
	}
}

// WithCredentialTTL sets the validity used by RefreshCredential.
func WithCredentialTTL(d time.Duration) Option {
	return func(w *Wallet) {
		if d > 0 {
			w.credentialTTL = d
		}
	}
}

// Wallet is the facade over the credential lifecycle core.
type Wallet struct {
	credentials CredentialService
	consents    ConsentService
	ledger      Ledger
	auth        Authenticator
	documents   DocumentService
	signer      *payload.Signer

	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
	refreshLead   time.Duration
	credentialTTL time.Duration
}

func New(deps Dependencies, opts ...Option) (*Wallet, error) {
	switch {
	case deps.Credentials == nil:
		return nil, errors.New("credential service is required")
	case deps.Consents == nil:
		return nil, errors.New("consent service is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Auth == nil:
		return nil, errors.New("authenticator is required")
	case deps.Documents == nil:
		return nil, errors.New("document service is required")
	case deps.Signer == nil:
		return nil, errors.New("payload signer is required")
	}
	w := &Wallet{
		credentials:   deps.Credentials,
		consents:      deps.Consents,
		ledger:        deps.Ledger,
		auth:          deps.Auth,
		documents:     deps.Documents,
		signer:        deps.Signer,
		clock:         clock.System(),
		logger:        slog.Default(),
		refreshLead:   time.Minute,
		credentialTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// observe records latency and, on failure, the error code of an operation.
// Use as: defer w.observe("issue", time.Now(), &err).
func (w *Wallet) observe(operation string, start time.Time, errp *error) {
	if w.metrics == nil {
		return
	}
	w.metrics.ObserveOperation(operation, time.Since(start).Seconds())
	if errp != nil && *errp != nil {
		w.metrics.IncrementOperationError(operation, string(dErrors.CodeOf(*errp)))
	}
}

// IssueCredential issues a credential valid for durationSeconds and returns
// it with its signed display payload.
func (w *Wallet) IssueCredential(ctx context.Context, subjectID string, durationSeconds int64) (view CredentialView, err error) {
	defer w.observe("issue_credential", time.Now(), &err)

	subject, err := id.ParseSubjectID(subjectID)
	if err != nil {
		return CredentialView{}, err
	}
	if durationSeconds <= 0 {
		return CredentialView{}, dErrors.New(dErrors.CodeInvalidInput, "duration must be positive")
	}
	issued, err := w.credentials.Issue(ctx, subject, time.Duration(durationSeconds)*time.Second)
	if err != nil {
		return CredentialView{}, err
	}
	return w.view(issued)
}

// RefreshCredential returns the subject's active credential, reissuing it
// when none is active or it expires within the refresh lead. refreshed
// reports whether a new credential was issued.
func (w *Wallet) RefreshCredential(ctx context.Context, subjectID string) (view CredentialView, refreshed bool, err error) {
	defer w.observe("refresh_credential", time.Now(), &err)

	subject, err := id.ParseSubjectID(subjectID)
	if err != nil {
		return CredentialView{}, false, err
	}
	current, err := w.credentials.Current(ctx, subject)
	switch {
	case err == nil && current.RemainingAt(w.clock.Now()) > w.refreshLead:
		view, err = w.view(current)
		return view, false, err
	case err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound):
		return CredentialView{}, false, err
	}

	issued, err := w.credentials.Issue(ctx, subject, w.credentialTTL)
	if err != nil {
		return CredentialView{}, false, err
	}
	w.logger.DebugContext(ctx, "credential refreshed", "credential_id", issued.ID.String())
	view, err = w.view(issued)
	return view, true, err
}

// RevokeCredential revokes an active credential at the subject's request.
func (w *Wallet) RevokeCredential(ctx context.Context, credentialID string) (err error) {
	defer w.observe("revoke_credential", time.Now(), &err)

	parsed, err := id.ParseCredentialID(credentialID)
	if err != nil {
		return err
	}
	_, err = w.credentials.Revoke(ctx, parsed)
	return err
}

// ValidateCredential checks a presented credential id and payload hash.
// Identifiers that are not well formed are looked up as-is and rejected as
// not_found, so every attempt reaches the ledger.
func (w *Wallet) ValidateCredential(ctx context.Context, credentialID, presentedHash string) (result ValidationResult, err error) {
	defer w.observe("validate_credential", time.Now(), &err)

	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return ValidationResult{}, dErrors.New(dErrors.CodeInvalidInput, "credential id is required")
	}
	outcome, err := w.credentials.Validate(ctx, id.CredentialID(credentialID), presentedHash)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{Accepted: outcome.Accepted, Reason: string(outcome.Reason)}, nil
}

// ValidatePayload decodes a scanned display payload and validates it.
// A payload whose signature does not verify is invalid_input and is not
// recorded, since it names no credential the wallet can vouch for.
func (w *Wallet) ValidatePayload(ctx context.Context, displayPayload string) (result ValidationResult, err error) {
	defer w.observe("validate_payload", time.Now(), &err)

	presentation, err := w.signer.Parse(strings.TrimSpace(displayPayload))
	if err != nil {
		w.logger.WarnContext(ctx, "display payload rejected", "error", err)
		return ValidationResult{}, err
	}
	outcome, err := w.credentials.Validate(ctx, presentation.CredentialID, presentation.PayloadHash)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{Accepted: outcome.Accepted, Reason: string(outcome.Reason)}, nil
}

// ListLedgerEntries returns a lazy, restartable sequence of entries in
// ascending order.
func (w *Wallet) ListLedgerEntries(ctx context.Context, filter ledger.Filter) iter.Seq[ledger.Entry] {
	return w.ledger.Entries(ctx, filter)
}

// VerifyLedger recomputes the whole chain. Corruption is reported in the
// ChainReport; only infrastructure faults are returned as errors.
func (w *Wallet) VerifyLedger(ctx context.Context) (report ChainReport, err error) {
	defer w.observe("verify_ledger", time.Now(), &err)

	report = ChainReport{Valid: true, Entries: w.ledger.Len()}
	verr := w.ledger.VerifyChain(ctx)
	if verr == nil {
		return report, nil
	}
	var corruption *ledger.CorruptionError
	if !errors.As(verr, &corruption) {
		return ChainReport{}, verr
	}
	seq := corruption.Sequence
	report.Valid = false
	report.BrokenAt = &seq
	report.Reason = corruption.Reason
	return report, nil
}

// RequestConsent opens a consent request from a requester.
func (w *Wallet) RequestConsent(ctx context.Context, req consent.CreateRequest) (request *consent.Request, err error) {
	defer w.observe("request_consent", time.Now(), &err)
	return w.consents.Create(ctx, req)
}

// GetConsent returns a consent request after applying lazy expiry.
func (w *Wallet) GetConsent(ctx context.Context, requestID string) (request *consent.Request, err error) {
	defer w.observe("get_consent", time.Now(), &err)

	parsed, err := id.ParseConsentRequestID(requestID)
	if err != nil {
		return nil, err
	}
	return w.consents.Get(ctx, parsed)
}

// DecideConsent approves or denies a pending request. Requests that are no
// longer pending return already_decided.
func (w *Wallet) DecideConsent(ctx context.Context, requestID string, approve bool) (request *consent.Request, err error) {
	defer w.observe("decide_consent", time.Now(), &err)

	parsed, err := id.ParseConsentRequestID(requestID)
	if err != nil {
		return nil, err
	}
	return w.consents.Decide(ctx, parsed, consent.Decision(approve))
}

// ListConsents returns consent requests matching filter, oldest first.
func (w *Wallet) ListConsents(ctx context.Context, filter consent.Filter) (requests []*consent.Request, err error) {
	defer w.observe("list_consents", time.Now(), &err)
	return w.consents.List(ctx, filter)
}

// Authenticate proves holder presence.
func (w *Wallet) Authenticate(ctx context.Context, challenge auth.Challenge) (result auth.Result, err error) {
	defer w.observe("authenticate", time.Now(), &err)
	return w.auth.Authenticate(ctx, challenge)
}

// AddDocument stores an identity document.
func (w *Wallet) AddDocument(ctx context.Context, req identity.AddDocumentRequest) (doc *identity.Document, err error) {
	defer w.observe("add_document", time.Now(), &err)
	return w.documents.Add(ctx, req)
}

// ListDocuments returns stored documents in the order they were added.
func (w *Wallet) ListDocuments(ctx context.Context) (docs []*identity.Document, err error) {
	defer w.observe("list_documents", time.Now(), &err)
	return w.documents.List(ctx)
}

func (w *Wallet) view(c *credential.Credential) (CredentialView, error) {
	token, err := w.signer.Sign(c)
	if err != nil {
		return CredentialView{}, err
	}
	return CredentialView{
		ID:             c.ID.String(),
		SubjectID:      c.SubjectID.String(),
		ExpiresAt:      c.ExpiresAt,
		PayloadHash:    c.PayloadHash,
		DisplayPayload: token,
	}, nil
}
