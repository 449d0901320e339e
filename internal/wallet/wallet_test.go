package wallet

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"idwallet/internal/auth"
	consent "idwallet/internal/consent/models"
	"idwallet/internal/credential/models"
	"idwallet/internal/credential/payload"
	"idwallet/internal/identity"
	"idwallet/internal/ledger"
	"idwallet/internal/platform/config"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
)

type WalletSuite struct {
	suite.Suite
	ctx    context.Context
	clock  *clock.Manual
	cfg    *config.Config
	wallet *Wallet
	ledger *ledger.Ledger
}

func TestWalletSuite(t *testing.T) {
	suite.Run(t, new(WalletSuite))
}

func (s *WalletSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	s.cfg = config.Defaults()

	components, err := Build(s.cfg, Runtime{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer:     prometheus.NewRegistry(),
		Clock:          s.clock,
		Authenticators: []auth.Authenticator{auth.AlwaysSucceed{}},
	})
	s.Require().NoError(err)
	s.wallet = components.Wallet
	s.ledger = components.Ledger
}

func (s *WalletSuite) collect(filter ledger.Filter) []ledger.Entry {
	var out []ledger.Entry
	for e := range s.wallet.ListLedgerEntries(s.ctx, filter) {
		out = append(out, e)
	}
	return out
}

// -----------------------------------------------------------------------------
// Credentials
// -----------------------------------------------------------------------------

func (s *WalletSuite) TestIssueAndValidate() {
	view, err := s.wallet.IssueCredential(s.ctx, "FYD-001", 300)
	s.Require().NoError(err)
	s.Equal("FYD-001", view.SubjectID)
	s.Equal(s.clock.Now().Add(300*time.Second), view.ExpiresAt)
	s.NotEmpty(view.DisplayPayload)

	result, err := s.wallet.ValidateCredential(s.ctx, view.ID, view.PayloadHash)
	s.Require().NoError(err)
	s.Equal(ValidationResult{Accepted: true}, result)

	result, err = s.wallet.ValidateCredential(s.ctx, view.ID, view.PayloadHash)
	s.Require().NoError(err)
	s.Equal(ValidationResult{Accepted: false, Reason: "already_used"}, result)

	entries := s.collect(ledger.Filter{})
	s.Require().Len(entries, 3)
	s.Equal(ledger.EventCredentialIssued, entries[0].EventType)
	s.Equal(ledger.EventCredentialVerified, entries[1].EventType)
	s.Equal(ledger.EventCredentialRejected, entries[2].EventType)

	report, err := s.wallet.VerifyLedger(s.ctx)
	s.Require().NoError(err)
	s.Equal(ChainReport{Valid: true, Entries: 3}, report)
}

func (s *WalletSuite) TestIssueCredentialInvalidInput() {
	_, err := s.wallet.IssueCredential(s.ctx, "  ", 300)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.wallet.IssueCredential(s.ctx, "FYD-001", 0)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.Zero(s.ledger.Len())
}

func (s *WalletSuite) TestValidateCredentialRejections() {
	s.Run("expired after validity", func() {
		view, err := s.wallet.IssueCredential(s.ctx, "FYD-002", 300)
		s.Require().NoError(err)
		s.clock.Advance(301 * time.Second)

		result, err := s.wallet.ValidateCredential(s.ctx, view.ID, view.PayloadHash)
		s.Require().NoError(err)
		s.Equal("expired", result.Reason)
	})

	s.Run("unknown or malformed id is not_found", func() {
		result, err := s.wallet.ValidateCredential(s.ctx, "not-a-credential", "sha256:00")
		s.Require().NoError(err)
		s.Equal("not_found", result.Reason)
	})

	s.Run("empty id is invalid input", func() {
		_, err := s.wallet.ValidateCredential(s.ctx, "", "sha256:00")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("wrong hash does not consume", func() {
		view, err := s.wallet.IssueCredential(s.ctx, "FYD-003", 300)
		s.Require().NoError(err)

		result, err := s.wallet.ValidateCredential(s.ctx, view.ID, "sha256:deadbeef")
		s.Require().NoError(err)
		s.Equal("hash_mismatch", result.Reason)

		result, err = s.wallet.ValidateCredential(s.ctx, view.ID, view.PayloadHash)
		s.Require().NoError(err)
		s.True(result.Accepted)
	})
}

func (s *WalletSuite) TestValidatePayload() {
	view, err := s.wallet.IssueCredential(s.ctx, "FYD-001", 300)
	s.Require().NoError(err)

	s.Run("forged payload is invalid input and unrecorded", func() {
		before := s.ledger.Len()
		forger, err := payload.NewSigner([]byte("another-signing-key-of-32-bytes!!"), s.cfg.Credential.Issuer)
		s.Require().NoError(err)
		forged, err := forger.Sign(&models.Credential{ID: "vc_forged", SubjectID: "FYD-001"})
		s.Require().NoError(err)

		_, err = s.wallet.ValidatePayload(s.ctx, forged)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal(before, s.ledger.Len())
	})

	s.Run("genuine payload is accepted once", func() {
		result, err := s.wallet.ValidatePayload(s.ctx, view.DisplayPayload)
		s.Require().NoError(err)
		s.True(result.Accepted)

		result, err = s.wallet.ValidatePayload(s.ctx, view.DisplayPayload)
		s.Require().NoError(err)
		s.Equal("already_used", result.Reason)
	})
}

func (s *WalletSuite) TestRefreshCredential() {
	first, refreshed, err := s.wallet.RefreshCredential(s.ctx, "FYD-001")
	s.Require().NoError(err)
	s.True(refreshed)
	s.Equal(s.clock.Now().Add(s.cfg.Credential.TTL), first.ExpiresAt)

	s.clock.Advance(3 * time.Minute)
	same, refreshed, err := s.wallet.RefreshCredential(s.ctx, "FYD-001")
	s.Require().NoError(err)
	s.False(refreshed)
	s.Equal(first.ID, same.ID)

	s.clock.Advance(time.Minute)
	next, refreshed, err := s.wallet.RefreshCredential(s.ctx, "FYD-001")
	s.Require().NoError(err)
	s.True(refreshed)
	s.NotEqual(first.ID, next.ID)

	result, err := s.wallet.ValidateCredential(s.ctx, first.ID, first.PayloadHash)
	s.Require().NoError(err)
	s.Equal("revoked", result.Reason)
}

func (s *WalletSuite) TestRevokeCredential() {
	view, err := s.wallet.IssueCredential(s.ctx, "FYD-001", 300)
	s.Require().NoError(err)
	s.Require().NoError(s.wallet.RevokeCredential(s.ctx, view.ID))

	err = s.wallet.RevokeCredential(s.ctx, view.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeRevoked))

	err = s.wallet.RevokeCredential(s.ctx, "bogus")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	result, err := s.wallet.ValidateCredential(s.ctx, view.ID, view.PayloadHash)
	s.Require().NoError(err)
	s.Equal("revoked", result.Reason)
}

// -----------------------------------------------------------------------------
// Consent
// -----------------------------------------------------------------------------

func (s *WalletSuite) requestConsent() *consent.Request {
	req, err := s.wallet.RequestConsent(s.ctx, consent.CreateRequest{
		RequesterID:     "commercial-bank",
		RequesterName:   "Commercial Bank of Ethiopia",
		Purpose:         "Account Opening",
		RequestedFields: []string{"Full Name", "ID Number", "Full Name"},
	})
	s.Require().NoError(err)
	return req
}

func (s *WalletSuite) TestConsentLifecycle() {
	req := s.requestConsent()
	s.Equal(consent.StatusPending, req.Status)
	s.Equal([]string{"Full Name", "ID Number"}, req.RequestedFields)

	decided, err := s.wallet.DecideConsent(s.ctx, req.ID.String(), true)
	s.Require().NoError(err)
	s.Equal(consent.StatusApproved, decided.Status)

	_, err = s.wallet.DecideConsent(s.ctx, req.ID.String(), false)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))

	got, err := s.wallet.GetConsent(s.ctx, req.ID.String())
	s.Require().NoError(err)
	s.Equal(consent.StatusApproved, got.Status)

	_, err = s.wallet.GetConsent(s.ctx, "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *WalletSuite) TestConsentExpiry() {
	req := s.requestConsent()
	s.clock.Advance(s.cfg.Consent.TTL + time.Second)

	pending := consent.StatusPending
	listed, err := s.wallet.ListConsents(s.ctx, consent.Filter{Status: &pending})
	s.Require().NoError(err)
	s.Empty(listed)

	_, err = s.wallet.DecideConsent(s.ctx, req.ID.String(), true)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))

	expired := ledger.EventConsentExpired
	s.Len(s.collect(ledger.Filter{EventType: &expired}), 1)
}

// -----------------------------------------------------------------------------
// Ledger, auth and documents
// -----------------------------------------------------------------------------

func (s *WalletSuite) TestListLedgerEntriesByStatus() {
	view, err := s.wallet.IssueCredential(s.ctx, "FYD-001", 300)
	s.Require().NoError(err)
	_, err = s.wallet.ValidateCredential(s.ctx, view.ID, "sha256:bad")
	s.Require().NoError(err)

	failed := ledger.StatusFailed
	entries := s.collect(ledger.Filter{Status: &failed})
	s.Require().Len(entries, 1)
	s.Equal("hash_mismatch", entries[0].Payload[ledger.KeyReason])
}

func (s *WalletSuite) TestAuthenticate() {
	result, err := s.wallet.Authenticate(s.ctx, auth.Challenge{})
	s.Require().NoError(err)
	s.True(result.Success)

	succeeded := ledger.EventAuthSucceeded
	s.Len(s.collect(ledger.Filter{EventType: &succeeded}), 1)
}

func (s *WalletSuite) TestDocuments() {
	_, err := s.wallet.AddDocument(s.ctx, identity.AddDocumentRequest{
		Type:       identity.DocumentFayda,
		HolderName: "Marsilas Wondimagegnehu",
		Number:     "FYD-2024-001234",
		IssuedOn:   "2024-01-15",
		ExpiresOn:  "2034-01-15",
	})
	s.Require().NoError(err)

	docs, err := s.wallet.ListDocuments(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("FYD-2024-001234", docs[0].Number)
}

func (s *WalletSuite) TestBuildRequiresAuthenticator() {
	_, err := Build(config.Defaults(), Runtime{Registerer: prometheus.NewRegistry()})
	s.Error(err)
}

func (s *WalletSuite) TestBuildWithPinFallback() {
	cfg := config.Defaults()
	hash, err := auth.HashPIN("123456")
	s.Require().NoError(err)
	cfg.Auth.PINHash = hash

	components, err := Build(cfg, Runtime{Registerer: prometheus.NewRegistry(), Clock: s.clock})
	s.Require().NoError(err)

	result, err := components.Wallet.Authenticate(s.ctx, auth.Challenge{PIN: "123456"})
	s.Require().NoError(err)
	s.Equal(auth.MethodPIN, result.Method)
}

type enrolledDevice struct {
	accept bool
}

func (enrolledDevice) HasHardware(context.Context) (bool, error) { return true, nil }
func (enrolledDevice) IsEnrolled(context.Context) (bool, error)  { return true, nil }
func (d enrolledDevice) Prompt(context.Context, string) (bool, string, error) {
	return d.accept, "", nil
}

func (s *WalletSuite) TestBuildPrefersPlatformBiometric() {
	cfg := config.Defaults()
	hash, err := auth.HashPIN("123456")
	s.Require().NoError(err)
	cfg.Auth.PINHash = hash

	components, err := Build(cfg, Runtime{
		Registerer:     prometheus.NewRegistry(),
		Clock:          s.clock,
		Authenticators: []auth.Authenticator{auth.NewPlatformBiometric(enrolledDevice{accept: true}, nil)},
	})
	s.Require().NoError(err)

	result, err := components.Wallet.Authenticate(s.ctx, auth.Challenge{})
	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(auth.MethodBiometric, result.Method)

	pin, err := components.Wallet.Authenticate(s.ctx, auth.Challenge{Method: auth.MethodPIN, PIN: "123456"})
	s.Require().NoError(err)
	s.True(pin.Success)
}

// -----------------------------------------------------------------------------
// Chain verification reporting
// -----------------------------------------------------------------------------

type brokenLedger struct {
	err error
}

func (b brokenLedger) VerifyChain(context.Context) error { return b.err }

func (brokenLedger) Entries(context.Context, ledger.Filter) iter.Seq[ledger.Entry] {
	return func(func(ledger.Entry) bool) {}
}

func (brokenLedger) Len() uint64 { return 7 }

func (s *WalletSuite) TestVerifyLedgerReportsCorruption() {
	deps := Dependencies{
		Credentials: s.wallet.credentials,
		Consents:    s.wallet.consents,
		Auth:        s.wallet.auth,
		Documents:   s.wallet.documents,
		Signer:      s.wallet.signer,
	}

	s.Run("corruption is a report, not an error", func() {
		deps.Ledger = brokenLedger{err: &dErrors.Error{
			Code: dErrors.CodeChainCorrupted,
			Err:  &ledger.CorruptionError{Sequence: 4, Reason: "entry hash does not match contents"},
		}}
		w, err := New(deps)
		s.Require().NoError(err)

		report, err := w.VerifyLedger(s.ctx)
		s.Require().NoError(err)
		s.False(report.Valid)
		s.Equal(uint64(7), report.Entries)
		s.Require().NotNil(report.BrokenAt)
		s.Equal(uint64(4), *report.BrokenAt)
	})

	s.Run("other failures are errors", func() {
		deps.Ledger = brokenLedger{err: errors.New("store unavailable")}
		w, err := New(deps)
		s.Require().NoError(err)

		_, err = w.VerifyLedger(s.ctx)
		s.Error(err)
	})
}
