package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"idwallet/internal/wallet"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Wallet() *wallet.Wallet
	Now() time.Time
	SetLastError(err error)
}

// RegisterSteps registers credential lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &credentialSteps{tc: tc}

	// Issuance steps
	ctx.Step(`^I issue a credential for subject "([^"]*)" valid for (-?\d+) seconds$`, steps.issueCredential)
	ctx.Step(`^I refresh the credential for subject "([^"]*)"$`, steps.refreshCredential)
	ctx.Step(`^I revoke the credential$`, steps.revokeCredential)

	// Validation steps
	ctx.Step(`^I validate the credential with its payload hash$`, steps.validateWithOwnHash)
	ctx.Step(`^I validate the credential with payload hash "([^"]*)"$`, steps.validateWithHash)
	ctx.Step(`^I validate credential "([^"]*)" with payload hash "([^"]*)"$`, steps.validateByID)
	ctx.Step(`^I scan the credential display payload$`, steps.scanDisplayPayload)
	ctx.Step(`^I scan a tampered display payload$`, steps.scanTamperedPayload)

	// Assertion steps
	ctx.Step(`^the credential should expire in (\d+) seconds$`, steps.credentialShouldExpireIn)
	ctx.Step(`^the credential should have been reissued$`, steps.credentialShouldHaveBeenReissued)
	ctx.Step(`^the credential should not have been reissued$`, steps.credentialShouldNotHaveBeenReissued)
	ctx.Step(`^the validation should be accepted$`, steps.validationShouldBeAccepted)
	ctx.Step(`^the validation should be rejected with reason "([^"]*)"$`, steps.validationShouldBeRejected)
}

type credentialSteps struct {
	tc         TestContext
	current    wallet.CredentialView
	previousID string
	refreshed  bool
	validation *wallet.ValidationResult
}

func (s *credentialSteps) issueCredential(ctx context.Context, subject string, seconds int64) error {
	view, err := s.tc.Wallet().IssueCredential(ctx, subject, seconds)
	s.tc.SetLastError(err)
	if err == nil {
		s.previousID = s.current.ID
		s.current = view
	}
	return nil
}

func (s *credentialSteps) refreshCredential(ctx context.Context, subject string) error {
	view, refreshed, err := s.tc.Wallet().RefreshCredential(ctx, subject)
	s.tc.SetLastError(err)
	if err == nil {
		s.previousID = s.current.ID
		s.current = view
		s.refreshed = refreshed
	}
	return nil
}

func (s *credentialSteps) revokeCredential(ctx context.Context) error {
	if s.current.ID == "" {
		return fmt.Errorf("no credential issued in this scenario")
	}
	s.tc.SetLastError(s.tc.Wallet().RevokeCredential(ctx, s.current.ID))
	return nil
}

func (s *credentialSteps) validateWithOwnHash(ctx context.Context) error {
	return s.validate(ctx, s.current.ID, s.current.PayloadHash)
}

func (s *credentialSteps) validateWithHash(ctx context.Context, hash string) error {
	return s.validate(ctx, s.current.ID, hash)
}

func (s *credentialSteps) validateByID(ctx context.Context, credentialID, hash string) error {
	return s.validate(ctx, credentialID, hash)
}

func (s *credentialSteps) validate(ctx context.Context, credentialID, hash string) error {
	result, err := s.tc.Wallet().ValidateCredential(ctx, credentialID, hash)
	s.record(result, err)
	return nil
}

func (s *credentialSteps) scanDisplayPayload(ctx context.Context) error {
	result, err := s.tc.Wallet().ValidatePayload(ctx, s.current.DisplayPayload)
	s.record(result, err)
	return nil
}

func (s *credentialSteps) scanTamperedPayload(ctx context.Context) error {
	if s.current.DisplayPayload == "" {
		return fmt.Errorf("no credential issued in this scenario")
	}
	result, err := s.tc.Wallet().ValidatePayload(ctx, s.current.DisplayPayload+"tampered")
	s.record(result, err)
	return nil
}

func (s *credentialSteps) record(result wallet.ValidationResult, err error) {
	s.tc.SetLastError(err)
	s.validation = nil
	if err == nil {
		s.validation = &result
	}
}

func (s *credentialSteps) credentialShouldExpireIn(_ context.Context, seconds int) error {
	remaining := s.current.ExpiresAt.Sub(s.tc.Now())
	if remaining != time.Duration(seconds)*time.Second {
		return fmt.Errorf("expected credential to expire in %ds, got %s", seconds, remaining)
	}
	return nil
}

func (s *credentialSteps) credentialShouldHaveBeenReissued(context.Context) error {
	if !s.refreshed || s.current.ID == s.previousID {
		return fmt.Errorf("expected a new credential, kept %s", s.current.ID)
	}
	return nil
}

func (s *credentialSteps) credentialShouldNotHaveBeenReissued(context.Context) error {
	if s.refreshed || s.current.ID != s.previousID {
		return fmt.Errorf("expected credential %s to be kept, got %s", s.previousID, s.current.ID)
	}
	return nil
}

func (s *credentialSteps) validationShouldBeAccepted(context.Context) error {
	if s.validation == nil {
		return fmt.Errorf("no validation result recorded")
	}
	if !s.validation.Accepted {
		return fmt.Errorf("expected acceptance, got rejection %q", s.validation.Reason)
	}
	return nil
}

func (s *credentialSteps) validationShouldBeRejected(_ context.Context, reason string) error {
	if s.validation == nil {
		return fmt.Errorf("no validation result recorded")
	}
	if s.validation.Accepted {
		return fmt.Errorf("expected rejection %q, got acceptance", reason)
	}
	if s.validation.Reason != reason {
		return fmt.Errorf("expected rejection reason %q, got %q", reason, s.validation.Reason)
	}
	return nil
}
