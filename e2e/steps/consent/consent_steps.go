package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	models "idwallet/internal/consent/models"
	"idwallet/internal/wallet"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Wallet() *wallet.Wallet
	SetLastError(err error)
}

// RegisterSteps registers consent-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	// Consent management steps
	ctx.Step(`^"([^"]*)" requests consent for "([^"]*)" to access "([^"]*)"$`, steps.requestConsent)
	ctx.Step(`^I approve the consent request$`, steps.approve)
	ctx.Step(`^I deny the consent request$`, steps.deny)
	ctx.Step(`^I list consent requests with status "([^"]*)"$`, steps.listWithStatus)

	// Consent assertion steps
	ctx.Step(`^the consent request status should be "([^"]*)"$`, steps.statusShouldBe)
	ctx.Step(`^the consent list should contain (\d+) requests?$`, steps.listShouldContain)
}

type consentSteps struct {
	tc      TestContext
	current *models.Request
	listed  []*models.Request
}

func (s *consentSteps) requestConsent(ctx context.Context, requester, purpose, fields string) error {
	request, err := s.tc.Wallet().RequestConsent(ctx, models.CreateRequest{
		RequesterID:     requester,
		Purpose:         purpose,
		RequestedFields: strings.Split(fields, ","),
	})
	s.tc.SetLastError(err)
	if err == nil {
		s.current = request
	}
	return nil
}

func (s *consentSteps) approve(ctx context.Context) error { return s.decide(ctx, true) }

func (s *consentSteps) deny(ctx context.Context) error { return s.decide(ctx, false) }

func (s *consentSteps) decide(ctx context.Context, approve bool) error {
	if s.current == nil {
		return fmt.Errorf("no consent request in this scenario")
	}
	decided, err := s.tc.Wallet().DecideConsent(ctx, s.current.ID.String(), approve)
	s.tc.SetLastError(err)
	if err == nil {
		s.current = decided
	}
	return nil
}

func (s *consentSteps) listWithStatus(ctx context.Context, status string) error {
	st := models.Status(status)
	if !st.IsValid() {
		return fmt.Errorf("unknown consent status %q", status)
	}
	listed, err := s.tc.Wallet().ListConsents(ctx, models.Filter{Status: &st})
	s.tc.SetLastError(err)
	s.listed = listed
	return nil
}

func (s *consentSteps) statusShouldBe(ctx context.Context, expected string) error {
	if s.current == nil {
		return fmt.Errorf("no consent request in this scenario")
	}
	latest, err := s.tc.Wallet().GetConsent(ctx, s.current.ID.String())
	if err != nil {
		return fmt.Errorf("get consent: %w", err)
	}
	if string(latest.Status) != expected {
		return fmt.Errorf("expected consent status %q, got %q", expected, latest.Status)
	}
	return nil
}

func (s *consentSteps) listShouldContain(_ context.Context, expected int) error {
	if len(s.listed) != expected {
		return fmt.Errorf("expected %d consent requests, got %d", expected, len(s.listed))
	}
	return nil
}
