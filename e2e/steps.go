package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"idwallet/e2e/steps/consent"
	"idwallet/e2e/steps/credential"
	"idwallet/internal/ledger"
	dErrors "idwallet/pkg/domain-errors"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the wallet is running$`, tc.walletIsRunning)
	ctx.Step(`^(\d+) seconds pass$`, tc.secondsPass)

	// Outcome steps
	ctx.Step(`^the operation should succeed$`, tc.operationShouldSucceed)
	ctx.Step(`^the operation should fail with code "([^"]*)"$`, tc.operationShouldFailWithCode)

	// Ledger steps
	ctx.Step(`^the ledger should contain (\d+) entries$`, tc.ledgerShouldContainEntries)
	ctx.Step(`^the ledger should contain (\d+) "([^"]*)" entr(?:y|ies)$`, tc.ledgerShouldContainEventEntries)
	ctx.Step(`^the ledger events should be:$`, tc.ledgerEventsShouldBe)
	ctx.Step(`^the ledger chain should verify$`, tc.ledgerChainShouldVerify)

	// Ops endpoint steps
	ctx.Step(`^I GET "([^"]*)" from the ops endpoint$`, tc.getFromOps)
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)

	credential.RegisterSteps(ctx, tc)
	consent.RegisterSteps(ctx, tc)
}

func (tc *TestContext) walletIsRunning(context.Context) error {
	if tc.Components == nil {
		return fmt.Errorf("wallet not built")
	}
	return nil
}

func (tc *TestContext) secondsPass(_ context.Context, seconds int) error {
	tc.Advance(time.Duration(seconds) * time.Second)
	return nil
}

func (tc *TestContext) operationShouldSucceed(context.Context) error {
	if tc.LastErr != nil {
		return fmt.Errorf("expected success, got %v", tc.LastErr)
	}
	return nil
}

func (tc *TestContext) operationShouldFailWithCode(_ context.Context, code string) error {
	if tc.LastErr == nil {
		return fmt.Errorf("expected error with code %q, got success", code)
	}
	if got := dErrors.CodeOf(tc.LastErr); string(got) != code {
		return fmt.Errorf("expected error code %q, got %q (%v)", code, got, tc.LastErr)
	}
	return nil
}

func (tc *TestContext) ledgerShouldContainEntries(ctx context.Context, expected int) error {
	count := 0
	for range tc.Wallet().ListLedgerEntries(ctx, ledger.Filter{}) {
		count++
	}
	if count != expected {
		return fmt.Errorf("expected %d ledger entries, got %d", expected, count)
	}
	return nil
}

func (tc *TestContext) ledgerShouldContainEventEntries(ctx context.Context, expected int, eventType string) error {
	et := ledger.EventType(eventType)
	if !et.IsValid() {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	count := 0
	for range tc.Wallet().ListLedgerEntries(ctx, ledger.Filter{EventType: &et}) {
		count++
	}
	if count != expected {
		return fmt.Errorf("expected %d %s entries, got %d", expected, eventType, count)
	}
	return nil
}

// ledgerEventsShouldBe compares the whole ledger against a table with
// event_type and status columns.
func (tc *TestContext) ledgerEventsShouldBe(ctx context.Context, table *godog.Table) error {
	if len(table.Rows) < 1 {
		return fmt.Errorf("table needs a header row")
	}
	var got []ledger.Entry
	for e := range tc.Wallet().ListLedgerEntries(ctx, ledger.Filter{}) {
		got = append(got, e)
	}
	want := table.Rows[1:]
	if len(got) != len(want) {
		return fmt.Errorf("expected %d ledger entries, got %d", len(want), len(got))
	}
	for i, row := range want {
		eventType, status := row.Cells[0].Value, row.Cells[1].Value
		if string(got[i].EventType) != eventType {
			return fmt.Errorf("entry %d: expected event %s, got %s", i, eventType, got[i].EventType)
		}
		if string(got[i].Status()) != status {
			return fmt.Errorf("entry %d: expected status %s, got %s", i, status, got[i].Status())
		}
		if got[i].Sequence != uint64(i) {
			return fmt.Errorf("entry %d: sequence %d out of order", i, got[i].Sequence)
		}
	}
	return nil
}

func (tc *TestContext) ledgerChainShouldVerify(ctx context.Context) error {
	report, err := tc.Wallet().VerifyLedger(ctx)
	if err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("chain broken at %v: %s", report.BrokenAt, report.Reason)
	}
	return nil
}

func (tc *TestContext) getFromOps(_ context.Context, path string) error {
	return tc.GET(path)
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, expected int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, tc.LastResponse.StatusCode, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(_ context.Context, field, expected string) error {
	var body map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	value, ok := body[field]
	if !ok {
		return fmt.Errorf("field %q not in response", field)
	}
	var got string
	switch v := value.(type) {
	case string:
		got = v
	case float64:
		got = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		got = strconv.FormatBool(v)
	default:
		got = fmt.Sprint(v)
	}
	if got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (tc *TestContext) responseShouldContain(_ context.Context, text string) error {
	if !strings.Contains(string(tc.LastResponseBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, string(tc.LastResponseBody))
	}
	return nil
}
