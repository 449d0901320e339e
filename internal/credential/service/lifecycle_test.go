package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idwallet/internal/credential/models"
	"idwallet/internal/credential/store"
	"idwallet/internal/ledger"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/testutil"
)

type lifecycleFixture struct {
	ctx     context.Context
	clock   *clock.Manual
	ledger  *ledger.Ledger
	service *Service
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	c := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	l, err := ledger.New(ledger.NewInMemoryStore(), ledger.WithClock(c))
	require.NoError(t, err)
	svc, err := New(store.New(), l,
		WithClock(c),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return &lifecycleFixture{ctx: context.Background(), clock: c, ledger: l, service: svc}
}

func (f *lifecycleFixture) eventTypes() []ledger.EventType {
	var out []ledger.EventType
	for e := range f.ledger.Entries(f.ctx, ledger.Filter{}) {
		out = append(out, e.EventType)
	}
	return out
}

func TestIssueValidateTwice(t *testing.T) {
	f := newLifecycleFixture(t)

	cred, err := f.service.Issue(f.ctx, "FYD-001", 300*time.Second)
	require.NoError(t, err)

	first, err := f.service.Validate(f.ctx, cred.ID, cred.PayloadHash)
	require.NoError(t, err)
	assert.True(t, first.Accepted)

	second, err := f.service.Validate(f.ctx, cred.ID, cred.PayloadHash)
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, models.ReasonAlreadyUsed, second.Reason)

	entries := slices.Collect(f.ledger.Entries(f.ctx, ledger.Filter{}))
	require.Len(t, entries, 3)
	assert.Equal(t, []ledger.EventType{
		ledger.EventCredentialIssued,
		ledger.EventCredentialVerified,
		ledger.EventCredentialRejected,
	}, f.eventTypes())
	for i, e := range entries {
		assert.Equal(t, uint64(i), e.Sequence)
	}
	assert.Equal(t, string(models.ReasonAlreadyUsed), entries[2].Payload[ledger.KeyReason])
	assert.NoError(t, f.ledger.VerifyChain(f.ctx))
}

func TestValidateAfterExpiry(t *testing.T) {
	f := newLifecycleFixture(t)
	cred, err := f.service.Issue(f.ctx, "FYD-001", time.Minute)
	require.NoError(t, err)

	f.clock.Set(cred.ExpiresAt)
	atBoundary, err := f.service.Current(f.ctx, "FYD-001")
	require.NoError(t, err, "credential is valid at exactly ExpiresAt")
	assert.Equal(t, cred.ID, atBoundary.ID)

	f.clock.Advance(time.Nanosecond)
	out, err := f.service.Validate(f.ctx, cred.ID, cred.PayloadHash)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonExpired, out.Reason)

	history, err := f.service.History(f.ctx, "FYD-001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusExpired, history[0].Status)
}

func TestReissueRevokesPrevious(t *testing.T) {
	f := newLifecycleFixture(t)
	old, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	fresh, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)

	out, err := f.service.Validate(f.ctx, old.ID, old.PayloadHash)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonRevoked, out.Reason)

	current, err := f.service.Current(f.ctx, "FYD-001")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, current.ID)

	issued := ledger.EventCredentialIssued
	entries := slices.Collect(f.ledger.Entries(f.ctx, ledger.Filter{EventType: &issued}))
	require.Len(t, entries, 2)
	assert.Equal(t, old.ID.String(), entries[1].Payload[ledger.KeyRevokedCredentialID])
}

func TestHashMismatchDoesNotConsume(t *testing.T) {
	f := newLifecycleFixture(t)
	cred, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)

	out, err := f.service.Validate(f.ctx, cred.ID, "sha256:deadbeef")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonHashMismatch, out.Reason)

	out, err = f.service.Validate(f.ctx, cred.ID, cred.PayloadHash)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
}

func TestExplicitRevoke(t *testing.T) {
	f := newLifecycleFixture(t)
	cred, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)

	_, err = f.service.Revoke(f.ctx, cred.ID)
	require.NoError(t, err)

	_, err = f.service.Revoke(f.ctx, cred.ID)
	require.Error(t, err)

	out, err := f.service.Validate(f.ctx, cred.ID, cred.PayloadHash)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonRevoked, out.Reason)
	assert.Contains(t, f.eventTypes(), ledger.EventCredentialRevoked)
}

func TestConcurrentValidationConsumesOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	cred, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)

	const validators = 100
	outcomes := make([]models.Outcome, validators)
	result := testutil.RunConcurrentCtx(f.ctx, validators, func(ctx context.Context, i int) error {
		out, err := f.service.Validate(ctx, cred.ID, cred.PayloadHash)
		outcomes[i] = out
		return err
	})
	require.Equal(t, int32(validators), result.Successes)

	accepted := 0
	for _, out := range outcomes {
		if out.Accepted {
			accepted++
			continue
		}
		assert.Equal(t, models.ReasonAlreadyUsed, out.Reason)
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, uint64(validators+1), f.ledger.Len())
	assert.NoError(t, f.ledger.VerifyChain(f.ctx))
}

func TestConcurrentValidationRecordsWinnerFirst(t *testing.T) {
	for round := range 50 {
		f := newLifecycleFixture(t)
		cred, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
		require.NoError(t, err)

		result := testutil.RunConcurrentCtx(f.ctx, 8, func(ctx context.Context, _ int) error {
			_, err := f.service.Validate(ctx, cred.ID, cred.PayloadHash)
			return err
		})
		require.Equal(t, int32(8), result.Successes)

		entries := slices.Collect(f.ledger.Entries(f.ctx, ledger.Filter{}))
		require.Len(t, entries, 9)
		assert.Equal(t, ledger.EventCredentialVerified, entries[1].EventType, "round %d", round)
		for _, e := range entries[2:] {
			assert.Equal(t, ledger.EventCredentialRejected, e.EventType, "round %d", round)
		}
	}
}

func TestConcurrentIssueKeepsOneActive(t *testing.T) {
	f := newLifecycleFixture(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			_, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	history, err := f.service.History(f.ctx, "FYD-001")
	require.NoError(t, err)
	active := 0
	for _, c := range history {
		if c.Status == models.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestCancelledContextIsRejectedBeforeStart(t *testing.T) {
	f := newLifecycleFixture(t)
	cred, err := f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	_, err = f.service.Validate(ctx, cred.ID, cred.PayloadHash)
	require.Error(t, err)
	assert.Equal(t, uint64(1), f.ledger.Len())
}

func TestReissueAfterExpiryKeepsPreviousExpired(t *testing.T) {
	f := newLifecycleFixture(t)
	old, err := f.service.Issue(f.ctx, "FYD-001", time.Minute)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.service.Issue(f.ctx, "FYD-001", 5*time.Minute)
	require.NoError(t, err)

	out, err := f.service.Validate(f.ctx, old.ID, old.PayloadHash)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, models.ReasonExpired, out.Reason)

	issued := ledger.EventCredentialIssued
	entries := slices.Collect(f.ledger.Entries(f.ctx, ledger.Filter{EventType: &issued}))
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[1].Payload, ledger.KeyRevokedCredentialID)
}
