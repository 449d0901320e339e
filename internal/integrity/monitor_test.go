package integrity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idwallet/internal/ledger"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
)

type fakeLedger struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeLedger) VerifyChain(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeLedger) Len() uint64 { return 3 }

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func corruption() error {
	return &dErrors.Error{
		Code: dErrors.CodeChainCorrupted,
		Err:  &ledger.CorruptionError{Sequence: 1, Reason: "entry hash does not match contents"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_Healthy(t *testing.T) {
	c := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	m, err := New(&fakeLedger{}, WithClock(c), WithLogger(quietLogger()))
	require.NoError(t, err)

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{CheckedAt: c.Now(), Entries: 3}, report)
	assert.NoError(t, m.Healthy())
}

func TestRunOnce_RealLedger(t *testing.T) {
	l, err := ledger.New(ledger.NewInMemoryStore())
	require.NoError(t, err)
	_, err = l.Append(context.Background(), ledger.EventAuthSucceeded, ledger.Payload{ledger.KeyAuthMethod: "test"})
	require.NoError(t, err)

	m, err := New(l, WithLogger(quietLogger()))
	require.NoError(t, err)
	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Entries)
}

func TestRunOnce_CorruptionIsSticky(t *testing.T) {
	fake := &fakeLedger{errs: []error{corruption()}}
	m, err := New(fake, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = m.RunOnce(context.Background())
	assert.True(t, IsCorruption(err))

	_, err = m.RunOnce(context.Background())
	assert.True(t, IsCorruption(err))
	assert.Equal(t, 1, fake.callCount())
	assert.Error(t, m.Healthy())
}

func TestRunOnce_TransientFailure(t *testing.T) {
	fake := &fakeLedger{errs: []error{errors.New("store unavailable")}}
	m, err := New(fake, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = m.RunOnce(context.Background())
	require.Error(t, err)
	assert.False(t, IsCorruption(err))
	assert.NoError(t, m.Healthy())
}

func TestStart_StopsOnCorruption(t *testing.T) {
	fake := &fakeLedger{errs: []error{errors.New("transient"), nil, corruption()}}
	m, err := New(fake, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = m.Start(ctx)
	assert.True(t, IsCorruption(err))
	assert.Equal(t, 3, fake.callCount())
}

func TestStart_StopsOnCancel(t *testing.T) {
	m, err := New(&fakeLedger{}, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsCorruption(err))
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestNew_RequiresLedger(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
