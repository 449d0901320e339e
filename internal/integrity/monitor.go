// Package integrity periodically re-verifies the ledger hash chain and stops
// the process when it no longer verifies.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
)

// Verifier is the ledger as seen by the monitor.
type Verifier interface {
	VerifyChain(ctx context.Context) error
	Len() uint64
}

// Report summarizes one verification run.
type Report struct {
	CheckedAt time.Time
	Entries   uint64
}

// Monitor runs VerifyChain on a fixed interval.
type Monitor struct {
	ledger   Verifier
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu        sync.RWMutex
	last      Report
	corrupted error
}

type Option func(*Monitor)

// WithInterval overrides the verification interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

func New(ledger Verifier, opts ...Option) (*Monitor, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	m := &Monitor{
		ledger:   ledger,
		interval: 30 * time.Second,
		clock:    clock.System(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Start verifies the chain every interval until ctx is cancelled or the
// chain is found corrupted. Corruption is returned so the caller can stop
// the process; other verification failures are logged and retried on the
// next tick.
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				if IsCorruption(err) {
					return err
				}
				m.logger.ErrorContext(ctx, "ledger verification failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single verification. Once corruption has been seen it
// is reported on every later call without re-verifying.
func (m *Monitor) RunOnce(ctx context.Context) (Report, error) {
	if err := m.Healthy(); err != nil {
		return m.LastReport(), err
	}

	report := Report{CheckedAt: m.clock.Now(), Entries: m.ledger.Len()}
	err := m.ledger.VerifyChain(ctx)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeChainCorrupted) {
		return Report{}, fmt.Errorf("verify chain: %w", err)
	}

	m.mu.Lock()
	m.last = report
	if err != nil {
		m.corrupted = err
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.ErrorContext(ctx, "ledger chain corrupted",
			"entries", report.Entries,
			"error", err,
		)
		return report, err
	}
	m.logger.DebugContext(ctx, "ledger chain verified", "entries", report.Entries)
	return report, nil
}

// Healthy returns the corruption error once the chain has failed to
// verify, and nil before that. It backs the readiness probe.
func (m *Monitor) Healthy() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.corrupted
}

// LastReport returns the most recent successful or corrupted run.
func (m *Monitor) LastReport() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// IsCorruption reports whether err came from a broken chain.
func IsCorruption(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeChainCorrupted)
}
