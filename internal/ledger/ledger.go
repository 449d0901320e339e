// Package ledger is the append-only, hash-chained record of every wallet
// state change. Each entry commits to its predecessor's hash, so modifying,
// removing or reordering any entry is detected by VerifyChain.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"idwallet/internal/ledger/metrics"
	"idwallet/internal/platform/tracer"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
)

// CorruptionError reports the first entry at which the chain stops verifying.
type CorruptionError struct {
	Sequence uint64
	Reason   string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("ledger chain corrupted at sequence %d: %s", e.Sequence, e.Reason)
}

// Is matches domain errors carrying CodeChainCorrupted.
func (e *CorruptionError) Is(target error) bool {
	var de *dErrors.Error
	if errors.As(target, &de) {
		return de.Code == dErrors.CodeChainCorrupted
	}
	return false
}

const (
	reasonSequenceGap      = "sequence gap"
	reasonPreviousMismatch = "previous hash does not match predecessor"
	reasonEntryMismatch    = "entry hash does not match contents"
)

// Ledger serializes appends with a single mutex so the sequence counter and
// the previous-hash pointer always advance together.
type Ledger struct {
	mu    sync.Mutex
	store Store
	next  uint64
	head  Hash

	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(l *Ledger) {
		l.tracer = t
	}
}

// New builds a ledger over store, resuming from its last entry when the
// store is not empty.
func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	l := &Ledger{
		store:  store,
		clock:  clock.System(),
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	ctx := context.Background()
	n, err := store.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger length: %w", err)
	}
	if n > 0 {
		last, err := store.At(ctx, n-1)
		if err != nil {
			return nil, fmt.Errorf("read ledger head: %w", err)
		}
		l.head = last.EntryHash
	}
	l.next = n
	if l.metrics != nil {
		l.metrics.SetChainLength(n)
	}
	return l, nil
}

// Append records a new entry and returns it with its sequence and hashes.
// The context is consulted only before the append starts; once the entry
// is being written it is completed regardless of cancellation.
func (l *Ledger) Append(ctx context.Context, eventType EventType, payload Payload) (Entry, error) {
	if !eventType.IsValid() {
		return Entry{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown event type %q", eventType))
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeTimeout, "ledger append cancelled")
	}
	start := time.Now()

	l.mu.Lock()
	entry := Entry{
		Sequence:     l.next,
		PreviousHash: l.head,
		EventType:    eventType,
		Payload:      payload.Clone(),
		Timestamp:    l.clock.Now().UTC(),
	}
	entry.EntryHash = ComputeHash(entry)
	if err := l.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.IncrementAppendFailures()
		}
		l.logger.ErrorContext(ctx, "ledger append failed",
			"sequence", entry.Sequence,
			"event_type", string(eventType),
			"error", err,
		)
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append ledger entry")
	}
	l.next++
	l.head = entry.EntryHash
	length := l.next
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.IncrementAppended(string(eventType))
		l.metrics.SetChainLength(length)
		l.metrics.ObserveAppendLatency(time.Since(start).Seconds())
	}
	l.logger.DebugContext(ctx, "ledger entry appended",
		"sequence", entry.Sequence,
		"event_type", string(eventType),
		"entry_hash", entry.EntryHash.String(),
	)
	return entry.clone(), nil
}

// VerifyChain recomputes every hash from genesis and returns nil when the
// chain is intact. On the first mismatch it returns a domain error with
// CodeChainCorrupted wrapping a *CorruptionError.
// Entries appended while verification runs are not covered.
func (l *Ledger) VerifyChain(ctx context.Context) (err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.verify_chain")
	defer func() { span.End(err) }()
	start := time.Now()

	n, err := l.store.Len(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger length")
	}
	span.SetAttributes(tracer.Int64("ledger.length", int64(n)))

	prev := ZeroHash
	for seq := range n {
		if err := ctx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "chain verification cancelled")
		}
		entry, err := l.store.At(ctx, seq)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger entry")
		}
		if reason := checkLink(entry, seq, prev); reason != "" {
			return l.corrupted(ctx, seq, reason)
		}
		prev = entry.EntryHash
	}

	if l.metrics != nil {
		l.metrics.IncrementVerification("valid")
		l.metrics.ObserveVerifyLatency(time.Since(start).Seconds())
	}
	return nil
}

func checkLink(entry Entry, seq uint64, prev Hash) string {
	switch {
	case entry.Sequence != seq:
		return reasonSequenceGap
	case entry.PreviousHash != prev:
		return reasonPreviousMismatch
	case ComputeHash(entry) != entry.EntryHash:
		return reasonEntryMismatch
	default:
		return ""
	}
}

func (l *Ledger) corrupted(ctx context.Context, seq uint64, reason string) error {
	if l.metrics != nil {
		l.metrics.IncrementVerification("corrupted")
	}
	l.logger.ErrorContext(ctx, "ledger chain corrupted",
		"sequence", seq,
		"reason", reason,
	)
	return &dErrors.Error{
		Code:    dErrors.CodeChainCorrupted,
		Message: fmt.Sprintf("ledger chain corrupted at sequence %d", seq),
		Err:     &CorruptionError{Sequence: seq, Reason: reason},
	}
}

// Entries returns the entries matching filter in ascending sequence order.
// Each iteration reads the length once when it starts, so it is finite even
// while appends continue, and the sequence can be ranged over repeatedly.
func (l *Ledger) Entries(ctx context.Context, filter Filter) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		n, err := l.store.Len(ctx)
		if err != nil {
			l.logger.ErrorContext(ctx, "ledger listing failed", "error", err)
			return
		}
		for seq := range n {
			if ctx.Err() != nil {
				return
			}
			entry, err := l.store.At(ctx, seq)
			if err != nil {
				l.logger.ErrorContext(ctx, "ledger listing failed",
					"sequence", seq,
					"error", err,
				)
				return
			}
			if !filter.Matches(entry) {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// Head returns the hash of the latest entry, or ZeroHash for an empty ledger.
func (l *Ledger) Head() Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Len returns the number of appended entries.
func (l *Ledger) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}
