// Package service issues and validates single-use verification credentials.
//
// Every state change is recorded in the ledger. Status changes are
// compare-and-set operations in the store, so "consumed exactly once" holds
// for any number of concurrent validators.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idwallet/internal/credential/metrics"
	"idwallet/internal/credential/models"
	"idwallet/internal/ledger"
	"idwallet/internal/platform/privacy"
	"idwallet/internal/platform/tracer"
	id "idwallet/pkg/domain"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/platform/sentinel"
	platformsync "idwallet/pkg/platform/sync"
)

// Store defines the persistence interface for credentials.
// Error Contract:
// - FindByID and FindActiveBySubject return sentinel.ErrNotFound when no record exists
// - Transition returns sentinel.ErrInvalidState when the current status differs from `from`
// - Rotate returns sentinel.ErrAlreadyExists for a duplicate id
type Store interface {
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	FindActiveBySubject(ctx context.Context, subjectID id.SubjectID) (*models.Credential, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Credential, error)
	Transition(ctx context.Context, credentialID id.CredentialID, from, to models.Status, at time.Time) (*models.Credential, error)
	Rotate(ctx context.Context, next *models.Credential, at time.Time) (*models.Credential, error)
}

// Ledger records credential events.
type Ledger interface {
	Append(ctx context.Context, eventType ledger.EventType, payload ledger.Payload) (ledger.Entry, error)
}

type Option func(*Service)

// Service implements credential issuance, revocation and validation.
type Service struct {
	store   Store
	ledger  Ledger
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	locks   *platformsync.ShardedMutex
}

// New creates a credential service.
func New(store Store, ledger Ledger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	svc := &Service{
		store:  store,
		ledger: ledger,
		clock:  clock.System(),
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
		locks:  platformsync.NewShardedMutex(0),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithShards sets the number of per-subject issuance lock shards.
func WithShards(n int) Option {
	return func(s *Service) {
		s.locks = platformsync.NewShardedMutex(n)
	}
}

// expire lazily moves an active credential past its expiry to expired.
// Losing the race to another transition is not an error; the credential
// is no longer active either way.
func (s *Service) expire(ctx context.Context, c *models.Credential, now time.Time) error {
	_, err := s.store.Transition(ctx, c.ID, models.StatusActive, models.StatusExpired, now)
	if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire credential")
	}
	if err == nil {
		s.logger.InfoContext(ctx, "credential expired",
			"credential_id", c.ID.String(),
			"subject", privacy.MaskIdentifier(c.SubjectID.String()),
		)
	}
	return nil
}

// statusError maps a terminal status to the domain error for operations
// that require an active credential.
func statusError(status models.Status) error {
	switch status {
	case models.StatusUsed:
		return dErrors.New(dErrors.CodeAlreadyUsed, "credential already used")
	case models.StatusRevoked:
		return dErrors.New(dErrors.CodeRevoked, "credential revoked")
	case models.StatusExpired:
		return dErrors.New(dErrors.CodeExpired, "credential expired")
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "credential in unexpected status "+string(status))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
