// Package service manages the consent-request lifecycle: creation, lazy
// expiry and a single irrevocable decision per request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"idwallet/internal/consent/metrics"
	"idwallet/internal/consent/models"
	"idwallet/internal/ledger"
	"idwallet/internal/platform/tracer"
	id "idwallet/pkg/domain"
	pkgerrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/platform/sentinel"
	platformstrings "idwallet/pkg/platform/strings"
	platformsync "idwallet/pkg/platform/sync"
	"idwallet/pkg/platform/validation"
	pkgvalidation "idwallet/pkg/validation"
)

// Store defines the persistence interface for consent requests.
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when no record exists
// - Transition returns sentinel.ErrInvalidState when the current status differs from `from`
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Save(ctx context.Context, request *models.Request) error
	FindByID(ctx context.Context, requestID id.ConsentRequestID) (*models.Request, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Request, error)
	Transition(ctx context.Context, requestID id.ConsentRequestID, from, to models.Status, at time.Time) (*models.Request, error)
}

// Ledger records consent events.
type Ledger interface {
	Append(ctx context.Context, eventType ledger.EventType, payload ledger.Payload) (ledger.Entry, error)
}

type Option func(*Service)

const defaultConsentTTL = 5 * time.Minute

// Service persists consent requests and enforces lifecycle rules.
type Service struct {
	store      Store
	tx         RequestTx
	ledger     Ledger
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     tracer.Tracer
	consentTTL time.Duration
}

func NewService(store Store, ledger Ledger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("consent store is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	svc := &Service{
		store:      store,
		ledger:     ledger,
		clock:      clock.System(),
		logger:     slog.Default(),
		tracer:     tracer.NewNoop(),
		consentTTL: defaultConsentTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.tx == nil {
		svc.tx = &shardedRequestTx{
			mu:      platformsync.NewShardedMutex(0),
			store:   store,
			metrics: svc.metrics,
		}
	}
	return svc, nil
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithConsentTTL configures how long a request stays open when the caller
// does not choose. Zero or negative keeps the default of five minutes.
func WithConsentTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.consentTTL = ttl
		}
	}
}

// WithTx replaces the per-request transaction boundary.
func WithTx(tx RequestTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// Create opens a pending consent request and records consent_requested.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Request, error) {
	if err := pkgvalidation.Validate(req); err != nil {
		return nil, err
	}
	fields := platformstrings.DedupeAndTrim(req.RequestedFields)
	if err := checkCreateLimits(req, fields); err != nil {
		return nil, err
	}
	requesterID, err := id.ParseRequesterID(req.RequesterID)
	if err != nil {
		return nil, err
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = s.consentTTL
	}
	now := s.clock.Now()
	request, err := models.NewRequest(
		id.NewConsentRequestID(),
		requesterID,
		strings.TrimSpace(req.RequesterName),
		strings.TrimSpace(req.Purpose),
		fields,
		now,
		now.Add(ttl),
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, request.ID.String(), func(store Store) error {
		if err := store.Save(ctx, request); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to save consent request")
		}
		return s.record(ctx, ledger.EventConsentRequested, request)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logger.InfoContext(ctx, "consent requested",
		"consent_request_id", request.ID.String(),
		"requester_id", request.RequesterID.String(),
		"purpose", request.Purpose,
		"fields", len(request.RequestedFields),
		"expires_at", request.ExpiresAt,
	)
	return request, nil
}

func checkCreateLimits(req models.CreateRequest, fields []string) error {
	checks := []error{
		validation.CheckStringLength("requester_id", strings.TrimSpace(req.RequesterID), validation.MaxRequesterIDLength),
		validation.CheckStringLength("requester_name", strings.TrimSpace(req.RequesterName), validation.MaxRequesterNameLength),
		validation.CheckStringLength("purpose", strings.TrimSpace(req.Purpose), validation.MaxPurposeLength),
		validation.CheckSliceCount("requested_fields", len(fields), validation.MaxRequestedFields),
		validation.CheckEachStringLength("requested_fields", fields, validation.MaxFieldNameLength),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the request after applying lazy expiry.
func (s *Service) Get(ctx context.Context, requestID id.ConsentRequestID) (*models.Request, error) {
	if requestID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "consent request id is required")
	}
	var request *models.Request
	err := s.tx.RunInTx(ctx, requestID.String(), func(store Store) error {
		var err error
		request, err = s.loadLocked(ctx, store, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Decide approves or denies a pending request. Requests that are no longer
// pending, including ones that expired before the decision, return
// already_decided.
func (s *Service) Decide(ctx context.Context, requestID id.ConsentRequestID, decision models.Decision) (decided *models.Request, err error) {
	ctx, span := s.tracer.Start(ctx, "consent.decide",
		tracer.String("consent_request_id", requestID.String()),
		tracer.Bool("approve", bool(decision)),
	)
	defer func() { span.End(err) }()

	if requestID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "consent request id is required")
	}
	start := time.Now()

	err = s.tx.RunInTx(ctx, requestID.String(), func(store Store) error {
		current, err := s.loadLocked(ctx, store, requestID)
		if err != nil {
			return err
		}
		if current.Status.IsDecided() {
			return s.alreadyDecided(ctx, current)
		}

		to := decision.Status()
		updated, err := store.Transition(ctx, requestID, models.StatusPending, to, s.clock.Now())
		if errors.Is(err, sentinel.ErrInvalidState) {
			latest, findErr := store.FindByID(ctx, requestID)
			if findErr != nil {
				return pkgerrors.Wrap(findErr, pkgerrors.CodeInternal, "failed to reload consent request")
			}
			return s.alreadyDecided(ctx, latest)
		}
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to record consent decision")
		}

		eventType := ledger.EventConsentDenied
		if decision == models.Approve {
			eventType = ledger.EventConsentApproved
		}
		if err := s.record(ctx, eventType, updated); err != nil {
			return err
		}
		decided = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementDecision(string(decided.Status))
		s.metrics.ObserveDecideLatency(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "consent decided",
		"consent_request_id", requestID.String(),
		"requester_id", decided.RequesterID.String(),
		"status", string(decided.Status),
	)
	return decided, nil
}

// List returns the requests matching filter ordered by creation time. Every
// pending record passes through lazy expiry before filtering, so a status
// filter never sees a stale pending request.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	all, err := s.store.List(ctx, models.Filter{RequesterID: filter.RequesterID})
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to list consent requests")
	}
	now := s.clock.Now()
	out := make([]*models.Request, 0, len(all))
	for _, request := range all {
		if request.IsExpiredAt(now) {
			if request, err = s.Get(ctx, request.ID); err != nil {
				return nil, err
			}
		}
		if filter.Status != nil && request.Status != *filter.Status {
			continue
		}
		out = append(out, request)
	}
	return out, nil
}

// loadLocked reads a request and applies lazy expiry. The caller holds the
// request's transaction.
func (s *Service) loadLocked(ctx context.Context, store Store, requestID id.ConsentRequestID) (*models.Request, error) {
	request, err := store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "consent request not found")
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to load consent request")
	}
	now := s.clock.Now()
	if !request.IsExpiredAt(now) {
		return request, nil
	}

	expired, err := store.Transition(ctx, requestID, models.StatusPending, models.StatusExpired, now)
	if errors.Is(err, sentinel.ErrInvalidState) {
		latest, findErr := store.FindByID(ctx, requestID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(findErr, pkgerrors.CodeInternal, "failed to reload consent request")
		}
		return latest, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to expire consent request")
	}
	if err := s.record(ctx, ledger.EventConsentExpired, expired); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementExpired()
	}
	s.logger.InfoContext(ctx, "consent request expired",
		"consent_request_id", requestID.String(),
		"requester_id", expired.RequesterID.String(),
	)
	return expired, nil
}

func (s *Service) alreadyDecided(ctx context.Context, request *models.Request) error {
	if s.metrics != nil {
		s.metrics.IncrementAlreadyDecided()
	}
	s.logger.WarnContext(ctx, "consent decision refused",
		"consent_request_id", request.ID.String(),
		"status", string(request.Status),
	)
	return pkgerrors.New(pkgerrors.CodeAlreadyDecided, "consent request is already "+string(request.Status))
}

// record appends a consent event. It runs after the store mutation has
// committed, so the caller's cancellation no longer applies.
func (s *Service) record(ctx context.Context, eventType ledger.EventType, request *models.Request) error {
	payload := ledger.Payload{
		ledger.KeyConsentRequestID: request.ID.String(),
		ledger.KeyRequesterID:      request.RequesterID.String(),
		ledger.KeyPurpose:          request.Purpose,
		ledger.KeyRequestedFields:  strings.Join(request.RequestedFields, ","),
	}
	if _, err := s.ledger.Append(context.WithoutCancel(ctx), eventType, payload); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to record consent event")
	}
	return nil
}
