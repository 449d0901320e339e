package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"idwallet/internal/auth/metrics"
	"idwallet/internal/ledger"
	dErrors "idwallet/pkg/domain-errors"
)

// Ledger records authentication events.
type Ledger interface {
	Append(ctx context.Context, eventType ledger.EventType, payload ledger.Payload) (ledger.Entry, error)
}

type Option func(*Service)

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

// Service runs authentication attempts against an ordered list of
// authenticators and records every attempt in the ledger.
type Service struct {
	authenticators []Authenticator
	ledger         Ledger
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// NewService builds a service. Authenticators are tried in the given order
// when a challenge names no method, so pass the preferred one first.
func NewService(ledger Ledger, authenticators []Authenticator, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if len(authenticators) == 0 {
		return nil, errors.New("at least one authenticator is required")
	}
	svc := &Service{
		authenticators: authenticators,
		ledger:         ledger,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Methods lists the configured authentication methods in preference order.
func (s *Service) Methods() []Method {
	out := make([]Method, 0, len(s.authenticators))
	for _, a := range s.authenticators {
		out = append(out, a.Method())
	}
	return out
}

// Authenticate runs one attempt and appends auth_succeeded or auth_failed.
// An unknown method is invalid_input; a locked PIN returns a locked error
// after the failure has been recorded.
func (s *Service) Authenticate(ctx context.Context, challenge Challenge) (Result, error) {
	authenticator, err := s.pick(ctx, challenge.Method)
	if err != nil {
		return Result{}, err
	}
	if authenticator == nil {
		result := failed(challenge.Method, ReasonNoMethod)
		if err := s.record(ctx, result); err != nil {
			return Result{}, err
		}
		return result, nil
	}

	start := time.Now()
	result, authErr := authenticator.Authenticate(ctx, challenge)
	if authErr != nil && !dErrors.HasCode(authErr, dErrors.CodeLocked) {
		s.logger.ErrorContext(ctx, "authentication error",
			"method", string(authenticator.Method()),
			"error", authErr,
		)
		return Result{}, authErr
	}
	if result.Method == "" {
		result.Method = authenticator.Method()
	}
	if s.metrics != nil {
		s.metrics.ObserveDuration(string(result.Method), time.Since(start).Seconds())
	}
	if err := s.record(ctx, result); err != nil {
		return Result{}, err
	}
	return result, authErr
}

// pick returns the authenticator for method, or the first available one
// when method is empty. A nil authenticator with nil error means none is
// available.
func (s *Service) pick(ctx context.Context, method Method) (Authenticator, error) {
	if method == "" {
		for _, a := range s.authenticators {
			if a.Available(ctx) {
				return a, nil
			}
		}
		return nil, nil
	}
	for _, a := range s.authenticators {
		if a.Method() == method {
			return a, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported authentication method "+string(method))
}

func (s *Service) record(ctx context.Context, result Result) error {
	eventType := ledger.EventAuthSucceeded
	payload := ledger.Payload{ledger.KeyAuthMethod: string(result.Method)}
	if !result.Success {
		eventType = ledger.EventAuthFailed
		payload[ledger.KeyReason] = result.Reason
	}
	if _, err := s.ledger.Append(context.WithoutCancel(ctx), eventType, payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record authentication")
	}

	if result.Success {
		if s.metrics != nil {
			s.metrics.IncrementSucceeded(string(result.Method))
		}
		s.logger.InfoContext(ctx, "holder authenticated", "method", string(result.Method))
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncrementFailure(string(result.Method), result.Reason)
	}
	s.logger.WarnContext(ctx, "holder authentication failed",
		"method", string(result.Method),
		"reason", result.Reason,
	)
	return nil
}
