package wallet

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"idwallet/internal/auth"
	authmetrics "idwallet/internal/auth/metrics"
	consentmetrics "idwallet/internal/consent/metrics"
	consentservice "idwallet/internal/consent/service"
	consentstore "idwallet/internal/consent/store"
	credentialmetrics "idwallet/internal/credential/metrics"
	"idwallet/internal/credential/payload"
	credentialservice "idwallet/internal/credential/service"
	credentialstore "idwallet/internal/credential/store"
	"idwallet/internal/identity"
	"idwallet/internal/ledger"
	ledgermetrics "idwallet/internal/ledger/metrics"
	"idwallet/internal/platform/config"
	"idwallet/internal/platform/metrics"
	"idwallet/internal/platform/tracer"
	"idwallet/pkg/platform/clock"
)

// Runtime carries the process-level collaborators shared by every service.
// Zero values select slog.Default, the default Prometheus registry, a no-op
// tracer and the system clock.
type Runtime struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Tracer     tracer.Tracer
	Clock      clock.Clock
	// Authenticators are tried before the PIN fallback built from config,
	// typically a platform biometric.
	Authenticators []auth.Authenticator
}

// Components is an assembled in-memory wallet together with the ledger it
// writes to, for processes that also monitor the chain.
type Components struct {
	Wallet *Wallet
	Ledger *ledger.Ledger
}

// Build assembles an in-memory wallet from configuration.
func Build(cfg *config.Config, rt Runtime) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if rt.Logger == nil {
		rt.Logger = slog.Default()
	}
	if rt.Registerer == nil {
		rt.Registerer = prometheus.DefaultRegisterer
	}
	if rt.Tracer == nil {
		rt.Tracer = tracer.NewNoop()
	}
	if rt.Clock == nil {
		rt.Clock = clock.System()
	}

	chain, err := ledger.New(ledger.NewInMemoryStore(),
		ledger.WithClock(rt.Clock),
		ledger.WithLogger(rt.Logger),
		ledger.WithMetrics(ledgermetrics.New(rt.Registerer)),
		ledger.WithTracer(rt.Tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}

	credentials, err := credentialservice.New(credentialstore.New(), chain,
		credentialservice.WithClock(rt.Clock),
		credentialservice.WithLogger(rt.Logger),
		credentialservice.WithMetrics(credentialmetrics.New(rt.Registerer)),
		credentialservice.WithTracer(rt.Tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("build credential service: %w", err)
	}

	consents, err := consentservice.NewService(consentstore.New(), chain,
		consentservice.WithClock(rt.Clock),
		consentservice.WithLogger(rt.Logger),
		consentservice.WithMetrics(consentmetrics.New(rt.Registerer)),
		consentservice.WithTracer(rt.Tracer),
		consentservice.WithConsentTTL(cfg.Consent.TTL),
	)
	if err != nil {
		return nil, fmt.Errorf("build consent service: %w", err)
	}

	authenticators := append([]auth.Authenticator(nil), rt.Authenticators...)
	if cfg.Auth.PINHash != "" {
		pin, err := auth.NewPinFallback(cfg.Auth.PINHash,
			auth.WithLockout(cfg.Auth.MaxAttempts, cfg.Auth.Lockout),
			auth.WithPinClock(rt.Clock),
		)
		if err != nil {
			return nil, fmt.Errorf("build pin fallback: %w", err)
		}
		authenticators = append(authenticators, pin)
	}
	if len(authenticators) == 0 {
		return nil, errors.New("no authenticator configured: set a pin hash or supply an authenticator")
	}
	authService, err := auth.NewService(chain, authenticators,
		auth.WithLogger(rt.Logger),
		auth.WithMetrics(authmetrics.New(rt.Registerer)),
	)
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	documents, err := identity.NewService(identity.NewInMemoryStore(),
		identity.WithClock(rt.Clock),
		identity.WithLogger(rt.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build document service: %w", err)
	}

	signer, err := payload.NewSigner([]byte(cfg.Credential.SigningKey), cfg.Credential.Issuer)
	if err != nil {
		return nil, fmt.Errorf("build payload signer: %w", err)
	}

	w, err := New(Dependencies{
		Credentials: credentials,
		Consents:    consents,
		Ledger:      chain,
		Auth:        authService,
		Documents:   documents,
		Signer:      signer,
	},
		WithClock(rt.Clock),
		WithLogger(rt.Logger),
		WithMetrics(metrics.New(rt.Registerer)),
		WithRefreshLead(cfg.Credential.RefreshLead),
		WithCredentialTTL(cfg.Credential.TTL),
	)
	if err != nil {
		return nil, err
	}
	return &Components{Wallet: w, Ledger: chain}, nil
}
