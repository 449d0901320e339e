package e2e

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"idwallet/internal/auth"
	"idwallet/internal/platform/config"
	"idwallet/internal/platform/health"
	httptransport "idwallet/internal/transport/http"
	"idwallet/internal/wallet"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/platform/middleware/request"
)

// ScenarioStart is the wall-clock time every scenario begins at.
var ScenarioStart = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

// TestContext holds the in-process wallet and state shared between steps.
type TestContext struct {
	Clock      *clock.Manual
	Components *wallet.Components
	Registry   *prometheus.Registry

	ops              *httptest.Server
	LastErr          error
	LastResponse     *http.Response
	LastResponseBody []byte
}

// Reset builds a fresh wallet for the next scenario.
func (tc *TestContext) Reset() error {
	tc.Close()

	cfg := config.Defaults()
	cfg.Consent.TTL = 5 * time.Minute

	tc.Clock = clock.NewManual(ScenarioStart)
	tc.Registry = prometheus.NewRegistry()
	components, err := wallet.Build(cfg, wallet.Runtime{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer:     tc.Registry,
		Clock:          tc.Clock,
		Authenticators: []auth.Authenticator{auth.AlwaysSucceed{}},
	})
	if err != nil {
		return fmt.Errorf("build wallet: %w", err)
	}
	tc.Components = components
	tc.LastErr = nil
	tc.LastResponse = nil
	tc.LastResponseBody = nil
	return nil
}

// Close stops the ops server if one was started.
func (tc *TestContext) Close() {
	if tc.ops != nil {
		tc.ops.Close()
		tc.ops = nil
	}
}

func (tc *TestContext) Wallet() *wallet.Wallet { return tc.Components.Wallet }

func (tc *TestContext) Now() time.Time { return tc.Clock.Now() }

func (tc *TestContext) Advance(d time.Duration) { tc.Clock.Advance(d) }

func (tc *TestContext) SetLastError(err error) { tc.LastErr = err }

// GET calls the ops endpoint, starting it on first use.
func (tc *TestContext) GET(path string) error {
	if tc.ops == nil {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		tc.ops = httptest.NewServer(httptransport.NewRouter(httptransport.RouterConfig{
			Handler:  httptransport.NewHandler(tc.Components.Wallet, logger),
			Health:   health.New("test"),
			Gatherer: tc.Registry,
			Metrics:  request.NewMetrics(tc.Registry),
			Logger:   logger,
		}))
	}

	resp, err := tc.ops.Client().Get(tc.ops.URL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody = body
	return nil
}
