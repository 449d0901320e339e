// Package httptransport serves the wallet's operations endpoints: Prometheus
// metrics, health probes and read-only ledger inspection. The wallet itself
// has no network API.
package httptransport

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idwallet/internal/ledger"
	"idwallet/internal/platform/health"
	"idwallet/internal/wallet"
	"idwallet/pkg/platform/middleware/request"
)

// LedgerReader is the part of the wallet the ops endpoints expose.
type LedgerReader interface {
	VerifyLedger(ctx context.Context) (wallet.ChainReport, error)
	ListLedgerEntries(ctx context.Context, filter ledger.Filter) iter.Seq[ledger.Entry]
}

// Handler is the thin HTTP layer over the ledger read side.
type Handler struct {
	ledger LedgerReader
	logger *slog.Logger
}

func NewHandler(ledger LedgerReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ledger: ledger,
		logger: logger,
	}
}

// RouterConfig carries the collaborators of the ops router.
type RouterConfig struct {
	Handler  *Handler
	Health   *health.Handler
	Gatherer prometheus.Gatherer
	Metrics  *request.Metrics
	Logger   *slog.Logger
	Timeout  time.Duration
}

// NewRouter wires the ops endpoints with middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Timeout(cfg.Timeout))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Handler != nil {
		r.Get("/ledger/verify", cfg.Handler.handleVerify)
		r.Get("/ledger/entries", cfg.Handler.handleEntries)
	}
	return r
}
