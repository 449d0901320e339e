package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"idwallet/internal/integrity"
	"idwallet/internal/platform/config"
	"idwallet/internal/platform/health"
	"idwallet/internal/platform/tracer"
	httptransport "idwallet/internal/transport/http"
	"idwallet/internal/wallet"
	"idwallet/pkg/platform/middleware/request"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the wallet with its operations endpoint and integrity monitor",
		Long: "Serves /metrics, /health and read-only ledger endpoints, and re-verifies the " +
			"ledger chain periodically. Exits non-zero when the chain is found corrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.Auth.PINHash == "" {
				return errors.New("no PIN configured: set WALLET_PIN_HASH (see walletd hash-pin)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags, cfg)
		},
	}
}

func serve(ctx context.Context, flags *globalFlags, cfg *config.Config) error {
	log := newLogger(os.Stdout, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// A host embedding the wallet passes its biometric binding, wrapped in
	// auth.NewPlatformBiometric, through Runtime.Authenticators. walletd has
	// none, so the PIN fallback from config is the only method.
	components, err := wallet.Build(cfg, wallet.Runtime{
		Logger:     log,
		Registerer: reg,
		Tracer:     tracer.NewOTel(),
	})
	if err != nil {
		return fmt.Errorf("build wallet: %w", err)
	}

	monitor, err := integrity.New(components.Ledger,
		integrity.WithInterval(cfg.Integrity.Interval),
		integrity.WithLogger(log),
	)
	if err != nil {
		return err
	}

	probes := health.New(cfg.Environment)
	probes.RegisterCheck("ledger_chain", func(context.Context) error { return monitor.Healthy() })
	probes.RegisterDetail("ledger_entries", func() any { return components.Ledger.Len() })
	probes.RegisterDetail("ledger_head", func() any { return components.Ledger.Head().String() })

	srv := &http.Server{
		Addr: cfg.Ops.Addr,
		Handler: httptransport.NewRouter(httptransport.RouterConfig{
			Handler:  httptransport.NewHandler(components.Wallet, log),
			Health:   probes,
			Gatherer: reg,
			Metrics:  request.NewMetrics(reg),
			Logger:   log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.InfoContext(ctx, "starting walletd",
		"ops_addr", cfg.Ops.Addr,
		"environment", cfg.Environment,
		"integrity_interval", cfg.Integrity.Interval.String(),
		"config_file", flags.configPath,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := monitor.Start(gctx)
		if integrity.IsCorruption(err) {
			log.ErrorContext(ctx, "halting: ledger chain corrupted", "error", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.InfoContext(ctx, "walletd stopped")
	return nil
}
