package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"idwallet/internal/auth"
	consent "idwallet/internal/consent/models"
	"idwallet/internal/ledger"
	"idwallet/internal/platform/config"
	"idwallet/internal/wallet"
)

const (
	demoSubject  = "FYD-001"
	demoValidity = 300
)

func newDemoCmd(flags *globalFlags) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an issue, validate, consent walk-through and print the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			w, err := buildDemoWallet(cfg, os.Stderr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := runScenario(cmd.Context(), w.Wallet, subject, out); err != nil {
				return err
			}
			return printLedger(cmd.Context(), w.Wallet, out)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", demoSubject, "Subject identifier to issue the credential for")
	return cmd
}

func newVerifyDemoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-demo",
		Short: "Run the demo scenario silently and report whether the ledger chain verifies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			w, err := buildDemoWallet(cfg, io.Discard)
			if err != nil {
				return err
			}
			if err := runScenario(cmd.Context(), w.Wallet, demoSubject, io.Discard); err != nil {
				return err
			}
			report, err := w.Wallet.VerifyLedger(cmd.Context())
			if err != nil {
				return err
			}
			if err := yaml.NewEncoder(cmd.OutOrStdout()).Encode(chainReportDoc(report)); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("ledger chain broken: %s", report.Reason)
			}
			return nil
		},
	}
}

// buildDemoWallet wires a wallet whose authentication always succeeds, so
// the walk-through needs no biometric hardware or PIN.
func buildDemoWallet(cfg *config.Config, logOut io.Writer) (*wallet.Components, error) {
	return wallet.Build(cfg, wallet.Runtime{
		Logger:         newLogger(logOut, cfg),
		Registerer:     prometheus.NewRegistry(),
		Authenticators: []auth.Authenticator{auth.AlwaysSucceed{}},
	})
}

func runScenario(ctx context.Context, w *wallet.Wallet, subject string, out io.Writer) error {
	if _, err := w.Authenticate(ctx, auth.Challenge{Prompt: "Unlock wallet"}); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	view, err := w.IssueCredential(ctx, subject, demoValidity)
	if err != nil {
		return fmt.Errorf("issue credential: %w", err)
	}
	fmt.Fprintf(out, "issued   %s for %s, expires %s\n", view.ID, view.SubjectID, view.ExpiresAt.Format(time.RFC3339))

	first, err := w.ValidateCredential(ctx, view.ID, view.PayloadHash)
	if err != nil {
		return fmt.Errorf("validate credential: %w", err)
	}
	fmt.Fprintf(out, "verify   accepted=%t\n", first.Accepted)

	second, err := w.ValidateCredential(ctx, view.ID, view.PayloadHash)
	if err != nil {
		return fmt.Errorf("re-validate credential: %w", err)
	}
	fmt.Fprintf(out, "replay   accepted=%t reason=%s\n", second.Accepted, second.Reason)

	req, err := w.RequestConsent(ctx, consent.CreateRequest{
		RequesterID:     "bank-of-abyssinia",
		RequesterName:   "Bank of Abyssinia",
		Purpose:         "Account opening KYC",
		RequestedFields: []string{"full_name", "date_of_birth"},
	})
	if err != nil {
		return fmt.Errorf("request consent: %w", err)
	}
	decided, err := w.DecideConsent(ctx, req.ID.String(), true)
	if err != nil {
		return fmt.Errorf("decide consent: %w", err)
	}
	fmt.Fprintf(out, "consent  %s from %s is %s\n", decided.ID, decided.RequesterName, decided.Status)
	return nil
}

func printLedger(ctx context.Context, w *wallet.Wallet, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSEQ\tEVENT\tSTATUS\tTIMESTAMP\tHASH")
	for e := range w.ListLedgerEntries(ctx, ledger.Filter{}) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.Sequence, e.EventType, e.Status(), e.Timestamp.Format(time.RFC3339), shortHash(e.EntryHash))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	report, err := w.VerifyLedger(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nchain valid=%t entries=%d\n", report.Valid, report.Entries)
	return nil
}

func shortHash(h ledger.Hash) string {
	s := h.String()
	if len(s) > 19 {
		return s[:19]
	}
	return s
}

type chainReportYAML struct {
	Valid    bool    `yaml:"valid"`
	Entries  uint64  `yaml:"entries"`
	BrokenAt *uint64 `yaml:"broken_at,omitempty"`
	Reason   string  `yaml:"reason,omitempty"`
}

func chainReportDoc(r wallet.ChainReport) chainReportYAML {
	return chainReportYAML{Valid: r.Valid, Entries: r.Entries, BrokenAt: r.BrokenAt, Reason: r.Reason}
}
