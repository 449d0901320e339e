// Command walletd runs the identity wallet core: an operations endpoint with
// ledger integrity monitoring, plus tooling to exercise the wallet locally.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "walletd",
		Short:         "Identity wallet credential lifecycle core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Optional .env file loaded before WALLET_* variables are read")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override: debug|info|warn|error")

	root.AddCommand(
		newServeCmd(flags),
		newDemoCmd(flags),
		newVerifyDemoCmd(flags),
		newHashPINCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "walletd:", err)
		os.Exit(1)
	}
}
