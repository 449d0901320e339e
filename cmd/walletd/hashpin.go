package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"idwallet/internal/auth"
)

func newHashPINCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin",
		Short: "Read a PIN from stdin and print the bcrypt hash for WALLET_PIN_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			pin := strings.TrimSpace(line)
			if pin == "" {
				if err != nil {
					return fmt.Errorf("read pin: %w", err)
				}
				return errors.New("empty pin")
			}
			hash, err := auth.HashPIN(pin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
