package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrybot/ferry/internal/keychain"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the bot token in the system keychain",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the bot token (read from stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Token: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read token: %w", err)
			}
			token := strings.TrimSpace(line)
			if token == "" {
				return fmt.Errorf("empty token")
			}
			if err := keychain.Set(keychain.TokenAccount, token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Println("Token stored.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the bot token from the keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keychain.Delete(keychain.TokenAccount); err != nil {
				return fmt.Errorf("remove token: %w", err)
			}
			fmt.Println("Token removed.")
			return nil
		},
	})

	return cmd
}
