package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// tokenCmd represents the token command group
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Refresh token maintenance commands",
}

// tokenCleanupCmd deletes expired refresh tokens
var tokenCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired refresh tokens",
	Long: `Delete all expired refresh tokens from the database.

The server never hands out expired tokens, so this is purely a disk
space and hygiene operation. Safe to run at any time, e.g. from cron.

Example:
  pontualctl token cleanup`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.Tokens().DeleteExpired(context.Background())
		if err != nil {
			return fmt.Errorf("delete expired tokens: %w", err)
		}

		fmt.Printf("Deleted %d expired token(s).\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenCleanupCmd)
}
