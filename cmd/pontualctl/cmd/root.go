// Package cmd contains the CLI commands for pontualctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ponto-labs/pontual/internal/storage"
)

var (
	// Used for flags
	verbose bool
	output  string
	dbPath  string
)

// defaultDBPath is the default database path, can be overridden via
// PONTUAL_DB_PATH env var.
var defaultDBPath = "data/pontual.db"

func init() {
	if envPath := os.Getenv("PONTUAL_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pontualctl",
	Short: "Pontual - Time tracking administration",
	Long: `pontualctl manages a Pontual server installation.

The commands operate directly on the SQLite database file and are
intended for system administrators working outside the HTTP API.

Examples:
  # List all accounts
  pontualctl user list

  # Create an account
  pontualctl user create --email ana@example.com --name "Ana Souza"

  # Reset an account password
  pontualctl user passwd --email ana@example.com

  # List organizations
  pontualctl org list

  # Purge expired refresh tokens
  pontualctl token cleanup`,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// openDatabase opens the SQLite database.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return store, nil
}
