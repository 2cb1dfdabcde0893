// Package cmd contains the CLI commands for rwctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

const defaultDBPath = "./data/reportwatch.db"

var (
	verbose bool
	output  string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "rwctl",
	Short: "rwctl - ReportWatch administration",
	Long: `rwctl manages a ReportWatch installation directly through its
database file. Use it to bootstrap users or inspect alerts when the
web dashboard is unavailable.

Examples:
  # List users
  rwctl user list

  # Reset a forgotten password
  rwctl user passwd --username admin

  # Failed alerts, most expensive first
  rwctl alert list --status failed --sort cost --dir desc`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// openDatabase opens an existing database and applies pending migrations.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	PrintVerbose("opened %s", path)
	return store, nil
}
