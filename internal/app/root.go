package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

var (
	dbPath string

	// RootCmd is the root command for thinktwice
	RootCmd = &cobra.Command{
		Use:   "thinktwice",
		Short: "App-usage monitoring with intentional friction",
		Long: `thinktwice watches which app holds the foreground and interrupts the
ones you have marked as restricted, giving you a moment to reconsider
before you keep scrolling.

When a restricted app comes to the foreground, a blocker screen appears.
You can close the app, or snooze blocking for a chosen number of minutes.
When the snooze runs out while the app is still in front of you, blocking
resumes. After a restricted-app session ends, an optional follow-up prompt
asks what you actually did, building an honest usage record over time.

Quick Start:
  1. thinktwice apps add com.instagram.android  # monitoring starts automatically
  2. thinktwice status
  3. thinktwice stats --days 7

Examples:
  # List restricted apps
  thinktwice apps list

  # Snooze blocking for Instagram for 15 minutes
  thinktwice snooze com.instagram.android 15

  # Run the monitor in the foreground (Ctrl+C to stop)
  thinktwice monitor

  # Stop the background monitor
  thinktwice monitor --stop`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := getDBPath()
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				fmt.Println("thinktwice: app-usage monitoring with intentional friction")
				fmt.Println()
				fmt.Println("Run 'thinktwice apps add <package>' to get started.")
				fmt.Println("Run 'thinktwice --help' for the full reference.")
			} else {
				fmt.Println("thinktwice: app-usage monitoring with intentional friction")
				fmt.Println()
				fmt.Println("Tip: Run 'thinktwice status' to check monitoring status.")
				fmt.Println("     Run 'thinktwice stats' to review your usage.")
				fmt.Println("     Run 'thinktwice --help' for all commands.")
			}
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.thinktwice/thinktwice.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(appsCmd)
	RootCmd.AddCommand(snoozeCmd)
	RootCmd.AddCommand(monitorCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(cleanupCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// stateDir returns ~/.thinktwice, creating it if needed.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".thinktwice")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thinktwice directory: %w", err)
	}

	return dir, nil
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "thinktwice.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "monitor.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "monitor.log"), nil
}

// openStore opens the database and ensures the schema exists.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	return db, nil
}
