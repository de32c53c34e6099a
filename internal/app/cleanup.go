package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	cleanupDays int

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old usage records",
		Long: `Delete follow-up responses and expired snoozes older than the retention
window. Active snoozes and the restricted-app list itself are never
touched. The background monitor also runs this sweep periodically, so
manual cleanup is rarely needed.`,
		RunE: runCleanup,
	}
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 90, "delete records older than this many days")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupDays <= 0 {
		return fmt.Errorf("--days must be positive, got %d", cleanupDays)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().Add(-time.Duration(cleanupDays) * 24 * time.Hour)
	removed, err := db.Cleanup(cutoff)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if removed == 0 {
		fmt.Printf("Nothing to clean up (nothing older than %d days)\n", cleanupDays)
	} else {
		fmt.Printf("✓ Removed %d records older than %d days\n", removed, cleanupDays)
	}
	return nil
}
