package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinktwice-app/thinktwice/internal/output"
	"github.com/thinktwice-app/thinktwice/internal/service"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitoring status",
	Long: `Show whether the background monitor is running, which apps are
restricted, and any active snoozes.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return err
	}

	running, err := service.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check monitor status: %w", err)
	}

	if running {
		fmt.Printf("Monitor:    running (PID %d)\n", service.DaemonPID(pidFile))
	} else {
		fmt.Println("Monitor:    stopped")
	}

	if path, err := getDBPath(); err == nil {
		fmt.Printf("Database:   %s\n", path)
	}

	apps, err := db.ListApps()
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}

	enabled := 0
	for _, a := range apps {
		if a.IsEnabled {
			enabled++
		}
	}
	fmt.Printf("Apps:       %d restricted, %d enabled\n", len(apps), enabled)

	if count, err := db.CountFollowups(); err == nil {
		fmt.Printf("Follow-ups: %d recorded\n", count)
	}

	if !running && enabled > 0 {
		fmt.Println()
		fmt.Println("Warning: apps are restricted but the monitor is not running.")
		fmt.Println("Start it with 'thinktwice monitor --daemon'.")
	}

	snoozes, err := db.ListActiveSnoozes()
	if err != nil {
		return fmt.Errorf("failed to list snoozes: %w", err)
	}

	if len(snoozes) > 0 {
		packages := make(map[int64]string, len(snoozes))
		for _, sn := range snoozes {
			if app, err := db.GetAppByID(sn.RestrictedAppID); err == nil {
				packages[sn.RestrictedAppID] = app.PackageName
			}
		}

		fmt.Println()
		fmt.Print(output.RenderSnoozeTable(snoozes, packages, time.Now()))
	}

	return nil
}
