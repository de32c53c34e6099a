package app

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinktwice-app/thinktwice/internal/monitor"
	"github.com/thinktwice-app/thinktwice/internal/output"
	"github.com/thinktwice-app/thinktwice/internal/store"
)

var (
	snoozeList   bool
	snoozeCancel bool

	snoozeCmd = &cobra.Command{
		Use:   "snooze [<package> <minutes>]",
		Short: "Suspend blocking for an app temporarily",
		Long: `Suspend blocking for a restricted app for a number of minutes.

Starting a new snooze replaces any earlier one for the same app: at most
one snooze per app is active at a time. When the snooze expires while the
app is in the foreground, the blocker reappears.`,
		Example: `  # Snooze Instagram for 15 minutes
  thinktwice snooze com.instagram.android 15

  # Show active snoozes
  thinktwice snooze --list

  # End a snooze early
  thinktwice snooze com.instagram.android --cancel`,
		RunE: runSnooze,
	}
)

func init() {
	snoozeCmd.Flags().BoolVar(&snoozeList, "list", false, "list active snoozes")
	snoozeCmd.Flags().BoolVar(&snoozeCancel, "cancel", false, "cancel the active snooze for the given package")
}

func runSnooze(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if snoozeList {
		return listSnoozes(db)
	}

	if snoozeCancel {
		if len(args) != 1 {
			return fmt.Errorf("usage: thinktwice snooze <package> --cancel")
		}
		return cancelSnooze(db, args[0])
	}

	if len(args) != 2 {
		return fmt.Errorf("usage: thinktwice snooze <package> <minutes>")
	}

	packageName := args[0]
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be a whole number of minutes", args[1])
	}

	snoozes := monitor.NewSnoozeService(db)
	sn, err := snoozes.Create(packageName, minutes)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("app %s is not restricted", packageName)
		}
		return err
	}

	fmt.Printf("✓ Blocking snoozed for %s until %s (%d min)\n",
		packageName, sn.ExpiresAt.Local().Format("15:04"), sn.DurationMinutes)
	return nil
}

func listSnoozes(db *store.Store) error {
	snoozes, err := db.ListActiveSnoozes()
	if err != nil {
		return fmt.Errorf("failed to list snoozes: %w", err)
	}

	// Resolve package names for display
	packages := make(map[int64]string, len(snoozes))
	for _, sn := range snoozes {
		if _, ok := packages[sn.RestrictedAppID]; ok {
			continue
		}
		app, err := db.GetAppByID(sn.RestrictedAppID)
		if err == nil {
			packages[sn.RestrictedAppID] = app.PackageName
		}
	}

	fmt.Print(output.RenderSnoozeTable(snoozes, packages, time.Now()))
	return nil
}

func cancelSnooze(db *store.Store, packageName string) error {
	snoozes := monitor.NewSnoozeService(db)

	active, err := snoozes.Active(packageName)
	if err != nil {
		return err
	}
	if active == nil {
		fmt.Printf("No active snooze for %s\n", packageName)
		return nil
	}

	if err := snoozes.DeactivateForPackage(packageName); err != nil {
		return fmt.Errorf("failed to cancel snooze: %w", err)
	}

	fmt.Printf("✓ Snooze cancelled for %s, blocking resumes immediately\n", packageName)
	return nil
}
