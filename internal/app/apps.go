package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thinktwice-app/thinktwice/internal/monitor"
	"github.com/thinktwice-app/thinktwice/internal/output"
	"github.com/thinktwice-app/thinktwice/internal/platform"
	"github.com/thinktwice-app/thinktwice/internal/service"
	"github.com/thinktwice-app/thinktwice/internal/store"
)

var (
	appsAddName string

	appsCmd = &cobra.Command{
		Use:   "apps",
		Short: "Manage the list of restricted apps",
		Long: `Manage which apps thinktwice blocks.

Adding the first enabled app starts the background monitor automatically;
removing or disabling the last one stops it. Disabling an app keeps its
usage history but suspends blocking until it is enabled again.`,
	}

	appsAddCmd = &cobra.Command{
		Use:   "add <package>",
		Short: "Add an app to the restricted list",
		Example: `  # Add by package name (display name resolved from installed apps)
  thinktwice apps add com.instagram.android

  # Add with an explicit display name
  thinktwice apps add com.example.game --name "That Game"`,
		Args: cobra.ExactArgs(1),
		RunE: runAppsAdd,
	}

	appsRemoveCmd = &cobra.Command{
		Use:   "remove <package>",
		Short: "Remove an app from the restricted list",
		Long: `Remove an app from the restricted list.

This deletes the app's snooze and follow-up history as well. To pause
blocking without losing history, use 'thinktwice apps disable' instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runAppsRemove,
	}

	appsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List restricted apps",
		RunE:  runAppsList,
	}

	appsEnableCmd = &cobra.Command{
		Use:   "enable <package>",
		Short: "Resume blocking for a disabled app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppsSetEnabled(args[0], true)
		},
	}

	appsDisableCmd = &cobra.Command{
		Use:   "disable <package>",
		Short: "Suspend blocking for an app without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppsSetEnabled(args[0], false)
		},
	}
)

func init() {
	appsAddCmd.Flags().StringVar(&appsAddName, "name", "", "display name (default: resolved from installed apps)")

	appsCmd.AddCommand(appsAddCmd)
	appsCmd.AddCommand(appsRemoveCmd)
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsEnableCmd)
	appsCmd.AddCommand(appsDisableCmd)
}

func runAppsAdd(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.GetAppByPackage(packageName); err == nil {
		return fmt.Errorf("app %s is already restricted", packageName)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	app := &store.RestrictedApp{
		PackageName: packageName,
		AppName:     appsAddName,
		IsEnabled:   true,
	}

	// Resolve the display name and icon from installed apps when possible.
	if app.AppName == "" || app.IconPath == "" {
		if installed, err := installedApps(); err == nil {
			for _, ia := range installed {
				if ia.PackageName == packageName {
					if app.AppName == "" {
						app.AppName = ia.Name
					}
					app.IconPath = ia.IconPath
					break
				}
			}
		}
	}
	if app.AppName == "" {
		app.AppName = packageName
	}

	if err := db.AddApp(app); err != nil {
		return fmt.Errorf("failed to add app: %w", err)
	}

	fmt.Printf("✓ Added %s (%s) to the restricted list\n", app.AppName, app.PackageName)

	return syncDaemon(db)
}

func runAppsRemove(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteApp(packageName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("app %s is not restricted", packageName)
		}
		return fmt.Errorf("failed to remove app: %w", err)
	}

	fmt.Printf("✓ Removed %s from the restricted list\n", packageName)

	return syncDaemon(db)
}

func runAppsList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	apps, err := db.ListApps()
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}

	fmt.Print(output.RenderAppTable(apps))
	return nil
}

func runAppsSetEnabled(packageName string, enabled bool) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetAppEnabled(packageName, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("app %s is not restricted", packageName)
		}
		return fmt.Errorf("failed to update app: %w", err)
	}

	if enabled {
		fmt.Printf("✓ Blocking enabled for %s\n", packageName)
	} else {
		fmt.Printf("✓ Blocking disabled for %s\n", packageName)
	}

	return syncDaemon(db)
}

// installedApps lists apps installed on this machine via the platform layer.
func installedApps() ([]monitor.InstalledApp, error) {
	plat, err := platform.New(platform.Options{})
	if err != nil {
		return nil, err
	}
	return plat.InstalledApps()
}

// syncDaemon starts or stops the background monitor to match the number of
// enabled restricted apps: running while there is at least one, stopped when
// there are none. Changes made while the monitor runs in the foreground are
// picked up by its own polling, so this only manages the daemon.
func syncDaemon(db *store.Store) error {
	count, err := db.CountEnabledApps()
	if err != nil {
		return fmt.Errorf("failed to count enabled apps: %w", err)
	}

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return err
	}

	running, err := service.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check monitor status: %w", err)
	}

	switch {
	case count > 0 && !running:
		logFile, err := getDefaultLogFile()
		if err != nil {
			return err
		}
		if err := service.StartDaemon(pidFile, logFile); err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}
		fmt.Println("✓ Background monitor started")

	case count == 0 && running:
		if err := service.StopDaemon(pidFile); err != nil {
			return fmt.Errorf("failed to stop monitor: %w", err)
		}
		fmt.Println("✓ Background monitor stopped (no enabled apps)")
	}

	return nil
}
