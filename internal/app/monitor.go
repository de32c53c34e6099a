package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thinktwice-app/thinktwice/internal/config"
	"github.com/thinktwice-app/thinktwice/internal/monitor"
	"github.com/thinktwice-app/thinktwice/internal/output"
	"github.com/thinktwice-app/thinktwice/internal/platform"
	"github.com/thinktwice-app/thinktwice/internal/service"
	"github.com/thinktwice-app/thinktwice/internal/store"
)

var (
	monitorDaemon      bool
	monitorDaemonChild bool
	monitorPIDFile     string
	monitorLogFile     string
	monitorStop        bool
	monitorBlockerCmd  string
	monitorFollowupCmd string

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Run the foreground-app monitor",
		Long: `Run the monitoring loop that watches the foreground app and blocks
restricted ones.

Monitor modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as a background process
  • Stop: Stop a running daemon

The monitor polls the current foreground app, shows the blocker when a
restricted app comes to front, honors active snoozes, re-blocks when a
snooze expires, and launches the follow-up prompt after a restricted
session ends. Polling slows down while no restricted app is in front and
speeds up while one is being blocked.

Normally you never run this by hand: 'thinktwice apps add' starts the
daemon automatically when the first app is restricted.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  thinktwice monitor

  # Run as background daemon
  thinktwice monitor --daemon

  # Stop running daemon
  thinktwice monitor --stop

  # Use a custom blocker UI
  thinktwice monitor --blocker-cmd "thinktwice-blocker --fullscreen"`,
		RunE: runMonitor,
	}
)

func init() {
	monitorCmd.Flags().BoolVar(&monitorDaemon, "daemon", false, "run as background daemon")
	monitorCmd.Flags().BoolVar(&monitorDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	monitorCmd.Flags().StringVar(&monitorPIDFile, "pid-file", "", "PID file path (default: ~/.thinktwice/monitor.pid)")
	monitorCmd.Flags().StringVar(&monitorLogFile, "log-file", "", "log file path (default: ~/.thinktwice/monitor.log)")
	monitorCmd.Flags().BoolVar(&monitorStop, "stop", false, "stop running daemon")
	monitorCmd.Flags().StringVar(&monitorBlockerCmd, "blocker-cmd", "", "command launched to show the blocker screen")
	monitorCmd.Flags().StringVar(&monitorFollowupCmd, "followup-cmd", "", "command launched to show the follow-up prompt")

	// Hide the internal daemon-child flag from help
	monitorCmd.Flags().MarkHidden("daemon-child")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if monitorPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		monitorPIDFile = defaultPID
	}

	if monitorLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		monitorLogFile = defaultLog
	}

	// Handle stop command
	if monitorStop {
		return stopMonitorDaemon()
	}

	// Handle daemon mode: fork and exit, the child does the real work
	if monitorDaemon {
		return startMonitorDaemon()
	}

	db, svc, err := buildService()
	if err != nil {
		return err
	}
	defer db.Close()

	if monitorDaemonChild {
		// Runs as the daemon child process. Output goes to the log file.
		return svc.RunDaemon(context.Background(), monitorPIDFile)
	}

	return runMonitorForeground(db, svc)
}

// buildService wires store, config, platform, and coordinator into a
// runnable service.
func buildService() (*store.Store, *service.Service, error) {
	db, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	cfgDir, err := config.Dir()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to locate config directory: %w", err)
	}
	settings, err := config.Load(cfgDir)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	plat, err := platform.New(platform.Options{
		BlockerCommand:  splitCommand(monitorBlockerCmd),
		FollowupCommand: splitCommand(monitorFollowupCmd),
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize platform: %w", err)
	}

	// Try to acquire permissions up front so a fixable state-dir problem
	// does not surface as a start failure later.
	if !plat.HasRequiredPermissions() {
		if err := plat.RequestPermissions(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("missing platform permissions: %w", err)
		}
	}

	coord := monitor.NewCoordinator(db, plat, monitor.Config{
		IdleInterval:   settings.IdleInterval(),
		ActiveInterval: settings.ActiveInterval(),
		RetryInterval:  settings.RetryInterval(),
		ShowFollowup:   settings.ShowFollowupScreen,
	})

	// Expired-snooze alarms route back into the coordinator so the blocker
	// reappears the moment a snooze runs out.
	plat.SetAlarmHandler(func(packageName string) {
		if err := coord.HandleSnoozeExpired(packageName); err != nil {
			fmt.Fprintf(os.Stderr, "monitor: snooze expiry for %s: %v\n", packageName, err)
		}
	})

	return db, service.New(coord), nil
}

// splitCommand splits a shell-style command string on whitespace.
// Arguments with embedded spaces are not supported.
func splitCommand(s string) []string {
	return strings.Fields(s)
}

func stopMonitorDaemon() error {
	running, err := service.IsDaemonRunning(monitorPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Monitor is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping monitor...")
	if err := service.StopDaemon(monitorPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop monitor: %w", err)
	}
	spinner.StopWithMessage("✓ Monitor stopped")

	return nil
}

func startMonitorDaemon() error {
	running, err := service.IsDaemonRunning(monitorPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		return fmt.Errorf("monitor already running (PID file: %s)", monitorPIDFile)
	}

	spinner := output.NewSpinner("Starting monitor...")
	if err := service.StartDaemon(monitorPIDFile, monitorLogFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	spinner.StopWithMessage("✓ Monitor started")

	fmt.Printf("\nBackground monitor started\n")
	fmt.Printf("  PID file: %s\n", monitorPIDFile)
	fmt.Printf("  Log file: %s\n", monitorLogFile)
	fmt.Printf("\nTo stop: thinktwice monitor --stop\n")

	return nil
}

func runMonitorForeground(db *store.Store, svc *service.Service) error {
	fmt.Println("Starting monitor (press Ctrl+C to stop)...")
	fmt.Println()

	count, err := db.CountEnabledApps()
	if err == nil && count == 0 {
		fmt.Println("Note: no enabled restricted apps. The monitor will run but")
		fmt.Println("nothing will be blocked until you run 'thinktwice apps add'.")
		fmt.Println()
	}

	return svc.Run(context.Background())
}
