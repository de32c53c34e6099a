// Package output provides terminal output utilities for thinktwice.
//
// This package includes:
//   - Table rendering functions for restricted apps, snoozes, and usage stats
//   - Spinners for indeterminate operations
//   - Human-readable formatting for durations and dates
//
// All table rendering functions use ASCII characters and ANSI color codes for
// terminal output. Progress indicators are thread-safe.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderAppTable renders a table of restricted apps.
func RenderAppTable(apps []*store.RestrictedApp) string {
	if len(apps) == 0 {
		return "No restricted apps. Add one with 'thinktwice apps add <package>'.\n"
	}

	// Sort by package name for consistent output
	sorted := make([]*store.RestrictedApp, len(apps))
	copy(sorted, apps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PackageName < sorted[j].PackageName
	})

	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("%-28s %-20s %-10s %s\n",
		"Package", "Name", "Status", "Added"))
	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")

	// Rows
	for _, app := range sorted {
		status := colorize(colorGreen, "enabled")
		if !app.IsEnabled {
			status = colorize(colorGray, "disabled")
		}

		sb.WriteString(fmt.Sprintf("%-28s %-20s %-10s %s\n",
			truncate(app.PackageName, 28),
			truncate(app.AppName, 20),
			status,
			formatRelativeTime(app.CreatedAt)))
	}

	return sb.String()
}

// RenderSnoozeTable renders a table of active snoozes.
// Expects package names resolved by the caller, keyed by restricted app ID.
func RenderSnoozeTable(snoozes []*store.Snooze, packages map[int64]string, now time.Time) string {
	if len(snoozes) == 0 {
		return "No active snoozes.\n"
	}

	// Soonest expiry first
	sorted := make([]*store.Snooze, len(snoozes))
	copy(sorted, snoozes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExpiresAt.Before(sorted[j].ExpiresAt)
	})

	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("%-28s %-12s %-12s %s\n",
		"Package", "Duration", "Remaining", "Started"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	// Rows
	for _, sn := range sorted {
		pkg := packages[sn.RestrictedAppID]
		if pkg == "" {
			pkg = fmt.Sprintf("app #%d", sn.RestrictedAppID)
		}

		remaining := formatDuration(sn.Remaining(now))
		if sn.Expired(now) {
			remaining = colorize(colorRed, "expired")
		}

		sb.WriteString(fmt.Sprintf("%-28s %-12s %-12s %s\n",
			truncate(pkg, 28),
			fmt.Sprintf("%d min", sn.DurationMinutes),
			remaining,
			formatRelativeTime(sn.CreatedAt)))
	}

	return sb.String()
}

// AppStats holds aggregated follow-up statistics for a single restricted app.
type AppStats struct {
	PackageName  string
	Sessions     int
	TotalSeconds int64
	ClosedCount  int // sessions where the user closed the app
	KeptCount    int // sessions where the user kept using it
}

// RenderStatsTable renders per-app usage statistics from follow-up responses.
func RenderStatsTable(stats []AppStats) string {
	if len(stats) == 0 {
		return "No usage data recorded yet.\n"
	}

	// Most sessions first
	sorted := make([]AppStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Sessions != sorted[j].Sessions {
			return sorted[i].Sessions > sorted[j].Sessions
		}
		return sorted[i].PackageName < sorted[j].PackageName
	})

	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("%-28s %-10s %-12s %-8s %s\n",
		"Package", "Sessions", "Total Time", "Closed", "Kept Using"))
	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")

	// Rows
	for _, s := range sorted {
		closed := fmt.Sprintf("%d", s.ClosedCount)
		kept := fmt.Sprintf("%d", s.KeptCount)
		if s.Sessions > 0 && IsColorEnabled() {
			if s.ClosedCount > s.KeptCount {
				closed = colorize(colorGreen, closed)
			} else if s.KeptCount > s.ClosedCount {
				kept = colorize(colorYellow, kept)
			}
		}

		sb.WriteString(fmt.Sprintf("%-28s %-10d %-12s %-8s %s\n",
			truncate(s.PackageName, 28),
			s.Sessions,
			formatDuration(time.Duration(s.TotalSeconds)*time.Second),
			closed,
			kept))
	}

	return sb.String()
}

// formatDuration converts a duration to a compact human-readable string
// (e.g. "45s", "12m", "2h 5m").
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		hours := int(d.Hours())
		mins := int(d.Minutes()) - hours*60
		if mins == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
