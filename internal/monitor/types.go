// Package monitor implements the app-usage monitoring and restriction core:
// snooze lifecycle rules, in-memory session bookkeeping, and the polling
// coordinator that drives blocking decisions.
//
// The core owns no I/O of its own. It consumes a Repository capability for
// persistence and a Platform capability for foreground-app detection and UI
// side effects; both are injected.
package monitor

import (
	"errors"
	"time"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

// ErrPermissionDenied is returned by Coordinator.Start when the platform
// reports that required OS permissions are missing. The start attempt is
// abandoned and the coordinator remains stopped.
var ErrPermissionDenied = errors.New("required permissions not granted")

// Repository is the persistence capability the monitoring core consumes.
// *store.Store satisfies it. Every method is atomic per call, so the polling
// loop and UI-triggered actions can interleave without corrupting the
// at-most-one-active-snooze invariant.
type Repository interface {
	GetAppByPackage(packageName string) (*store.RestrictedApp, error)
	GetAppByID(id int64) (*store.RestrictedApp, error)
	CountEnabledApps() (int, error)

	CreateSnooze(appID int64, durationMinutes int, expiresAt time.Time) (*store.Snooze, error)
	GetActiveSnooze(appID int64) (*store.Snooze, error)
	DeactivateSnooze(id int64) error
	DeactivateSnoozesForApp(appID int64) error
	ExpireActiveSnoozes(now time.Time) ([]*store.Snooze, error)

	AddFollowupResponse(r *store.FollowupResponse) error
	Cleanup(olderThan time.Time) (int64, error)
}

// InstalledApp describes an application known to the platform, used to
// resolve display names and icons when the user adds a restriction.
type InstalledApp struct {
	Name        string
	PackageName string
	IconPath    string
}

// Platform is the OS capability the monitoring core consumes: foreground-app
// detection, permission queries, UI launches, and snooze alarm scheduling.
// One implementation exists per target OS.
type Platform interface {
	HasRequiredPermissions() bool
	RequestPermissions() error

	// CurrentForegroundApp returns the package name of the foreground app,
	// or "" if none is detectable. "" is a valid result, not an error.
	CurrentForegroundApp() (string, error)

	// StartMonitoring and StopMonitoring begin and end OS-level
	// foreground tracking (e.g. the focus watcher).
	StartMonitoring() error
	StopMonitoring() error

	LaunchBlockerUI(packageName string) error
	LaunchFollowupUI(session *Session) error

	ScheduleSnoozeAlarm(packageName string, expiresAt time.Time) error
	CancelSnoozeAlarm(packageName string)

	InstalledApps() ([]InstalledApp, error)
}

// Session is the in-memory record of one continuous foreground visit to a
// restricted app. Sessions are never persisted and do not survive a process
// restart. The SessionManager owns the live session map; once OnAppClosed
// hands a session off, the manager no longer tracks it.
type Session struct {
	RestrictedAppID int64
	PackageName     string
	StartTime       time.Time
	EndTime         *time.Time
	Active          bool

	// Snooze is the active snooze attached to this session, if any.
	Snooze *store.Snooze
}

// Duration returns the session length. For a still-active session it is the
// time elapsed since StartTime.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// Status is a computed snapshot of the coordinator's state, never itself
// persisted.
type Status struct {
	Running        bool
	CurrentPackage string
	LiveSessions   int
	LastChecked    time.Time
}
