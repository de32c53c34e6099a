package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

// SessionManager is the decision layer: given foreground-app transitions it
// decides whether to block and keeps the ephemeral per-package session map.
//
// The map is mutated by the coordinator's polling goroutine and read by the
// host's handler entry points (snooze selected, alarm fired), so access is
// serialized with a mutex.
type SessionManager struct {
	repo    Repository
	snoozes *SnoozeService
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager over the given repository and
// snooze service.
func NewSessionManager(repo Repository, snoozes *SnoozeService) *SessionManager {
	return &SessionManager{
		repo:     repo,
		snoozes:  snoozes,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// restrictedApp returns the app record iff the package is restricted and
// enabled, nil otherwise. Lookup errors other than not-found are returned.
func (m *SessionManager) restrictedApp(packageName string) (*store.RestrictedApp, error) {
	app, err := m.repo.GetAppByPackage(packageName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !app.IsEnabled {
		return nil, nil
	}
	return app, nil
}

// ShouldShowBlocker is the single source of truth for "should the user see
// a blocking overlay right now": true iff the package is restricted and
// enabled and has no active, non-expired snooze.
func (m *SessionManager) ShouldShowBlocker(packageName string) bool {
	app, err := m.restrictedApp(packageName)
	if err != nil || app == nil {
		return false
	}
	return !m.snoozes.HasActive(packageName)
}

// OnAppOpened handles a restricted app entering the foreground. It returns
// whether the blocker should be shown now. Non-restricted packages get no
// session and return false. The call is idempotent: an existing session for
// the package is reused and its StartTime is never reset.
func (m *SessionManager) OnAppOpened(packageName string) (bool, error) {
	app, err := m.restrictedApp(packageName)
	if err != nil {
		return false, err
	}
	if app == nil {
		return false, nil
	}

	snooze, err := m.snoozes.Active(packageName)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[packageName]
	if !ok {
		sess = &Session{
			RestrictedAppID: app.ID,
			PackageName:     packageName,
			StartTime:       m.now(),
			Active:          true,
		}
		m.sessions[packageName] = sess
	}

	if snooze != nil {
		sess.Snooze = snooze
		return false, nil
	}
	return true, nil
}

// OnAppClosed handles the package leaving the foreground. It stamps the end
// time, removes the session from the live map, and hands the detached
// session to the caller as a one-shot hand-off; a second call returns nil.
func (m *SessionManager) OnAppClosed(packageName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[packageName]
	if !ok {
		return nil
	}
	delete(m.sessions, packageName)

	end := m.now()
	sess.EndTime = &end
	sess.Active = false
	return sess
}

// OnSnoozeSelected starts a snooze for the package and attaches it to the
// live session if one exists.
func (m *SessionManager) OnSnoozeSelected(packageName string, durationMinutes int) (*store.Snooze, error) {
	sn, err := m.snoozes.Create(packageName, durationMinutes)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if sess, ok := m.sessions[packageName]; ok {
		sess.Snooze = sn
	}
	m.mu.Unlock()

	return sn, nil
}

// OnSnoozeExpired deactivates the package's snooze and clears it from the
// live session. It returns whether the blocker should be re-shown: only if
// the app is still in the foreground and still restricted and enabled.
func (m *SessionManager) OnSnoozeExpired(packageName string, isAppInForeground bool) (bool, error) {
	if err := m.snoozes.DeactivateForPackage(packageName); err != nil {
		return false, err
	}

	m.mu.Lock()
	if sess, ok := m.sessions[packageName]; ok {
		sess.Snooze = nil
	}
	m.mu.Unlock()

	if !isAppInForeground {
		return false, nil
	}
	app, err := m.restrictedApp(packageName)
	if err != nil {
		return false, err
	}
	return app != nil, nil
}

// OnFollowupResponse persists a follow-up response derived from a handed-off
// session. Fails if the session's package no longer maps to a known
// restricted app.
func (m *SessionManager) OnFollowupResponse(sess *Session, response string) error {
	if sess == nil {
		return fmt.Errorf("nil session")
	}
	if sess.EndTime == nil {
		return fmt.Errorf("session for %s has no end time", sess.PackageName)
	}

	app, err := m.repo.GetAppByPackage(sess.PackageName)
	if err != nil {
		return fmt.Errorf("cannot record follow-up for %s: %w", sess.PackageName, err)
	}

	r := &store.FollowupResponse{
		RestrictedAppID: app.ID,
		SessionStart:    sess.StartTime,
		SessionEnd:      *sess.EndTime,
		DurationSeconds: int64(sess.EndTime.Sub(sess.StartTime) / time.Second),
		Response:        response,
	}
	if err := m.repo.AddFollowupResponse(r); err != nil {
		return fmt.Errorf("failed to record follow-up for %s: %w", sess.PackageName, err)
	}
	return nil
}

// CheckExpiredSnoozes sweeps expired snoozes and returns the packages whose
// app still has a live session, i.e. apps the user is plausibly still using and
// that should get the blocker re-shown. Expired snooze references are
// cleared from live sessions as a side effect.
func (m *SessionManager) CheckExpiredSnoozes() ([]string, error) {
	expired, err := m.snoozes.ProcessExpired()
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var live []string
	for _, pkg := range expired {
		sess, ok := m.sessions[pkg]
		if !ok {
			continue
		}
		sess.Snooze = nil
		if sess.Active {
			live = append(live, pkg)
		}
	}
	return live, nil
}

// PerformCleanup triggers the repository's retention sweep for snoozes and
// follow-up responses older than the retention window.
func (m *SessionManager) PerformCleanup(retention time.Duration) error {
	_, err := m.repo.Cleanup(m.now().Add(-retention))
	return err
}

// GetSession returns the live session for the package, or nil.
func (m *SessionManager) GetSession(packageName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[packageName]
}

// SessionCount returns the number of live sessions.
func (m *SessionManager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Clear drops every live session. Used when monitoring stops.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}
