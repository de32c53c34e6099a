package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

// fakePlatform is a thread-safe in-memory Platform for coordinator tests.
// The foreground app is settable and every side effect is recorded.
type fakePlatform struct {
	mu sync.Mutex

	permissions bool
	foreground  string

	monitoringStarts int
	monitoringStops  int
	blockerLaunches  []string
	followupLaunches []string
	alarms           map[string]time.Time
	canceledAlarms   []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		permissions: true,
		alarms:      make(map[string]time.Time),
	}
}

func (p *fakePlatform) HasRequiredPermissions() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permissions
}

func (p *fakePlatform) RequestPermissions() error { return nil }

func (p *fakePlatform) CurrentForegroundApp() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.foreground, nil
}

func (p *fakePlatform) setForeground(pkg string) {
	p.mu.Lock()
	p.foreground = pkg
	p.mu.Unlock()
}

func (p *fakePlatform) StartMonitoring() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitoringStarts++
	return nil
}

func (p *fakePlatform) StopMonitoring() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitoringStops++
	return nil
}

func (p *fakePlatform) LaunchBlockerUI(pkg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockerLaunches = append(p.blockerLaunches, pkg)
	return nil
}

func (p *fakePlatform) LaunchFollowupUI(sess *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.followupLaunches = append(p.followupLaunches, sess.PackageName)
	return nil
}

func (p *fakePlatform) ScheduleSnoozeAlarm(pkg string, expiresAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alarms[pkg] = expiresAt
	return nil
}

func (p *fakePlatform) CancelSnoozeAlarm(pkg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceledAlarms = append(p.canceledAlarms, pkg)
}

func (p *fakePlatform) InstalledApps() ([]InstalledApp, error) { return nil, nil }

func (p *fakePlatform) blockerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blockerLaunches)
}

func (p *fakePlatform) followupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.followupLaunches)
}

func testConfig() Config {
	return Config{
		IdleInterval:   5 * time.Millisecond,
		ActiveInterval: 2 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
		ShowFollowup:   true,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store, *fakePlatform) {
	t.Helper()
	repo := newTestRepo(t)
	platform := newFakePlatform()
	c := NewCoordinator(repo, platform, testConfig())
	t.Cleanup(func() { c.Stop() })
	return c, repo, platform
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStart_PermissionDenied(t *testing.T) {
	c, _, platform := newTestCoordinator(t)
	platform.permissions = false

	err := c.Start(context.Background())
	if err != ErrPermissionDenied {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	if c.Running() {
		t.Error("coordinator should remain stopped after permission failure")
	}
	if platform.monitoringStarts != 0 {
		t.Error("platform monitoring must not start when permissions are missing")
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	c, _, platform := newTestCoordinator(t)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	if !c.Running() {
		t.Error("coordinator should be running")
	}
	if platform.monitoringStarts != 1 {
		t.Errorf("platform monitoring started %d times, want 1", platform.monitoringStarts)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if c.Running() {
		t.Error("coordinator should be stopped")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() when stopped failed: %v", err)
	}
	if platform.monitoringStops != 1 {
		t.Errorf("platform monitoring stopped %d times, want 1", platform.monitoringStops)
	}
}

func TestStop_ClearsSessions(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	platform.setForeground("com.shop.app")
	waitFor(t, "session creation", func() bool { return c.Sessions().SessionCount() == 1 })

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if c.Sessions().SessionCount() != 0 {
		t.Error("Stop() should clear in-memory sessions")
	}
}

// TestLoop_BlocksRestrictedApp verifies the loop detects a foreground
// transition to a restricted app and launches the blocker.
func TestLoop_BlocksRestrictedApp(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	platform.setForeground("com.shop.app")
	waitFor(t, "blocker launch", func() bool { return platform.blockerCount() >= 1 })

	platform.mu.Lock()
	first := platform.blockerLaunches[0]
	platform.mu.Unlock()
	if first != "com.shop.app" {
		t.Errorf("blocker launched for %q, want com.shop.app", first)
	}
}

func TestLoop_IgnoresUnrestrictedApp(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	platform.setForeground("com.browser")
	waitFor(t, "a completed poll", func() bool {
		return c.Status().CurrentPackage == "com.browser"
	})

	if platform.blockerCount() != 0 {
		t.Error("blocker should not launch for unrestricted app")
	}
	if c.Sessions().SessionCount() != 0 {
		t.Error("unrestricted app should not get a session")
	}
}

// TestLoop_FollowupOnClose verifies close-before-open handling: leaving a
// restricted app hands the session off to the follow-up UI.
func TestLoop_FollowupOnClose(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	platform.setForeground("com.shop.app")
	waitFor(t, "session creation", func() bool { return c.Sessions().SessionCount() == 1 })

	platform.setForeground("com.other")
	waitFor(t, "follow-up launch", func() bool { return platform.followupCount() >= 1 })

	if c.Sessions().SessionCount() != 0 {
		t.Error("session should be handed off on close")
	}
}

func TestLoop_NoFollowupWhenDisabled(t *testing.T) {
	repo := newTestRepo(t)
	platform := newFakePlatform()
	cfg := testConfig()
	cfg.ShowFollowup = false
	c := NewCoordinator(repo, platform, cfg)
	t.Cleanup(func() { c.Stop() })

	addRestricted(t, repo, "com.shop.app", true)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	platform.setForeground("com.shop.app")
	waitFor(t, "session creation", func() bool { return c.Sessions().SessionCount() == 1 })

	platform.setForeground("")
	waitFor(t, "session hand-off", func() bool { return c.Sessions().SessionCount() == 0 })

	if platform.followupCount() != 0 {
		t.Error("follow-up UI should not launch when disabled by config")
	}
}

// TestLoop_ReblocksOnExpiredSnooze verifies the in-loop expiry sweep: once
// the snooze runs out while the app is still foreground, the blocker is
// launched again.
func TestLoop_ReblocksOnExpiredSnooze(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	// Snooze that expires almost immediately.
	app, err := repo.GetAppByPackage("com.shop.app")
	if err != nil {
		t.Fatalf("GetAppByPackage() failed: %v", err)
	}
	if _, err := repo.CreateSnooze(app.ID, 1, time.Now().Add(250*time.Millisecond)); err != nil {
		t.Fatalf("CreateSnooze() failed: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	platform.setForeground("com.shop.app")
	waitFor(t, "session creation", func() bool { return c.Sessions().SessionCount() == 1 })

	// The open during the snooze must not block.
	if platform.blockerCount() != 0 {
		t.Fatal("blocker launched while snooze active")
	}

	waitFor(t, "re-block after expiry", func() bool { return platform.blockerCount() >= 1 })
}

func TestHandleSnoozeSelected_SchedulesAlarm(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	sn, err := c.HandleSnoozeSelected("com.shop.app", 15)
	if err != nil {
		t.Fatalf("HandleSnoozeSelected() failed: %v", err)
	}

	platform.mu.Lock()
	expiry, ok := platform.alarms["com.shop.app"]
	platform.mu.Unlock()
	if !ok {
		t.Fatal("no alarm scheduled")
	}
	if !expiry.Equal(sn.ExpiresAt) {
		t.Errorf("alarm expiry = %v, want %v", expiry, sn.ExpiresAt)
	}
}

func TestHandleSnoozeExpired_ReblocksForegroundApp(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	if _, err := c.Sessions().OnAppOpened("com.shop.app"); err != nil {
		t.Fatalf("OnAppOpened() failed: %v", err)
	}
	if _, err := c.HandleSnoozeSelected("com.shop.app", 15); err != nil {
		t.Fatalf("HandleSnoozeSelected() failed: %v", err)
	}

	platform.setForeground("com.shop.app")
	if err := c.HandleSnoozeExpired("com.shop.app"); err != nil {
		t.Fatalf("HandleSnoozeExpired() failed: %v", err)
	}
	if platform.blockerCount() != 1 {
		t.Errorf("blocker launched %d times, want 1", platform.blockerCount())
	}

	// Background app: no re-block.
	if _, err := c.HandleSnoozeSelected("com.shop.app", 15); err != nil {
		t.Fatalf("HandleSnoozeSelected() failed: %v", err)
	}
	platform.setForeground("com.other")
	if err := c.HandleSnoozeExpired("com.shop.app"); err != nil {
		t.Fatalf("HandleSnoozeExpired() failed: %v", err)
	}
	if platform.blockerCount() != 1 {
		t.Errorf("blocker launched %d times after background expiry, want still 1", platform.blockerCount())
	}
}

// TestHandleAppListChanged applies the auto start/stop policy end to end.
func TestHandleAppListChanged(t *testing.T) {
	c, repo, _ := newTestCoordinator(t)
	ctx := context.Background()

	// No enabled apps: nothing starts.
	if err := c.HandleAppListChanged(ctx); err != nil {
		t.Fatalf("HandleAppListChanged() failed: %v", err)
	}
	if c.Running() {
		t.Error("monitoring should not start with zero enabled apps")
	}

	// First enabled app appears: monitoring starts.
	addRestricted(t, repo, "com.shop.app", true)
	if err := c.HandleAppListChanged(ctx); err != nil {
		t.Fatalf("HandleAppListChanged() after add failed: %v", err)
	}
	if !c.Running() {
		t.Error("monitoring should start when the first enabled app is added")
	}

	// Last enabled app goes: monitoring stops.
	if err := repo.SetAppEnabled("com.shop.app", false); err != nil {
		t.Fatalf("SetAppEnabled() failed: %v", err)
	}
	if err := c.HandleAppListChanged(ctx); err != nil {
		t.Fatalf("HandleAppListChanged() after disable failed: %v", err)
	}
	if c.Running() {
		t.Error("monitoring should stop when the last enabled app is removed")
	}
}

func TestStatus(t *testing.T) {
	c, repo, platform := newTestCoordinator(t)
	addRestricted(t, repo, "com.shop.app", true)

	st := c.Status()
	if st.Running {
		t.Error("Status().Running = true before Start")
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	platform.setForeground("com.shop.app")
	waitFor(t, "status update", func() bool {
		s := c.Status()
		return s.Running && s.CurrentPackage == "com.shop.app" && s.LiveSessions == 1
	})
}
