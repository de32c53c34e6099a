package platform

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestPlatform(t *testing.T) *FocusFilePlatform {
	t.Helper()
	p, err := New(Options{StateDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { p.StopMonitoring() })
	return p
}

// writeForeground mimics the focus helper: temp file + rename.
func writeForeground(t *testing.T, p *FocusFilePlatform, pkg string) {
	t.Helper()
	tmp := filepath.Join(p.stateDir, ".foreground.tmp")
	if err := os.WriteFile(tmp, []byte(pkg+"\n"), 0600); err != nil {
		t.Fatalf("write temp focus file: %v", err)
	}
	if err := os.Rename(tmp, p.foregroundPath()); err != nil {
		t.Fatalf("rename focus file: %v", err)
	}
}

func TestHasRequiredPermissions(t *testing.T) {
	p := newTestPlatform(t)
	if !p.HasRequiredPermissions() {
		t.Error("HasRequiredPermissions() = false for writable state dir")
	}
}

func TestCurrentForegroundApp_NoFile(t *testing.T) {
	p := newTestPlatform(t)

	pkg, err := p.CurrentForegroundApp()
	if err != nil {
		t.Fatalf("CurrentForegroundApp() failed: %v", err)
	}
	if pkg != "" {
		t.Errorf("CurrentForegroundApp() = %q, want empty for missing file", pkg)
	}
}

func TestCurrentForegroundApp_DirectRead(t *testing.T) {
	p := newTestPlatform(t)
	writeForeground(t, p, "com.shop.app")

	pkg, err := p.CurrentForegroundApp()
	if err != nil {
		t.Fatalf("CurrentForegroundApp() failed: %v", err)
	}
	if pkg != "com.shop.app" {
		t.Errorf("CurrentForegroundApp() = %q, want com.shop.app", pkg)
	}
}

// TestWatcher_TracksFocusChanges verifies the fsnotify path: after
// StartMonitoring, focus-file rewrites show up in the cached value.
func TestWatcher_TracksFocusChanges(t *testing.T) {
	p := newTestPlatform(t)
	writeForeground(t, p, "com.initial")

	if err := p.StartMonitoring(); err != nil {
		t.Fatalf("StartMonitoring() failed: %v", err)
	}

	// Initial value read at start.
	pkg, err := p.CurrentForegroundApp()
	if err != nil || pkg != "com.initial" {
		t.Fatalf("CurrentForegroundApp() = %q, %v; want com.initial", pkg, err)
	}

	writeForeground(t, p, "com.shop.app")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pkg, err = p.CurrentForegroundApp()
		if err != nil {
			t.Fatalf("CurrentForegroundApp() failed: %v", err)
		}
		if pkg == "com.shop.app" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watcher never observed focus change, last value %q", pkg)
}

func TestStartStopMonitoring_Idempotent(t *testing.T) {
	p := newTestPlatform(t)

	if err := p.StartMonitoring(); err != nil {
		t.Fatalf("StartMonitoring() failed: %v", err)
	}
	if err := p.StartMonitoring(); err != nil {
		t.Fatalf("second StartMonitoring() failed: %v", err)
	}
	if err := p.StopMonitoring(); err != nil {
		t.Fatalf("StopMonitoring() failed: %v", err)
	}
	if err := p.StopMonitoring(); err != nil {
		t.Fatalf("second StopMonitoring() failed: %v", err)
	}
}

func TestScheduleSnoozeAlarm_Fires(t *testing.T) {
	p := newTestPlatform(t)

	var mu sync.Mutex
	var fired []string
	p.SetAlarmHandler(func(pkg string) {
		mu.Lock()
		fired = append(fired, pkg)
		mu.Unlock()
	})

	if err := p.ScheduleSnoozeAlarm("com.shop.app", time.Now().Add(10*time.Millisecond)); err != nil {
		t.Fatalf("ScheduleSnoozeAlarm() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(fired)
		mu.Unlock()
		if n == 1 {
			if fired[0] != "com.shop.app" {
				t.Errorf("alarm fired for %q, want com.shop.app", fired[0])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("alarm never fired")
}

func TestScheduleSnoozeAlarm_NoHandler(t *testing.T) {
	p := newTestPlatform(t)
	if err := p.ScheduleSnoozeAlarm("com.shop.app", time.Now().Add(time.Minute)); err == nil {
		t.Error("ScheduleSnoozeAlarm() without handler should fail")
	}
}

func TestCancelSnoozeAlarm(t *testing.T) {
	p := newTestPlatform(t)

	var mu sync.Mutex
	fired := false
	p.SetAlarmHandler(func(string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	if err := p.ScheduleSnoozeAlarm("com.shop.app", time.Now().Add(30*time.Millisecond)); err != nil {
		t.Fatalf("ScheduleSnoozeAlarm() failed: %v", err)
	}
	p.CancelSnoozeAlarm("com.shop.app")

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("canceled alarm still fired")
	}
}

func TestLaunchBlockerUI_NoCommand(t *testing.T) {
	p := newTestPlatform(t)
	if err := p.LaunchBlockerUI("com.shop.app"); err != nil {
		t.Errorf("LaunchBlockerUI() with no command = %v, want nil", err)
	}
}
