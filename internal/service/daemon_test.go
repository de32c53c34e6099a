package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestIsDaemonRunning_NoPIDFile(t *testing.T) {
	running, err := IsDaemonRunning(filepath.Join(t.TempDir(), "missing.pid"))
	if err != nil {
		t.Fatalf("IsDaemonRunning() failed: %v", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true for missing PID file")
	}
}

func TestIsDaemonRunning_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(pidFile, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Fatalf("IsDaemonRunning() failed: %v", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true for invalid PID file")
	}
}

func TestIsDaemonRunning_StalePID_RemovesFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "stale.pid")
	// PIDs beyond the default kernel maximum never name a live process.
	if err := os.WriteFile(pidFile, []byte("4194999\n"), 0644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Fatalf("IsDaemonRunning() failed: %v", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true for stale PID")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("stale PID file should be removed")
	}
}

func TestIsDaemonRunning_CurrentProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "self.pid")
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Fatalf("IsDaemonRunning() failed: %v", err)
	}
	if !running {
		t.Error("IsDaemonRunning() = false for a live process")
	}
}

func TestStopDaemon_NotRunning(t *testing.T) {
	if err := StopDaemon(filepath.Join(t.TempDir(), "missing.pid")); err == nil {
		t.Error("StopDaemon() without PID file should fail")
	}
}

func TestDaemonPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "d.pid")

	if got := DaemonPID(pidFile); got != 0 {
		t.Errorf("DaemonPID() = %d for missing file, want 0", got)
	}

	if err := os.WriteFile(pidFile, []byte("12345\n"), 0644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}
	if got := DaemonPID(pidFile); got != 12345 {
		t.Errorf("DaemonPID() = %d, want 12345", got)
	}
}
