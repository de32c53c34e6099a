// Package platform provides the OS-specific capability implementation the
// monitoring core consumes.
//
// The desktop implementation is focus-file based: a small helper
// (cmd/thinktwice-focus, hooked into the window manager or compositor)
// atomically rewrites ~/.thinktwice/foreground with the package name of the
// currently focused application. This package watches that file with
// fsnotify and serves the cached value, so the polling loop's foreground
// query never touches the disk in the hot path.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thinktwice-app/thinktwice/internal/monitor"
)

// ForegroundFile is the name of the focus state file inside the state dir.
const ForegroundFile = "foreground"

// Options configures the focus-file platform.
type Options struct {
	// StateDir is the directory holding the focus state file.
	// Defaults to ~/.thinktwice.
	StateDir string

	// BlockerCommand is the command launched to show the blocker UI.
	// The restricted package name is appended as the last argument.
	// Empty means no blocker UI is installed; launches are logged and
	// skipped.
	BlockerCommand []string

	// FollowupCommand is the command launched to show the follow-up
	// prompt. The package name, session start, and session end (RFC3339)
	// are appended as arguments.
	FollowupCommand []string
}

// FocusFilePlatform implements monitor.Platform for desktop Linux.
type FocusFilePlatform struct {
	stateDir    string
	blockerCmd  []string
	followupCmd []string

	mu      sync.Mutex
	current string
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	alarmMu sync.Mutex
	alarms  map[string]*time.Timer
	alarmFn func(packageName string)
}

var _ monitor.Platform = (*FocusFilePlatform)(nil)

// DefaultStateDir returns ~/.thinktwice.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".thinktwice"), nil
}

// New creates a focus-file platform. The state directory is created if it
// does not exist.
func New(opts Options) (*FocusFilePlatform, error) {
	stateDir := opts.StateDir
	if stateDir == "" {
		d, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = d
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &FocusFilePlatform{
		stateDir:    stateDir,
		blockerCmd:  opts.BlockerCommand,
		followupCmd: opts.FollowupCommand,
		alarms:      make(map[string]*time.Timer),
	}, nil
}

// SetAlarmHandler registers the callback invoked when a scheduled snooze
// alarm fires. Must be set before alarms are scheduled.
func (p *FocusFilePlatform) SetAlarmHandler(fn func(packageName string)) {
	p.alarmMu.Lock()
	p.alarmFn = fn
	p.alarmMu.Unlock()
}

func (p *FocusFilePlatform) foregroundPath() string {
	return filepath.Join(p.stateDir, ForegroundFile)
}

// HasRequiredPermissions reports whether the state directory is usable.
// This stands in for the mobile platforms' usage-stats permission: without a
// writable state dir the focus helper cannot report anything.
func (p *FocusFilePlatform) HasRequiredPermissions() bool {
	probe := filepath.Join(p.stateDir, ".probe")
	if err := os.WriteFile(probe, nil, 0600); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

// RequestPermissions attempts to create the state directory.
func (p *FocusFilePlatform) RequestPermissions() error {
	if err := os.MkdirAll(p.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// readForeground reads the focus state file directly. A missing file means
// no detectable foreground app.
func (p *FocusFilePlatform) readForeground() (string, error) {
	data, err := os.ReadFile(p.foregroundPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read focus state: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// CurrentForegroundApp returns the cached foreground package while the
// watcher runs, falling back to a direct file read otherwise.
func (p *FocusFilePlatform) CurrentForegroundApp() (string, error) {
	p.mu.Lock()
	watching := p.watcher != nil
	current := p.current
	p.mu.Unlock()

	if watching {
		return current, nil
	}
	return p.readForeground()
}

// StartMonitoring begins watching the focus state file. Idempotent.
func (p *FocusFilePlatform) StartMonitoring() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create focus watcher: %w", err)
	}
	// Watch the directory, not the file: the helper replaces the file via
	// rename, which would drop a file-level watch.
	if err := w.Add(p.stateDir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch state directory: %w", err)
	}

	current, err := p.readForeground()
	if err != nil {
		w.Close()
		return err
	}

	p.watcher = w
	p.current = current
	p.done = make(chan struct{})

	p.wg.Add(1)
	go p.watchLoop(w, p.done)
	return nil
}

func (p *FocusFilePlatform) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	defer p.wg.Done()

	target := p.foregroundPath()
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Name != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			current, err := p.readForeground()
			if err != nil {
				fmt.Fprintf(os.Stderr, "platform: focus read: %v\n", err)
				continue
			}
			p.mu.Lock()
			p.current = current
			p.mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "platform: focus watcher: %v\n", err)
		case <-done:
			return
		}
	}
}

// StopMonitoring stops the focus watcher and cancels all pending snooze
// alarms. Idempotent.
func (p *FocusFilePlatform) StopMonitoring() error {
	p.mu.Lock()
	w := p.watcher
	done := p.done
	p.watcher = nil
	p.done = nil
	p.mu.Unlock()

	if w == nil {
		return nil
	}
	close(done)
	w.Close()
	p.wg.Wait()

	p.alarmMu.Lock()
	for pkg, timer := range p.alarms {
		timer.Stop()
		delete(p.alarms, pkg)
	}
	p.alarmMu.Unlock()
	return nil
}

// launch starts cmd with extra arguments appended, without waiting for it.
func launch(cmd []string, extra ...string) error {
	if len(cmd) == 0 {
		return nil
	}
	args := append(append([]string{}, cmd[1:]...), extra...)
	c := exec.Command(cmd[0], args...)
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", cmd[0], err)
	}
	// Reap the child in the background so it doesn't linger as a zombie.
	go c.Wait() //nolint:errcheck
	return nil
}

// LaunchBlockerUI runs the configured blocker command for the package.
// A missing command is not an error; the launch is skipped.
func (p *FocusFilePlatform) LaunchBlockerUI(packageName string) error {
	if len(p.blockerCmd) == 0 {
		fmt.Fprintf(os.Stderr, "platform: no blocker command configured, skipping block of %s\n", packageName)
		return nil
	}
	return launch(p.blockerCmd, packageName)
}

// LaunchFollowupUI runs the configured follow-up command with the session's
// package and time range.
func (p *FocusFilePlatform) LaunchFollowupUI(sess *monitor.Session) error {
	if len(p.followupCmd) == 0 {
		return nil
	}
	end := ""
	if sess.EndTime != nil {
		end = sess.EndTime.Format(time.RFC3339)
	}
	return launch(p.followupCmd, sess.PackageName, sess.StartTime.Format(time.RFC3339), end)
}

// ScheduleSnoozeAlarm arms an in-process timer that fires the registered
// alarm handler at the snooze expiry. Rescheduling for the same package
// replaces the prior alarm.
func (p *FocusFilePlatform) ScheduleSnoozeAlarm(packageName string, expiresAt time.Time) error {
	p.alarmMu.Lock()
	defer p.alarmMu.Unlock()

	if p.alarmFn == nil {
		return fmt.Errorf("no alarm handler registered")
	}
	if timer, ok := p.alarms[packageName]; ok {
		timer.Stop()
	}

	d := time.Until(expiresAt)
	if d < 0 {
		d = 0
	}
	p.alarms[packageName] = time.AfterFunc(d, func() {
		p.alarmMu.Lock()
		fn := p.alarmFn
		delete(p.alarms, packageName)
		p.alarmMu.Unlock()
		if fn != nil {
			fn(packageName)
		}
	})
	return nil
}

// CancelSnoozeAlarm disarms the package's pending alarm, if any.
func (p *FocusFilePlatform) CancelSnoozeAlarm(packageName string) {
	p.alarmMu.Lock()
	defer p.alarmMu.Unlock()
	if timer, ok := p.alarms[packageName]; ok {
		timer.Stop()
		delete(p.alarms, packageName)
	}
}
