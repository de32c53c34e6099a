package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Config holds the coordinator's polling intervals and follow-up flag.
type Config struct {
	// IdleInterval is the poll delay while no blockable app is foreground.
	IdleInterval time.Duration
	// ActiveInterval is the poll delay while the foreground app should be
	// showing a blocker.
	ActiveInterval time.Duration
	// RetryInterval is the delay after a failed poll iteration.
	RetryInterval time.Duration
	// ShowFollowup gates launching the follow-up prompt when a
	// restricted-app session ends.
	ShowFollowup bool
}

// DefaultConfig returns the intervals used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		IdleInterval:   5 * time.Second,
		ActiveInterval: 500 * time.Millisecond,
		RetryInterval:  5 * time.Second,
		ShowFollowup:   true,
	}
}

// Coordinator owns the poll-detect-decide-act loop. It is the only component
// that runs continuously; all session-map mutations happen through the
// SessionManager, driven either by the single polling goroutine or by the
// host's handler entry points.
type Coordinator struct {
	platform Platform
	sessions *SessionManager
	snoozes  *SnoozeService
	repo     Repository
	cfg      Config

	mu          sync.Mutex
	state       State
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	currentPkg  string
	lastChecked time.Time
}

// NewCoordinator wires a coordinator over the given collaborators.
func NewCoordinator(repo Repository, platform Platform, cfg Config) *Coordinator {
	snoozes := NewSnoozeService(repo)
	return &Coordinator{
		platform: platform,
		sessions: NewSessionManager(repo, snoozes),
		snoozes:  snoozes,
		repo:     repo,
		cfg:      cfg,
	}
}

// Sessions returns the coordinator's session manager.
func (c *Coordinator) Sessions() *SessionManager { return c.sessions }

// Snoozes returns the coordinator's snooze service.
func (c *Coordinator) Snoozes() *SnoozeService { return c.snoozes }

// Start begins monitoring. It is a no-op if monitoring is already active.
// If the platform reports missing permissions the start attempt fails with
// ErrPermissionDenied and the coordinator remains stopped: no orphaned
// loop, no orphaned platform monitoring session.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRunning || c.state == StateStarting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStarting
	c.mu.Unlock()

	if !c.platform.HasRequiredPermissions() {
		c.setState(StateStopped)
		return ErrPermissionDenied
	}

	if err := c.platform.StartMonitoring(); err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("platform monitoring failed to start: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.state = StateRunning
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(loopCtx)

	return nil
}

// Stop halts monitoring: cancels the polling loop, waits for it to exit,
// tells the platform to stop, and clears all in-memory sessions. Idempotent;
// calling it while stopped is a no-op.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped || c.state == StateStopping {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if err := c.platform.StopMonitoring(); err != nil {
		log.Printf("coordinator: platform stop: %v", err)
	}
	c.sessions.Clear()

	c.setState(StateStopped)
	return nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Running reports whether the polling loop is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

// Status returns a snapshot of the coordinator's state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:        c.state == StateRunning,
		CurrentPackage: c.currentPkg,
		LiveSessions:   c.sessions.SessionCount(),
		LastChecked:    c.lastChecked,
	}
}

// run is the polling loop. One iteration: poll the foreground app, handle
// the transition (close before open), sweep expired snoozes, then sleep for
// the adaptive interval. Any error in one iteration is logged and the loop
// continues after the retry interval; a single failed poll never kills the
// loop. Cancellation exits immediately.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	lastForeground := ""
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delay, err := c.pollOnce(&lastForeground)
		if err != nil {
			log.Printf("coordinator: poll: %v", err)
			delay = c.cfg.RetryInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// pollOnce executes one loop iteration and returns the delay before the
// next one.
func (c *Coordinator) pollOnce(lastForeground *string) (time.Duration, error) {
	current, err := c.platform.CurrentForegroundApp()
	if err != nil {
		return 0, fmt.Errorf("foreground query: %w", err)
	}

	if current != *lastForeground {
		c.handleAppChange(*lastForeground, current)
		*lastForeground = current
	}

	// The sweep runs after transition handling so a just-opened app is
	// immediately re-blocked when its snooze expired in the same tick.
	expired, err := c.sessions.CheckExpiredSnoozes()
	if err != nil {
		return 0, fmt.Errorf("expiry sweep: %w", err)
	}
	for _, pkg := range expired {
		c.platform.CancelSnoozeAlarm(pkg)
		if pkg == current {
			if err := c.platform.LaunchBlockerUI(pkg); err != nil {
				log.Printf("coordinator: blocker relaunch for %s: %v", pkg, err)
			}
		}
	}

	c.mu.Lock()
	c.currentPkg = current
	c.lastChecked = time.Now()
	c.mu.Unlock()

	if current != "" && c.sessions.ShouldShowBlocker(current) {
		return c.cfg.ActiveInterval, nil
	}
	return c.cfg.IdleInterval, nil
}

// handleAppChange processes one foreground transition. The previous app's
// close is always handled before the new app's open, so a session's end is
// recorded before another begins.
func (c *Coordinator) handleAppChange(prev, current string) {
	if prev != "" {
		if sess := c.sessions.OnAppClosed(prev); sess != nil && c.cfg.ShowFollowup {
			if err := c.platform.LaunchFollowupUI(sess); err != nil {
				log.Printf("coordinator: follow-up launch for %s: %v", prev, err)
			}
		}
	}

	if current != "" {
		block, err := c.sessions.OnAppOpened(current)
		if err != nil {
			log.Printf("coordinator: app open %s: %v", current, err)
			return
		}
		if block {
			if err := c.platform.LaunchBlockerUI(current); err != nil {
				log.Printf("coordinator: blocker launch for %s: %v", current, err)
			}
		}
	}
}

// HandleSnoozeSelected records a user-picked snooze duration and schedules
// the platform alarm for its expiry.
func (c *Coordinator) HandleSnoozeSelected(packageName string, durationMinutes int) (*store.Snooze, error) {
	sn, err := c.sessions.OnSnoozeSelected(packageName, durationMinutes)
	if err != nil {
		return nil, err
	}
	if err := c.platform.ScheduleSnoozeAlarm(packageName, sn.ExpiresAt); err != nil {
		log.Printf("coordinator: alarm for %s: %v", packageName, err)
	}
	return sn, nil
}

// HandleSnoozeExpired reacts to a fired snooze alarm: deactivates the
// snooze and re-launches the blocker if the app is still in the foreground.
func (c *Coordinator) HandleSnoozeExpired(packageName string) error {
	foreground, err := c.platform.CurrentForegroundApp()
	if err != nil {
		log.Printf("coordinator: foreground query on alarm: %v", err)
		foreground = ""
	}

	reshow, err := c.sessions.OnSnoozeExpired(packageName, foreground == packageName)
	if err != nil {
		return err
	}
	if reshow {
		if err := c.platform.LaunchBlockerUI(packageName); err != nil {
			return fmt.Errorf("blocker relaunch for %s: %w", packageName, err)
		}
	}
	return nil
}

// HandleFollowupResponse records the user's answer to a follow-up prompt.
func (c *Coordinator) HandleFollowupResponse(sess *Session, response string) error {
	return c.sessions.OnFollowupResponse(sess, response)
}

// HandleAppListChanged applies the auto start/stop policy: monitoring starts
// when the first enabled restricted app appears and stops when the last one
// goes.
func (c *Coordinator) HandleAppListChanged(ctx context.Context) error {
	count, err := c.repo.CountEnabledApps()
	if err != nil {
		return err
	}

	if count > 0 && !c.Running() {
		return c.Start(ctx)
	}
	if count == 0 && c.Running() {
		return c.Stop()
	}
	return nil
}
