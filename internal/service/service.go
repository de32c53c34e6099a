package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thinktwice-app/thinktwice/internal/monitor"
)

// followupRetention is how long follow-up responses and dead snoozes are
// kept before the periodic cleanup removes them.
const followupRetention = 90 * 24 * time.Hour

// cleanupInterval is how often the retention sweep runs while the service
// is up.
const cleanupInterval = 12 * time.Hour

// Service owns a coordinator's lifetime inside a long-running process.
type Service struct {
	coord *monitor.Coordinator
}

// New creates a service wrapping the given coordinator.
func New(coord *monitor.Coordinator) *Service {
	return &Service{coord: coord}
}

// Coordinator returns the wrapped coordinator.
func (s *Service) Coordinator() *monitor.Coordinator {
	return s.coord
}

// Run starts monitoring and blocks until SIGTERM or SIGINT, then stops the
// coordinator cleanly. A failed start (e.g. missing permissions) returns
// immediately with the coordinator still stopped.
func (s *Service) Run(ctx context.Context) error {
	if err := s.coord.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "received signal %v, shutting down...\n", sig)
			return s.coord.Stop()
		case <-ctx.Done():
			return s.coord.Stop()
		case <-cleanupTicker.C:
			if err := s.coord.Sessions().PerformCleanup(followupRetention); err != nil {
				fmt.Fprintf(os.Stderr, "service: retention cleanup: %v\n", err)
			}
		}
	}
}

// RunDaemon runs the service in daemon-child mode and removes the PID file
// on exit.
func (s *Service) RunDaemon(ctx context.Context, pidFile string) error {
	err := s.Run(ctx)

	if rmErr := os.Remove(pidFile); rmErr != nil && !os.IsNotExist(rmErr) {
		fmt.Fprintf(os.Stderr, "service: remove PID file: %v\n", rmErr)
	}
	return err
}
