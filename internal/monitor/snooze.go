package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/thinktwice-app/thinktwice/internal/store"
)

// SnoozeService encapsulates snooze lifecycle rules. It is stateless aside
// from the repository it wraps; the clock is injectable for tests.
type SnoozeService struct {
	repo Repository
	now  func() time.Time
}

// NewSnoozeService creates a SnoozeService backed by the given repository.
func NewSnoozeService(repo Repository) *SnoozeService {
	return &SnoozeService{repo: repo, now: time.Now}
}

// Create starts a new snooze for the package. Any prior active snooze for
// the same app is deactivated by the repository in the same transaction.
// Fails with store.ErrNotFound if the package is not restricted.
func (s *SnoozeService) Create(packageName string, durationMinutes int) (*store.Snooze, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("snooze duration must be positive, got %d", durationMinutes)
	}

	app, err := s.repo.GetAppByPackage(packageName)
	if err != nil {
		return nil, fmt.Errorf("cannot snooze %s: %w", packageName, err)
	}

	expiry := s.now().Add(time.Duration(durationMinutes) * time.Minute)
	sn, err := s.repo.CreateSnooze(app.ID, durationMinutes, expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to create snooze for %s: %w", packageName, err)
	}
	return sn, nil
}

// Active returns the package's active, non-expired snooze, or nil if there
// is none. A snooze counts as active only if its persisted flag is set AND
// its expiry has not passed; read-only queries never fail on missing apps.
func (s *SnoozeService) Active(packageName string) (*store.Snooze, error) {
	app, err := s.repo.GetAppByPackage(packageName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sn, err := s.repo.GetActiveSnooze(app.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sn.Expired(s.now()) {
		return nil, nil
	}
	return sn, nil
}

// HasActive reports whether the package has an active, non-expired snooze.
// Errors degrade to "no snooze".
func (s *SnoozeService) HasActive(packageName string) bool {
	sn, err := s.Active(packageName)
	return err == nil && sn != nil
}

// Deactivate marks a single snooze inactive.
func (s *SnoozeService) Deactivate(id int64) error {
	return s.repo.DeactivateSnooze(id)
}

// DeactivateForPackage deactivates the package's flag-active snooze,
// regardless of whether it has already expired. No-op for unknown packages.
func (s *SnoozeService) DeactivateForPackage(packageName string) error {
	app, err := s.repo.GetAppByPackage(packageName)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.repo.DeactivateSnoozesForApp(app.ID)
}

// Remaining returns the time left on the package's active snooze, or 0 if
// there is none.
func (s *SnoozeService) Remaining(packageName string) time.Duration {
	sn, err := s.Active(packageName)
	if err != nil || sn == nil {
		return 0
	}
	return sn.Remaining(s.now())
}

// RemainingMinutes returns the whole minutes left on the package's active
// snooze, rounded up: a snooze with 30 seconds left reads as 1 minute, so
// the UI never shows "0 min left" for a snooze that is still suppressing
// blocking. 0 means no active snooze.
func (s *SnoozeService) RemainingMinutes(packageName string) int {
	remaining := s.Remaining(packageName)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}

// ProcessExpired sweeps all active snoozes whose expiry has passed,
// deactivates them, and returns the package names of the affected apps.
// Packages are resolved through each snooze's restricted-app ID.
func (s *SnoozeService) ProcessExpired() ([]string, error) {
	expired, err := s.repo.ExpireActiveSnoozes(s.now())
	if err != nil {
		return nil, fmt.Errorf("expiry sweep failed: %w", err)
	}

	var packages []string
	for _, sn := range expired {
		app, err := s.repo.GetAppByID(sn.RestrictedAppID)
		if errors.Is(err, store.ErrNotFound) {
			// App removed while its snooze was live; nothing to re-block.
			continue
		}
		if err != nil {
			return packages, err
		}
		packages = append(packages, app.PackageName)
	}
	return packages, nil
}
