package store

import "time"

// RestrictedApp is a user-designated application subject to blocking.
// PackageName is the natural key; AppID is a stable external identifier
// handed to UI surfaces so they never depend on row IDs.
type RestrictedApp struct {
	ID          int64
	AppID       string
	AppName     string
	PackageName string
	IconPath    string
	IsEnabled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snooze is a temporary, time-boxed suspension of blocking for one
// restricted app. At most one snooze per app is active at any time;
// CreateSnooze enforces this transactionally. A snooze is immutable
// once created except for the IsActive flag.
type Snooze struct {
	ID              int64
	RestrictedAppID int64
	ExpiresAt       time.Time
	DurationMinutes int
	IsActive        bool
	CreatedAt       time.Time
}

// Expired reports whether the snooze's expiry has passed at the given time.
// Expiry is time-derived; IsActive is a separately persisted flag. Callers
// deciding whether a snooze still suppresses blocking must check both.
func (s *Snooze) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the time left until expiry, or 0 if already expired.
func (s *Snooze) Remaining(now time.Time) time.Duration {
	if s.Expired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Follow-up response values, captured after the user closes a restricted app.
const (
	ResponseKeptUsing       = "kept_using"
	ResponseClosedApp       = "closed_app"
	ResponseBoughtSomething = "bought_something"
	ResponseSavedMoney      = "saved_money"
)

// ValidResponse reports whether r is one of the known follow-up responses.
func ValidResponse(r string) bool {
	switch r {
	case ResponseKeptUsing, ResponseClosedApp, ResponseBoughtSomething, ResponseSavedMoney:
		return true
	}
	return false
}

// FollowupResponse records the user's reflection after one restricted-app
// session. Immutable once created; aged out by Cleanup.
type FollowupResponse struct {
	ID              int64
	RestrictedAppID int64
	SessionStart    time.Time
	SessionEnd      time.Time
	DurationSeconds int64
	Response        string
	CreatedAt       time.Time
}
