package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeFormat = time.RFC3339Nano

// Restricted app operations

// AddApp inserts a new restricted app. The AppID is assigned if empty, and
// CreatedAt/UpdatedAt are stamped. The inserted row ID is written back to
// app.ID. Adding a package that already exists fails.
func (s *Store) AddApp(app *RestrictedApp) error {
	if app.AppID == "" {
		app.AppID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	query := `
		INSERT INTO restricted_apps
		(app_id, app_name, package_name, icon_path, is_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		app.AppID,
		app.AppName,
		app.PackageName,
		app.IconPath,
		app.IsEnabled,
		app.CreatedAt.Format(timeFormat),
		app.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert app %s: %w", app.PackageName, mapErr(err))
	}

	app.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get app ID for %s: %w", app.PackageName, err)
	}
	return nil
}

const appColumns = `id, app_id, app_name, package_name, icon_path, is_enabled, created_at, updated_at`

func scanApp(row interface{ Scan(...any) error }) (*RestrictedApp, error) {
	var app RestrictedApp
	var createdAt, updatedAt string

	err := row.Scan(
		&app.ID,
		&app.AppID,
		&app.AppName,
		&app.PackageName,
		&app.IconPath,
		&app.IsEnabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if app.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", app.PackageName, err)
	}
	if app.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for %s: %w", app.PackageName, err)
	}
	return &app, nil
}

// GetAppByPackage retrieves a restricted app by its package name.
func (s *Store) GetAppByPackage(packageName string) (*RestrictedApp, error) {
	row := s.db.QueryRow(`SELECT `+appColumns+` FROM restricted_apps WHERE package_name = ?`, packageName)
	app, err := scanApp(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("app %s: %w", packageName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app %s: %w", packageName, mapErr(err))
	}
	return app, nil
}

// GetAppByID retrieves a restricted app by row ID.
func (s *Store) GetAppByID(id int64) (*RestrictedApp, error) {
	row := s.db.QueryRow(`SELECT `+appColumns+` FROM restricted_apps WHERE id = ?`, id)
	app, err := scanApp(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("app id %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app id %d: %w", id, mapErr(err))
	}
	return app, nil
}

func (s *Store) listApps(where string, args ...any) ([]*RestrictedApp, error) {
	rows, err := s.db.Query(`SELECT `+appColumns+` FROM restricted_apps `+where+` ORDER BY package_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", mapErr(err))
	}
	defer rows.Close()

	var apps []*RestrictedApp
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating apps: %w", err)
	}
	return apps, nil
}

// ListApps returns all restricted apps ordered by package name.
func (s *Store) ListApps() ([]*RestrictedApp, error) {
	return s.listApps("")
}

// ListEnabledApps returns all enabled restricted apps.
func (s *Store) ListEnabledApps() ([]*RestrictedApp, error) {
	return s.listApps("WHERE is_enabled = 1")
}

// CountEnabledApps returns the number of enabled restricted apps. The
// monitoring auto start/stop policy is driven by this count.
func (s *Store) CountEnabledApps() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM restricted_apps WHERE is_enabled = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enabled apps: %w", mapErr(err))
	}
	return count, nil
}

// SetAppEnabled toggles an app's enabled flag. Disabling an app deactivates
// any active snoozes for it in the same transaction, so a disabled app can
// never carry a live snooze.
func (s *Store) SetAppEnabled(packageName string, enabled bool) error {
	app, err := s.GetAppByPackage(packageName)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	now := time.Now().UTC().Format(timeFormat)
	if _, err := tx.Exec(`UPDATE restricted_apps SET is_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, now, app.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("failed to update app %s: %w", packageName, err)
	}

	if !enabled {
		if _, err := tx.Exec(`UPDATE snoozes SET is_active = 0 WHERE restricted_app_id = ? AND is_active = 1`,
			app.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to deactivate snoozes for %s: %w", packageName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// DeleteApp removes a restricted app. Snoozes and follow-up responses are
// removed by the foreign-key cascade.
func (s *Store) DeleteApp(packageName string) error {
	result, err := s.db.Exec(`DELETE FROM restricted_apps WHERE package_name = ?`, packageName)
	if err != nil {
		return fmt.Errorf("failed to delete app %s: %w", packageName, mapErr(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("app %s: %w", packageName, ErrNotFound)
	}
	return nil
}

// Snooze operations

const snoozeColumns = `id, restricted_app_id, expires_at, duration_minutes, is_active, created_at`

func scanSnooze(row interface{ Scan(...any) error }) (*Snooze, error) {
	var sn Snooze
	var expiresAt, createdAt string

	err := row.Scan(
		&sn.ID,
		&sn.RestrictedAppID,
		&expiresAt,
		&sn.DurationMinutes,
		&sn.IsActive,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if sn.ExpiresAt, err = time.Parse(timeFormat, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at for snooze %d: %w", sn.ID, err)
	}
	if sn.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for snooze %d: %w", sn.ID, err)
	}
	return &sn, nil
}

// CreateSnooze deactivates any active snooze for the app and inserts a new
// one in a single transaction, maintaining the at-most-one-active-snooze
// invariant even when the polling loop and a user action interleave.
func (s *Store) CreateSnooze(appID int64, durationMinutes int, expiresAt time.Time) (*Snooze, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(`UPDATE snoozes SET is_active = 0 WHERE restricted_app_id = ? AND is_active = 1`,
		appID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("failed to deactivate prior snoozes for app %d: %w", appID, mapErr(err))
	}

	// Stored timestamps are UTC so that lexicographic comparisons in SQL
	// match chronological order.
	sn := &Snooze{
		RestrictedAppID: appID,
		ExpiresAt:       expiresAt.UTC(),
		DurationMinutes: durationMinutes,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}

	result, err := tx.Exec(`
		INSERT INTO snoozes (restricted_app_id, expires_at, duration_minutes, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)`,
		sn.RestrictedAppID,
		sn.ExpiresAt.Format(timeFormat),
		sn.DurationMinutes,
		sn.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("failed to insert snooze for app %d: %w", appID, err)
	}

	if sn.ID, err = result.LastInsertId(); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("failed to get snooze ID: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snooze for app %d: %w", appID, err)
	}
	return sn, nil
}

// GetActiveSnooze returns the app's flag-active snooze, or ErrNotFound if
// none exists. The result may already be past expiry; callers deciding
// blocking behavior must check Expired as well.
func (s *Store) GetActiveSnooze(appID int64) (*Snooze, error) {
	row := s.db.QueryRow(`
		SELECT `+snoozeColumns+` FROM snoozes
		WHERE restricted_app_id = ? AND is_active = 1
		ORDER BY created_at DESC LIMIT 1`, appID)
	sn, err := scanSnooze(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("active snooze for app %d: %w", appID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active snooze for app %d: %w", appID, mapErr(err))
	}
	return sn, nil
}

// ListActiveSnoozes returns all flag-active snoozes.
func (s *Store) ListActiveSnoozes() ([]*Snooze, error) {
	rows, err := s.db.Query(`SELECT ` + snoozeColumns + ` FROM snoozes WHERE is_active = 1 ORDER BY expires_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active snoozes: %w", mapErr(err))
	}
	defer rows.Close()

	var snoozes []*Snooze
	for rows.Next() {
		sn, err := scanSnooze(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snooze row: %w", err)
		}
		snoozes = append(snoozes, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snoozes: %w", err)
	}
	return snoozes, nil
}

// DeactivateSnooze marks a single snooze inactive.
func (s *Store) DeactivateSnooze(id int64) error {
	_, err := s.db.Exec(`UPDATE snoozes SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate snooze %d: %w", id, mapErr(err))
	}
	return nil
}

// DeactivateSnoozesForApp marks all of an app's snoozes inactive.
func (s *Store) DeactivateSnoozesForApp(appID int64) error {
	_, err := s.db.Exec(`UPDATE snoozes SET is_active = 0 WHERE restricted_app_id = ? AND is_active = 1`, appID)
	if err != nil {
		return fmt.Errorf("failed to deactivate snoozes for app %d: %w", appID, mapErr(err))
	}
	return nil
}

// ExpireActiveSnoozes deactivates every flag-active snooze whose expiry has
// passed and returns the affected records, in one transaction so a snooze is
// never reported expired twice.
func (s *Store) ExpireActiveSnoozes(now time.Time) ([]*Snooze, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	cutoff := now.UTC().Format(timeFormat)
	rows, err := tx.Query(`
		SELECT `+snoozeColumns+` FROM snoozes
		WHERE is_active = 1 AND expires_at <= ?`, cutoff)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("failed to query expired snoozes: %w", mapErr(err))
	}

	var expired []*Snooze
	for rows.Next() {
		sn, err := scanSnooze(rows)
		if err != nil {
			rows.Close()
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("failed to scan expired snooze: %w", err)
		}
		expired = append(expired, sn)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("error iterating expired snoozes: %w", err)
	}
	rows.Close()

	if len(expired) == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, nil
	}

	if _, err := tx.Exec(`UPDATE snoozes SET is_active = 0 WHERE is_active = 1 AND expires_at <= ?`, cutoff); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("failed to deactivate expired snoozes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expiry sweep: %w", err)
	}

	for _, sn := range expired {
		sn.IsActive = false
	}
	return expired, nil
}

// Follow-up response operations

// AddFollowupResponse records a follow-up response. CreatedAt is stamped and
// the inserted row ID written back.
func (s *Store) AddFollowupResponse(r *FollowupResponse) error {
	if !ValidResponse(r.Response) {
		return fmt.Errorf("invalid follow-up response %q", r.Response)
	}
	r.SessionStart = r.SessionStart.UTC()
	r.SessionEnd = r.SessionEnd.UTC()
	r.CreatedAt = time.Now().UTC()

	result, err := s.db.Exec(`
		INSERT INTO followup_responses
		(restricted_app_id, session_start, session_end, duration_seconds, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RestrictedAppID,
		r.SessionStart.Format(timeFormat),
		r.SessionEnd.Format(timeFormat),
		r.DurationSeconds,
		r.Response,
		r.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert follow-up for app %d: %w", r.RestrictedAppID, mapErr(err))
	}

	if r.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get follow-up ID: %w", err)
	}
	return nil
}

// ListFollowupsSince returns all follow-up responses created at or after the
// given time, newest first.
func (s *Store) ListFollowupsSince(since time.Time) ([]*FollowupResponse, error) {
	rows, err := s.db.Query(`
		SELECT id, restricted_app_id, session_start, session_end, duration_seconds, response, created_at
		FROM followup_responses
		WHERE created_at >= ?
		ORDER BY created_at DESC`, since.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", mapErr(err))
	}
	defer rows.Close()

	var responses []*FollowupResponse
	for rows.Next() {
		var r FollowupResponse
		var start, end, createdAt string

		err := rows.Scan(&r.ID, &r.RestrictedAppID, &start, &end, &r.DurationSeconds, &r.Response, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follow-up row: %w", err)
		}
		if r.SessionStart, err = time.Parse(timeFormat, start); err != nil {
			return nil, fmt.Errorf("failed to parse session_start: %w", err)
		}
		if r.SessionEnd, err = time.Parse(timeFormat, end); err != nil {
			return nil, fmt.Errorf("failed to parse session_end: %w", err)
		}
		if r.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		responses = append(responses, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow-ups: %w", err)
	}
	return responses, nil
}

// CountFollowups returns the total number of follow-up responses recorded.
func (s *Store) CountFollowups() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM followup_responses`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count follow-ups: %w", mapErr(err))
	}
	return count, nil
}

// Cleanup deletes inactive snoozes and follow-up responses created before
// the cutoff. Active snoozes are never touched regardless of age. Returns
// the number of rows deleted.
func (s *Store) Cleanup(olderThan time.Time) (int64, error) {
	cutoff := olderThan.UTC().Format(timeFormat)

	var deleted int64
	result, err := s.db.Exec(`DELETE FROM snoozes WHERE is_active = 0 AND created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up snoozes: %w", mapErr(err))
	}
	if n, err := result.RowsAffected(); err == nil {
		deleted += n
	}

	result, err = s.db.Exec(`DELETE FROM followup_responses WHERE created_at < ?`, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("failed to clean up follow-ups: %w", mapErr(err))
	}
	if n, err := result.RowsAffected(); err == nil {
		deleted += n
	}

	return deleted, nil
}
