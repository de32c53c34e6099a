package store

const schema = `
CREATE TABLE IF NOT EXISTS restricted_apps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id TEXT NOT NULL UNIQUE,
    app_name TEXT NOT NULL,
    package_name TEXT NOT NULL UNIQUE,
    icon_path TEXT,
    is_enabled BOOLEAN NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS snoozes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    restricted_app_id INTEGER NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    duration_minutes INTEGER NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (restricted_app_id) REFERENCES restricted_apps(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS followup_responses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    restricted_app_id INTEGER NOT NULL,
    session_start TIMESTAMP NOT NULL,
    session_end TIMESTAMP NOT NULL,
    duration_seconds INTEGER NOT NULL,
    response TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (restricted_app_id) REFERENCES restricted_apps(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_apps_package ON restricted_apps(package_name);
CREATE INDEX IF NOT EXISTS idx_snoozes_app ON snoozes(restricted_app_id);
CREATE INDEX IF NOT EXISTS idx_snoozes_active ON snoozes(is_active, expires_at);
CREATE INDEX IF NOT EXISTS idx_followups_app ON followup_responses(restricted_app_id);
CREATE INDEX IF NOT EXISTS idx_followups_created ON followup_responses(created_at);
`
