package storage

import "database/sql"

// migrateV001 creates the initial nagi schema. Event and expiry timestamps
// are stored as Unix milliseconds so range scans compare integers, which
// matches the millisecond precision of the ingestion wire format. Every
// statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			api_token  TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Append-only activity log. The rowid preserves insertion order,
		// which is what ListEvents returns; consumers sort by ts.
		`CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			ts         INTEGER NOT NULL,
			app        TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS target_apps (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			app        TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, app)
		)`,

		`CREATE TABLE IF NOT EXISTS login_tokens (
			token      TEXT PRIMARY KEY,
			email      TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_events_user_ts      ON events(user_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_app     ON events(user_id, app)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user       ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_login_tokens_expiry ON login_tokens(expires_at)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
