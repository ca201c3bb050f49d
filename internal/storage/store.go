package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist. Expired
// or already-consumed tokens and sessions report it as well, so callers
// can distinguish a bad credential from an I/O fault.
var ErrNotFound = errors.New("not found")

// Store defines the interface for nagi data operations.
type Store interface {
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]Event, error)
	LastEventBefore(ctx context.Context, userID string, before time.Time) (*Event, error)
	DeleteEvents(ctx context.Context, userID string) (int64, error)
	ListApps(ctx context.Context, userID string) ([]string, error)

	TargetApps(ctx context.Context, userID string) ([]string, error)
	SetTargetApp(ctx context.Context, userID, app string, selected bool) error

	EnsureUser(ctx context.Context, email string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByAPIToken(ctx context.Context, token string) (*User, error)

	CreateLoginToken(ctx context.Context, email string, ttl time.Duration) (string, error)
	ConsumeLoginToken(ctx context.Context, token string) (string, error)
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error)
	UserBySession(ctx context.Context, sessionID string) (*User, error)
	DeleteSession(ctx context.Context, sessionID string) error

	Stats(ctx context.Context) (*Stats, error)
	PurgeAll(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements for the hot paths
	insertEvent     *sql.Stmt
	listEvents      *sql.Stmt
	lastEventBefore *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEvent, err = s.db.Prepare(`
		INSERT INTO events (user_id, ts, app)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	// Insertion order, not timestamp order. The segmentation engine sorts
	// for itself and must not assume sorted input.
	s.listEvents, err = s.db.Prepare(`
		SELECT id, user_id, ts, app FROM events
		WHERE user_id = ? AND ts >= ? AND ts < ?
		ORDER BY id
	`)
	if err != nil {
		return err
	}

	s.lastEventBefore, err = s.db.Prepare(`
		SELECT id, user_id, ts, app FROM events
		WHERE user_id = ? AND ts < ?
		ORDER BY ts DESC, id DESC LIMIT 1
	`)
	if err != nil {
		return err
	}

	return nil
}

// AppendEvent appends an event to the user's log. The event's ID is
// populated on return. A zero timestamp is filled with the current time.
// Duplicates are permitted and stored as-is.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	if event.UserID == "" {
		return fmt.Errorf("append event: user id is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	res, err := s.insertEvent.ExecContext(ctx,
		event.UserID, event.Timestamp.UnixMilli(), event.App,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	event.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	return nil
}

// ListEvents returns the user's events with from <= ts < to, in insertion
// order.
func (s *SQLiteStore) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]Event, error) {
	rows, err := s.listEvents.QueryContext(ctx, userID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastEventBefore returns the newest event strictly before the given
// instant, or nil when the user has none. It supplies the carry-over
// state for day reconstruction.
func (s *SQLiteStore) LastEventBefore(ctx context.Context, userID string, before time.Time) (*Event, error) {
	var e Event
	var ms int64
	err := s.lastEventBefore.QueryRowContext(ctx, userID, before.UnixMilli()).Scan(
		&e.ID, &e.UserID, &ms, &e.App,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last event before: %w", err)
	}
	e.Timestamp = time.UnixMilli(ms).UTC()
	return &e, nil
}

// DeleteEvents removes all of one user's events. Development-only
// operation; the log is otherwise immutable.
func (s *SQLiteStore) DeleteEvents(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return res.RowsAffected()
}

// ListApps returns the distinct app names seen in the user's log, most
// frequent first. The idle sentinel is not an app and is excluded.
func (s *SQLiteStore) ListApps(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app FROM events
		WHERE user_id = ? AND app != ''
		GROUP BY app ORDER BY COUNT(*) DESC, app
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	apps := []string{}
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// TargetApps returns the user's current target-app selection.
func (s *SQLiteStore) TargetApps(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT app FROM target_apps WHERE user_id = ? ORDER BY app", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("target apps: %w", err)
	}
	defer rows.Close()

	apps := []string{}
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, fmt.Errorf("scan target app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// SetTargetApp adds or removes one app from the user's target selection.
// Last writer wins; repeated writes are idempotent.
func (s *SQLiteStore) SetTargetApp(ctx context.Context, userID, app string, selected bool) error {
	var err error
	if selected {
		_, err = s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO target_apps (user_id, app) VALUES (?, ?)",
			userID, app,
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			"DELETE FROM target_apps WHERE user_id = ? AND app = ?",
			userID, app,
		)
	}
	if err != nil {
		return fmt.Errorf("set target app: %w", err)
	}
	return nil
}

// EnsureUser returns the user with the given email, creating the account
// (with fresh ID and API token) on first sight.
func (s *SQLiteStore) EnsureUser(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("ensure user: email is required")
	}

	u, err := s.UserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u = &User{
		ID:       uuid.NewString(),
		Email:    email,
		APIToken: uuid.NewString(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, api_token) VALUES (?, ?, ?)",
		u.ID, u.Email, u.APIToken,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UserByEmail looks up a user by email address.
func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.userWhere(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// UserByAPIToken authenticates an ingestion request's bearer token.
func (s *SQLiteStore) UserByAPIToken(ctx context.Context, token string) (*User, error) {
	return s.userWhere(ctx, "api_token = ?", token)
}

func (s *SQLiteStore) userWhere(ctx context.Context, where string, arg interface{}) (*User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, api_token, created_at FROM users WHERE "+where, arg,
	).Scan(&u.ID, &u.Email, &u.APIToken, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt, _ = parseTimestamp(created)
	return &u, nil
}

// CreateLoginToken issues a single-use magic-link token for the email,
// valid for ttl.
func (s *SQLiteStore) CreateLoginToken(ctx context.Context, email string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	expires := time.Now().Add(ttl).UnixMilli()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO login_tokens (token, email, expires_at) VALUES (?, ?, ?)",
		token, strings.ToLower(strings.TrimSpace(email)), expires,
	)
	if err != nil {
		return "", fmt.Errorf("create login token: %w", err)
	}
	return token, nil
}

// ConsumeLoginToken redeems a magic-link token and returns its email.
// Tokens are single use: the row is deleted on redemption. Expired or
// unknown tokens return ErrNotFound.
func (s *SQLiteStore) ConsumeLoginToken(ctx context.Context, token string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var email string
	var expires int64
	err = tx.QueryRowContext(ctx,
		"SELECT email, expires_at FROM login_tokens WHERE token = ?", token,
	).Scan(&email, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("login token: %w", ErrNotFound)
		}
		return "", fmt.Errorf("get login token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM login_tokens WHERE token = ?", token,
	); err != nil {
		return "", fmt.Errorf("delete login token: %w", err)
	}

	if time.Now().UnixMilli() >= expires {
		// Burn the expired token, then report it invalid.
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("login token expired: %w", ErrNotFound)
	}

	return email, tx.Commit()
}

// CreateSession opens a cookie session for the user, valid for ttl.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	expires := time.Now().Add(ttl).UnixMilli()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		id, userID, expires,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// UserBySession resolves a session cookie to its user. Expired or unknown
// sessions return ErrNotFound.
func (s *SQLiteStore) UserBySession(ctx context.Context, sessionID string) (*User, error) {
	var userID string
	var expires int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE id = ?", sessionID,
	).Scan(&userID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if time.Now().UnixMilli() >= expires {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
		return nil, fmt.Errorf("session expired: %w", ErrNotFound)
	}

	return s.userWhere(ctx, "id = ?", userID)
}

// DeleteSession logs a session out. Deleting an unknown session is not an
// error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Stats returns aggregate statistics about the database.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	if stats.TotalEvents > 0 {
		var oldest, newest int64
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM events").Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		stats.OldestEvent = time.UnixMilli(oldest).UTC()
		stats.NewestEvent = time.UnixMilli(newest).UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT app, COUNT(*) AS cnt FROM events
		WHERE app != ''
		GROUP BY app ORDER BY cnt DESC LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top apps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ac AppCount
		if err := rows.Scan(&ac.App, &ac.Count); err != nil {
			return nil, err
		}
		stats.TopApps = append(stats.TopApps, ac)
	}

	return stats, rows.Err()
}

// PurgeAll deletes all nagi data.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM events",
		"DELETE FROM target_apps",
		"DELETE FROM login_tokens",
		"DELETE FROM sessions",
		"DELETE FROM users",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed — that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertEvent, s.listEvents, s.lastEventBefore}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

// scanEvents reads event rows into a slice, converting stored Unix
// milliseconds back into instants.
func scanEvents(rows *sql.Rows) ([]Event, error) {
	events := []Event{}
	for rows.Next() {
		var e Event
		var ms int64
		if err := rows.Scan(&e.ID, &e.UserID, &ms, &e.App); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ms).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// parseTimestamp tries the common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
