package storage

import "time"

// Event is a single "app became active" record in a user's log. An empty
// App means the user returned to the home/idle surface. Events are
// append-only and never mutated; duplicates are permitted.
type Event struct {
	ID        int64
	UserID    string
	Timestamp time.Time
	App       string
}

// User is an account record. APIToken authenticates the ingestion
// endpoint; the ID keys all per-user data.
type User struct {
	ID        string
	Email     string
	APIToken  string
	CreatedAt time.Time
}

// Stats holds aggregate statistics about the nagi database.
type Stats struct {
	TotalEvents int64
	TotalUsers  int64
	OldestEvent time.Time
	NewestEvent time.Time
	TopApps     []AppCount
}

// AppCount pairs an app name with its event count.
type AppCount struct {
	App   string
	Count int64
}
