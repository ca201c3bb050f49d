package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nagi-app/nagi/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.User == "" {
		return fmt.Errorf("--user is required for add command")
	}

	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	store, db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()
	defer db.Close()

	return c.executeWithStore(store)
}

// executeWithStore runs the add logic against a provided store (used by tests).
func (c *AddCommand) executeWithStore(store *storage.SQLiteStore) error {
	ts := time.Now()
	if c.At != "" {
		parsed, err := time.Parse(time.RFC3339, c.At)
		if err != nil {
			return fmt.Errorf("invalid --at time %q: use RFC 3339, e.g. 2025-07-14T09:30:00+09:00", c.At)
		}
		ts = parsed
	}

	ctx := context.Background()

	user, err := store.EnsureUser(ctx, c.User)
	if err != nil {
		return fmt.Errorf("resolving account: %w", err)
	}

	app := strings.TrimSpace(c.App)
	event := &storage.Event{
		UserID:    user.ID,
		Timestamp: ts,
		App:       app,
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("storing event: %w", err)
	}

	if c.globals.JSON {
		out := map[string]interface{}{
			"id":   event.ID,
			"user": user.Email,
			"app":  app,
			"ts":   ts.Format(time.RFC3339),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	label := app
	if label == "" {
		label = "(idle)"
	}
	fmt.Printf("Recorded %s for %s at %s\n", label, user.Email, ts.Format(time.RFC3339))
	return nil
}
