package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nagi-app/nagi/internal/storage"
)

// Execute implements the go-flags Commander interface for AppsCommand.
func (c *AppsCommand) Execute(args []string) error {
	if c.User == "" {
		return fmt.Errorf("--user is required for apps command")
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

// executeWithStore runs the apps logic against a provided store (used by tests).
func (c *AppsCommand) executeWithStore(store *storage.SQLiteStore) error {
	ctx := context.Background()

	user, err := store.UserByEmail(ctx, c.User)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no account for %s", c.User)
		}
		return err
	}

	if c.Toggle != "" {
		return c.toggle(ctx, store, user.ID)
	}
	return c.list(ctx, store, user.ID)
}

func (c *AppsCommand) toggle(ctx context.Context, store *storage.SQLiteStore, userID string) error {
	app := strings.TrimSpace(c.Toggle)

	targets, err := store.TargetApps(ctx, userID)
	if err != nil {
		return fmt.Errorf("read selection: %w", err)
	}
	selected := false
	for _, t := range targets {
		if t == app {
			selected = true
			break
		}
	}

	if err := store.SetTargetApp(ctx, userID, app, !selected); err != nil {
		return fmt.Errorf("update selection: %w", err)
	}

	if c.globals.JSON {
		out := map[string]interface{}{"app": app, "selected": !selected}
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	if selected {
		fmt.Printf("Removed %s from targets\n", app)
	} else {
		fmt.Printf("Added %s to targets\n", app)
	}
	return nil
}

func (c *AppsCommand) list(ctx context.Context, store *storage.SQLiteStore, userID string) error {
	apps, err := store.ListApps(ctx, userID)
	if err != nil {
		return fmt.Errorf("list apps: %w", err)
	}
	targets, err := store.TargetApps(ctx, userID)
	if err != nil {
		return fmt.Errorf("read selection: %w", err)
	}
	selected := make(map[string]bool, len(targets))
	for _, t := range targets {
		selected[t] = true
	}

	if c.globals.JSON {
		type entry struct {
			App      string `json:"app"`
			Selected bool   `json:"selected"`
		}
		out := make([]entry, len(apps))
		for i, app := range apps {
			out[i] = entry{App: app, Selected: selected[app]}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(apps) == 0 {
		fmt.Println("No apps seen yet.")
		return nil
	}
	for _, app := range apps {
		mark := " "
		if selected[app] {
			mark = "x"
		}
		fmt.Printf("  [%s] %s\n", mark, app)
	}
	return nil
}
