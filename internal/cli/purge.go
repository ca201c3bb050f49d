package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nagi-app/nagi/internal/storage"
)

// setDB allows tests to inject a database connection.
func (c *PurgeCommand) setDB(db *sql.DB) {
	c.db = db
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All && c.User == "" {
		return fmt.Errorf("purge requires --all or --user for safety")
	}
	if c.All && c.User != "" {
		return fmt.Errorf("--all and --user are mutually exclusive")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		if c.All {
			fmt.Println("⚠ WARNING: This will permanently delete ALL nagi data.")
			fmt.Println("  - All accounts and sessions")
			fmt.Println("  - All app-activation events")
			fmt.Println("  - All target selections")
		} else {
			fmt.Printf("⚠ WARNING: This will permanently delete all events for %s.\n", c.User)
		}
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	// Open or use injected DB
	db := c.db
	if db == nil {
		cfg, err := loadConfig(c.globals)
		if err != nil {
			return err
		}
		dbPath, err := cfg.DatabasePath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
		db, err = sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		runner := storage.NewMigrationRunner(db)
		if err := runner.Run(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if c.All {
		if err := store.PurgeAll(ctx); err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		if c.globals.JSON {
			out := map[string]interface{}{"purged": true, "message": "all data deleted"}
			return json.NewEncoder(os.Stdout).Encode(out)
		}
		fmt.Println("Purged all data. Nagi is empty.")
		return nil
	}

	user, err := store.UserByEmail(ctx, c.User)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no account for %s", c.User)
		}
		return err
	}
	deleted, err := store.DeleteEvents(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals.JSON {
		out := map[string]interface{}{"purged": true, "user": user.Email, "events_deleted": deleted}
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	fmt.Printf("Deleted %d events for %s.\n", deleted, user.Email)
	return nil
}
