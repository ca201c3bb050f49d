package cli

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nagi-app/nagi/internal/config"
	"github.com/nagi-app/nagi/internal/storage"
)

// loadConfig resolves the config for a command: an explicit --config path
// must exist; otherwise the default config is loaded, created on first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// openStore opens the configured SQLite database, runs migrations, and
// returns a ready-to-use store and the underlying *sql.DB.
func openStore(cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}

	return store, db, nil
}

// formatMinutes formats a minute count like "2h 30m". Fractions round to
// the nearest whole minute for display.
func formatMinutes(min float64) string {
	total := int(math.Round(min))
	h := total / 60
	m := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// minuteClock formats a minute-of-day as a wall clock reading like "09:30".
func minuteClock(min float64) string {
	total := int(math.Floor(min))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
