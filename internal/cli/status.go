package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nagi-app/nagi/internal/config"
	"github.com/nagi-app/nagi/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string         `json:"version"`
	DatabasePath      string         `json:"database_path"`
	DatabaseSizeBytes int64          `json:"database_size_bytes"`
	TotalEvents       int64          `json:"total_events"`
	TotalUsers        int64          `json:"total_users"`
	OldestEvent       string         `json:"oldest_event,omitempty"`
	NewestEvent       string         `json:"newest_event,omitempty"`
	UTCOffsetMinutes  int            `json:"utc_offset_minutes"`
	TopApps           []appCountJSON `json:"top_apps"`
	DaemonRunning     bool           `json:"daemon_running"`
}

type appCountJSON struct {
	App   string `json:"app"`
	Count int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, db, cfg)
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store *storage.SQLiteStore, db *sql.DB, cfg *config.Config) error {
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	dbSize := getDatabaseSize(db, dbPath)

	daemonRunning := checkDaemon(cfg.Daemon.BaseURL)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, cfg, dbPath, dbSize, daemonRunning)
	}
	return c.printStatusHuman(stats, cfg, dbPath, dbSize, daemonRunning)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, cfg *config.Config, dbPath string, dbSize int64, daemonRunning bool) error {
	fmt.Println("Nagi Status")
	fmt.Println("===========")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Events:        %s\n", formatNumber(stats.TotalEvents))
	fmt.Printf("Accounts:      %s\n", formatNumber(stats.TotalUsers))

	if stats.TotalEvents > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestEvent.UTC().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestEvent.UTC().Format("2006-01-02"))
	}

	fmt.Printf("Day offset:    UTC%+dmin\n", cfg.Time.UTCOffsetMinutes)

	if len(stats.TopApps) > 0 {
		fmt.Println()
		fmt.Println("Top Apps:")
		for _, a := range stats.TopApps {
			fmt.Printf("  %-20s %s\n", a.App, formatNumber(a.Count))
		}
	}

	fmt.Println()
	if daemonRunning {
		fmt.Println("Daemon:        running")
	} else {
		fmt.Println("Daemon:        not running")
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, cfg *config.Config, dbPath string, dbSize int64, daemonRunning bool) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalEvents:       stats.TotalEvents,
		TotalUsers:        stats.TotalUsers,
		UTCOffsetMinutes:  cfg.Time.UTCOffsetMinutes,
		TopApps:           make([]appCountJSON, len(stats.TopApps)),
		DaemonRunning:     daemonRunning,
	}

	if stats.TotalEvents > 0 {
		out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339)
	}

	for i, a := range stats.TopApps {
		out.TopApps[i] = appCountJSON{App: a.App, Count: a.Count}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// checkDaemon attempts an HTTP GET to the daemon's status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(baseURL string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
