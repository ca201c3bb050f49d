package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nagi-app/nagi/internal/config"
	"github.com/nagi-app/nagi/internal/segment"
	"github.com/nagi-app/nagi/internal/storage"
	"github.com/nagi-app/nagi/internal/timeday"
	"github.com/nagi-app/nagi/internal/timeline"
)

// timelineWidth is the cell count of the ASCII day bar; 48 cells of 30
// minutes each cover a full day.
const timelineWidth = 48

// Execute implements the go-flags Commander interface for DayCommand.
func (c *DayCommand) Execute(args []string) error {
	if c.User == "" {
		return fmt.Errorf("--user is required for day command")
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

	return c.executeWithStore(store, cfg, time.Now())
}

// executeWithStore runs the day logic against a provided store (used by tests).
func (c *DayCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config, now time.Time) error {
	ctx := context.Background()

	user, err := store.UserByEmail(ctx, c.User)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no account for %s", c.User)
		}
		return err
	}

	svc := timeline.NewService(store, timeday.NewResolver(cfg.Time.UTCOffsetMinutes), cfg.Display.DotUnits)

	date := c.Date
	if date == "" {
		date = svc.Resolver().Today(now)
	}

	view, err := svc.Day(ctx, user.ID, date, now)
	if err != nil {
		return err
	}

	if c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return c.printDayHuman(view)
}

func (c *DayCommand) printDayHuman(view *timeline.DayView) error {
	fmt.Printf("%s", view.Date)
	if view.ClipMinute < timeday.MinutesPerDay {
		fmt.Printf("  (up to %s)", minuteClock(view.ClipMinute))
	}
	fmt.Println()

	if len(view.TargetApps) == 0 {
		fmt.Println("No target apps selected. Run `nagi apps --toggle <app>` to pick some.")
		return nil
	}
	fmt.Printf("Targets: %s\n", strings.Join(view.TargetApps, ", "))
	fmt.Println()

	fmt.Println(renderDayBar(view.Segments, view.ClipMinute))
	fmt.Println()

	for _, s := range view.Segments {
		label := ""
		if s.Kind == segment.Stone {
			label = "  " + s.App
		}
		fmt.Printf("  %s-%s  %-5s %8s%s\n",
			minuteClock(s.Start), minuteClock(s.End), string(s.Kind), formatMinutes(s.Duration()), label)
	}
	fmt.Println()

	fmt.Printf("Stone: %s   Wave: %s\n",
		formatMinutes(view.Totals.StoneMinutes), formatMinutes(view.Totals.WaveMinutes))

	for _, row := range view.Dots {
		if row.Unit == c.Unit {
			fmt.Printf("Dots (%dm): stone %d, wave %d\n", row.Unit, row.Stone, row.Wave)
		}
	}
	return nil
}

// renderDayBar draws the day as one fixed-width line: '#' where the cell
// midpoint falls in a stone segment, '~' in a wave, ' ' past the clip.
func renderDayBar(segments []segment.Segment, clip float64) string {
	var b strings.Builder
	cell := float64(timeday.MinutesPerDay) / timelineWidth
	for i := 0; i < timelineWidth; i++ {
		mid := (float64(i) + 0.5) * cell
		if mid >= clip {
			b.WriteByte(' ')
			continue
		}
		ch := byte('~')
		for _, s := range segments {
			if mid >= s.Start && mid < s.End {
				if s.Kind == segment.Stone {
					ch = '#'
				}
				break
			}
		}
		b.WriteByte(ch)
	}
	return "[" + b.String() + "]"
}
