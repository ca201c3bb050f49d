// Package timeline assembles per-day views: it reads a user's event log
// and target selection from storage, runs the segmentation engine and
// aggregator, and returns the result ready for rendering. All
// segmentation logic lives in internal/segment; this package only wires
// the data flow together.
package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/nagi-app/nagi/internal/segment"
	"github.com/nagi-app/nagi/internal/storage"
	"github.com/nagi-app/nagi/internal/timeday"
)

// DotRow is the dot-bucket quantization of one day's totals at one unit.
type DotRow struct {
	Unit  int `json:"unit"`
	Stone int `json:"stone"`
	Wave  int `json:"wave"`
}

// DayView is the complete reconstruction of one calendar day.
type DayView struct {
	Date       string            `json:"date"`
	ClipMinute float64           `json:"clip_minute"`
	TargetApps []string          `json:"target_apps"`
	Segments   []segment.Segment `json:"segments"`
	Totals     segment.Totals    `json:"totals"`
	Dots       []DotRow          `json:"dots"`
}

// Service builds DayViews from the event log store.
type Service struct {
	store    storage.Store
	days     timeday.Resolver
	dotUnits []int
}

// NewService creates a Service. dotUnits are the configured dot-bucket
// sizes in minutes, e.g. {60, 30, 10, 1}.
func NewService(store storage.Store, days timeday.Resolver, dotUnits []int) *Service {
	return &Service{store: store, days: days, dotUnits: dotUnits}
}

// Resolver exposes the day-window resolver the service was built with.
func (s *Service) Resolver() timeday.Resolver {
	return s.days
}

// Day reconstructs the given calendar date for the user as of now.
// Storage faults are returned wrapped and are retryable by the caller;
// an empty target selection is not an error and yields no segments.
func (s *Service) Day(ctx context.Context, userID, date string, now time.Time) (*DayView, error) {
	dayStart, err := s.days.DayStart(date)
	if err != nil {
		return nil, err
	}
	clip, err := s.days.ClipMinute(date, now)
	if err != nil {
		return nil, err
	}

	targets, err := s.store.TargetApps(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read target apps: %w", err)
	}

	stored, err := s.store.ListEvents(ctx, userID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	carry, err := s.store.LastEventBefore(ctx, userID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("read carry-over event: %w", err)
	}

	events := make([]segment.Event, len(stored))
	for i, e := range stored {
		events[i] = segment.Event{Timestamp: e.Timestamp, App: e.App}
	}
	var carryOver *segment.Event
	if carry != nil {
		carryOver = &segment.Event{Timestamp: carry.Timestamp, App: carry.App}
	}

	segments := segment.Compute(events, targets, dayStart, clip, carryOver)
	totals := segment.Aggregate(segments)

	view := &DayView{
		Date:       date,
		ClipMinute: clip,
		TargetApps: targets,
		Segments:   segments,
		Totals:     totals,
		Dots:       make([]DotRow, 0, len(s.dotUnits)),
	}
	for _, unit := range s.dotUnits {
		stone, wave := segment.DotCounts(totals, unit)
		view.Dots = append(view.Dots, DotRow{Unit: unit, Stone: stone, Wave: wave})
	}
	return view, nil
}
