// Package timeday resolves calendar-day windows in a fixed civil timezone
// offset. The offset is configuration, never the process-local zone, so the
// same (date, now) pair always yields the same answer on any host.
package timeday

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used throughout nagi.
const DateLayout = "2006-01-02"

// MinutesPerDay is the length of a day window in minutes.
const MinutesPerDay = 1440

// Resolver computes day boundaries and clip minutes at a fixed UTC offset.
type Resolver struct {
	loc *time.Location
}

// NewResolver builds a Resolver for a fixed UTC offset given in minutes,
// e.g. 540 for UTC+9.
func NewResolver(offsetMinutes int) Resolver {
	sign, m := "+", offsetMinutes
	if m < 0 {
		sign, m = "-", -m
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, m/60, m%60)
	return Resolver{loc: time.FixedZone(name, offsetMinutes*60)}
}

// Location returns the fixed-offset location.
func (r Resolver) Location() *time.Location {
	return r.loc
}

// DayStart returns the instant of 00:00:00 on the given date at the
// resolver's offset.
func (r Resolver) DayStart(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// Today formats now as a calendar date at the resolver's offset.
func (r Resolver) Today(now time.Time) string {
	return now.In(r.loc).Format(DateLayout)
}

// ClipMinute returns the minute-of-day bound past which no interval may be
// drawn for the given date: a full day for past dates, zero for future
// dates, and minutes elapsed since local midnight for today. Seconds are
// truncated; the clip only ever moves in whole minutes.
func (r Resolver) ClipMinute(date string, now time.Time) (float64, error) {
	if _, err := r.DayStart(date); err != nil {
		return 0, err
	}

	today := r.Today(now)
	switch {
	case date < today:
		return MinutesPerDay, nil
	case date > today:
		return 0, nil
	}

	local := now.In(r.loc)
	return float64(local.Hour()*60 + local.Minute()), nil
}
