package segment

import "math"

// Totals holds the stone/wave minute sums for one computed day. For a
// non-empty target selection they add up to the day's clip minute.
type Totals struct {
	StoneMinutes float64 `json:"stone_minutes"`
	WaveMinutes  float64 `json:"wave_minutes"`
}

// Aggregate sums segment durations by kind.
func Aggregate(segments []Segment) Totals {
	var t Totals
	for _, s := range segments {
		switch s.Kind {
		case Stone:
			t.StoneMinutes += s.Duration()
		case Wave:
			t.WaveMinutes += s.Duration()
		}
	}
	return t
}

// DotCounts quantizes totals into fixed-size display dots of unit minutes
// each, rounding half up. A display-only statistic; unit must be positive.
func DotCounts(t Totals, unit int) (stone, wave int) {
	if unit <= 0 {
		return 0, 0
	}
	stone = int(math.Round(t.StoneMinutes / float64(unit)))
	wave = int(math.Round(t.WaveMinutes / float64(unit)))
	return stone, wave
}
