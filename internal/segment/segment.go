package segment

import (
	"math"
	"sort"
	"time"
)

// Kind classifies a segment of the day.
type Kind string

const (
	// Stone marks time bound by a target app: a target app was the most
	// recently foregrounded app during the interval.
	Stone Kind = "stone"
	// Wave marks free time: no target app was foregrounded.
	Wave Kind = "wave"
)

// UnknownApp labels a stone segment whose establishing app name is not
// available, e.g. when the state was seeded from a carry-over event that
// recorded the idle sentinel.
const UnknownApp = "Unknown"

// MinutesPerDay is the length of the day window in minutes.
const MinutesPerDay = 1440

// Event is a single "app became active" record. An empty App means the
// user returned to the home/idle surface with no app foregrounded.
type Event struct {
	Timestamp time.Time `json:"ts"`
	App       string    `json:"app"`
}

// Segment is one interval of the reconstructed day. Start and End are
// minutes since local midnight; App is set only on stone segments and
// names the app that established the stone state.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Kind  Kind    `json:"kind"`
	App   string  `json:"app,omitempty"`
}

// Duration returns the segment length in minutes.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Compute partitions [0, clipMinute) of the day beginning at dayStart into
// stone and wave segments, given the day's events and the viewer's target
// app selection.
//
// Events may arrive unsorted; they are sorted by timestamp here, stably,
// so equal timestamps keep their input order and the last one processed
// determines the state that follows. carryOver is the final event of the
// previous day and seeds the state at minute 0: an app left running at
// yesterday's end is still running until the first event of this day. A
// nil carryOver seeds wave.
//
// An empty target selection returns nil: without a selection there is no
// meaningful partition. Otherwise the output is a total partition of
// [0, clipMinute): segments are contiguous, in increasing order, and no
// two adjacent segments share a kind.
//
// The function is total over its inputs. Events before dayStart or past
// clipMinute never produce visible intervals but still advance the state,
// so the first visible segment reflects them.
func Compute(events []Event, targetApps []string, dayStart time.Time, clipMinute float64, carryOver *Event) []Segment {
	if len(targetApps) == 0 {
		return nil
	}

	targets := make(map[string]bool, len(targetApps))
	for _, app := range targetApps {
		targets[app] = true
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	stoneActive := false
	stoneApp := UnknownApp
	if carryOver != nil {
		stoneActive = targets[carryOver.App]
		stoneApp = labelFor(carryOver.App)
	}

	var candidates []Segment
	lastMinute := 0.0

	for _, ev := range sorted {
		minute := ev.Timestamp.Sub(dayStart).Minutes()

		start := math.Max(0, lastMinute)
		end := math.Min(minute, clipMinute)
		if end > start {
			candidates = append(candidates, newCandidate(start, end, stoneActive, stoneApp))
		}

		// State advances even when nothing was emitted and even past
		// the clip; only emission stops at clipMinute.
		stoneActive = targets[ev.App]
		stoneApp = labelFor(ev.App)
		lastMinute = minute
	}

	if start := math.Max(0, lastMinute); start < clipMinute {
		candidates = append(candidates, newCandidate(start, clipMinute, stoneActive, stoneApp))
	}

	return mergeAdjacent(candidates)
}

func newCandidate(start, end float64, stoneActive bool, stoneApp string) Segment {
	if stoneActive {
		return Segment{Start: start, End: end, Kind: Stone, App: stoneApp}
	}
	return Segment{Start: start, End: end, Kind: Wave}
}

func labelFor(app string) string {
	if app == "" {
		return UnknownApp
	}
	return app
}

// mergeAdjacent folds consecutive same-kind candidates into one segment by
// extending the end boundary. The no-adjacent-same-kind output invariant
// lives here, independent of how candidates were produced.
func mergeAdjacent(in []Segment) []Segment {
	var out []Segment
	for _, s := range in {
		if n := len(out); n > 0 && out[n-1].Kind == s.Kind {
			out[n-1].End = s.End
			continue
		}
		out = append(out, s)
	}
	return out
}
