package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagi-app/nagi/internal/config"
	"github.com/nagi-app/nagi/internal/segment"
	"github.com/nagi-app/nagi/internal/storage"
)

// dayNow is well after the test dates, so they render as full past days.
var dayNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func seedDay(t *testing.T, store *storage.SQLiteStore) *storage.User {
	t.Helper()
	ctx := context.Background()

	user, err := store.EnsureUser(ctx, "me@example.com")
	require.NoError(t, err)
	require.NoError(t, store.SetTargetApp(ctx, user.ID, "Chat", true))

	// 2025-07-14 at UTC+9 starts at 2025-07-13 15:00 UTC.
	dayStart := time.Date(2025, 7, 13, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendEvent(ctx, &storage.Event{
		UserID: user.ID, Timestamp: dayStart.Add(9 * time.Hour), App: "Chat",
	}))
	require.NoError(t, store.AppendEvent(ctx, &storage.Event{
		UserID: user.ID, Timestamp: dayStart.Add(11 * time.Hour), App: "",
	}))
	return user
}

func TestDayCommand_HumanOutput(t *testing.T) {
	store, _ := testStore(t)
	seedDay(t, store)

	cmd := &DayCommand{
		User:    "me@example.com",
		Date:    "2025-07-14",
		Unit:    30,
		globals: &GlobalFlags{},
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, config.DefaultConfig(), dayNow))
	})

	assert.Contains(t, output, "2025-07-14")
	assert.Contains(t, output, "Targets: Chat")
	assert.Contains(t, output, "09:00-11:00  stone")
	assert.Contains(t, output, "Chat")
	assert.Contains(t, output, "Stone: 2h 0m   Wave: 22h 0m")
	assert.Contains(t, output, "Dots (30m): stone 4, wave 44")
}

func TestDayCommand_JSONOutput(t *testing.T) {
	store, _ := testStore(t)
	seedDay(t, store)

	cmd := &DayCommand{
		User:    "me@example.com",
		Date:    "2025-07-14",
		Unit:    30,
		globals: &GlobalFlags{JSON: true},
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, config.DefaultConfig(), dayNow))
	})

	assert.Contains(t, output, `"date": "2025-07-14"`)
	assert.Contains(t, output, `"clip_minute": 1440`)
	assert.Contains(t, output, `"stone"`)
}

func TestDayCommand_NoTargets(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.EnsureUser(context.Background(), "me@example.com")
	require.NoError(t, err)

	cmd := &DayCommand{
		User:    "me@example.com",
		Date:    "2025-07-14",
		Unit:    30,
		globals: &GlobalFlags{},
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, config.DefaultConfig(), dayNow))
	})
	assert.Contains(t, output, "No target apps selected")
}

func TestDayCommand_UnknownUser(t *testing.T) {
	store, _ := testStore(t)

	cmd := &DayCommand{
		User:    "nobody@example.com",
		Date:    "2025-07-14",
		globals: &GlobalFlags{},
	}

	err := cmd.executeWithStore(store, config.DefaultConfig(), dayNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account for nobody@example.com")
}

func TestDayCommand_InvalidDate(t *testing.T) {
	store, _ := testStore(t)
	seedDay(t, store)

	cmd := &DayCommand{
		User:    "me@example.com",
		Date:    "14.07.2025",
		globals: &GlobalFlags{},
	}

	err := cmd.executeWithStore(store, config.DefaultConfig(), dayNow)
	assert.Error(t, err)
}

func TestDayCommand_DefaultsToToday(t *testing.T) {
	store, _ := testStore(t)
	seedDay(t, store)

	cmd := &DayCommand{
		User:    "me@example.com",
		Unit:    30,
		globals: &GlobalFlags{},
	}

	// 03:30 UTC on the 14th is 12:30 on the 14th at UTC+9.
	now := time.Date(2025, 7, 14, 3, 30, 0, 0, time.UTC)
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, config.DefaultConfig(), now))
	})
	assert.Contains(t, output, "2025-07-14")
	assert.Contains(t, output, "(up to 12:30)")
}

func TestRenderDayBar(t *testing.T) {
	segments := []segment.Segment{
		{Start: 0, End: 720, Kind: segment.Wave},
		{Start: 720, End: 1440, Kind: segment.Stone, App: "Chat"},
	}

	bar := renderDayBar(segments, 1440)
	require.Len(t, bar, timelineWidth+2)
	assert.Equal(t, strings.Repeat("~", 24), bar[1:25])
	assert.Equal(t, strings.Repeat("#", 24), bar[25:49])
}

func TestRenderDayBar_ClippedDay(t *testing.T) {
	segments := []segment.Segment{
		{Start: 0, End: 720, Kind: segment.Wave},
	}

	bar := renderDayBar(segments, 720)
	assert.Equal(t, strings.Repeat("~", 24), bar[1:25])
	assert.Equal(t, strings.Repeat(" ", 24), bar[25:49])
}
