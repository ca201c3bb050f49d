package timeline

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagi-app/nagi/internal/segment"
	"github.com/nagi-app/nagi/internal/storage"
	"github.com/nagi-app/nagi/internal/timeday"
)

func newTestService(t *testing.T) (*Service, *storage.SQLiteStore) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewService(store, timeday.NewResolver(540), []int{60, 30, 10, 1}), store
}

func seedUser(t *testing.T, store *storage.SQLiteStore) *storage.User {
	t.Helper()
	u, err := store.EnsureUser(context.Background(), "viewer@example.com")
	require.NoError(t, err)
	return u
}

// now is well after the test date, so every test day is a full past day
// unless stated otherwise.
var now = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func TestDay_FullReconstruction(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store)

	dayStart, err := svc.Resolver().DayStart("2025-07-14")
	require.NoError(t, err)

	require.NoError(t, store.SetTargetApp(ctx, u.ID, "Chat", true))
	require.NoError(t, store.AppendEvent(ctx, &storage.Event{
		UserID: u.ID, Timestamp: dayStart.Add(60 * time.Minute), App: "Chat",
	}))
	require.NoError(t, store.AppendEvent(ctx, &storage.Event{
		UserID: u.ID, Timestamp: dayStart.Add(120 * time.Minute), App: "",
	}))

	view, err := svc.Day(ctx, u.ID, "2025-07-14", now)
	require.NoError(t, err)

	assert.Equal(t, "2025-07-14", view.Date)
	assert.Equal(t, 1440.0, view.ClipMinute)
	assert.Equal(t, []string{"Chat"}, view.TargetApps)

	require.Len(t, view.Segments, 3)
	assert.Equal(t, segment.Segment{Start: 60, End: 120, Kind: segment.Stone, App: "Chat"}, view.Segments[1])

	assert.Equal(t, 60.0, view.Totals.StoneMinutes)
	assert.Equal(t, 1380.0, view.Totals.WaveMinutes)

	require.Len(t, view.Dots, 4)
	assert.Equal(t, DotRow{Unit: 60, Stone: 1, Wave: 23}, view.Dots[0])
	assert.Equal(t, DotRow{Unit: 1, Stone: 60, Wave: 1380}, view.Dots[3])
}

func TestDay_NoTargetSelection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store)

	require.NoError(t, store.AppendEvent(ctx, &storage.Event{UserID: u.ID, App: "Chat"}))

	view, err := svc.Day(ctx, u.ID, "2025-07-14", now)
	require.NoError(t, err)

	assert.Empty(t, view.Segments, "no selection means no partition")
	assert.Equal(t, segment.Totals{}, view.Totals)
}

func TestDay_CarryOverFromPreviousDay(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store)

	dayStart, err := svc.Resolver().DayStart("2025-07-14")
	require.NoError(t, err)

	require.NoError(t, store.SetTargetApp(ctx, u.ID, "Chat", true))
	// Last event of the previous evening opened a target app.
	require.NoError(t, store.AppendEvent(ctx, &storage.Event{
		UserID: u.ID, Timestamp: dayStart.Add(-2 * time.Hour), App: "Chat",
	}))

	view, err := svc.Day(ctx, u.ID, "2025-07-14", now)
	require.NoError(t, err)

	require.Len(t, view.Segments, 1)
	assert.Equal(t, segment.Segment{Start: 0, End: 1440, Kind: segment.Stone, App: "Chat"}, view.Segments[0])
}

func TestDay_TodayClipsAtNow(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store)

	require.NoError(t, store.SetTargetApp(ctx, u.ID, "Chat", true))

	// 03:30 UTC = 12:30 at UTC+9, on the date under view.
	today := time.Date(2025, 7, 14, 3, 30, 0, 0, time.UTC)

	view, err := svc.Day(ctx, u.ID, "2025-07-14", today)
	require.NoError(t, err)

	assert.Equal(t, 750.0, view.ClipMinute)
	require.Len(t, view.Segments, 1)
	assert.Equal(t, 750.0, view.Segments[len(view.Segments)-1].End)
}

func TestDay_FutureDate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store)

	require.NoError(t, store.SetTargetApp(ctx, u.ID, "Chat", true))

	view, err := svc.Day(ctx, u.ID, "2025-12-31", now)
	require.NoError(t, err)

	assert.Equal(t, 0.0, view.ClipMinute)
	assert.Empty(t, view.Segments)
}

func TestDay_InvalidDate(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store)

	_, err := svc.Day(context.Background(), u.ID, "july 14th", now)
	assert.Error(t, err)
}

func TestDay_IgnoresOtherDaysEvents(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store)

	dayStart, err := svc.Resolver().DayStart("2025-07-14")
	require.NoError(t, err)

	require.NoError(t, store.SetTargetApp(ctx, u.ID, "Chat", true))
	// An event on the next day must not leak into the 14th; it is also
	// not a carry-over candidate.
	require.NoError(t, store.AppendEvent(ctx, &storage.Event{
		UserID: u.ID, Timestamp: dayStart.Add(25 * time.Hour), App: "Chat",
	}))

	view, err := svc.Day(ctx, u.ID, "2025-07-14", now)
	require.NoError(t, err)

	require.Len(t, view.Segments, 1)
	assert.Equal(t, segment.Wave, view.Segments[0].Kind)
}
