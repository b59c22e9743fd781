package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDataInvariants(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	hours, err := db.ListOpenHours(ctx)
	require.NoError(t, err)
	require.Len(t, hours, 7, "exactly one row per weekday")

	for _, wh := range hours {
		switch wh.Day {
		case 0, 1: // Sunday, Monday
			assert.True(t, wh.IsClosed, "day %d should be closed", wh.Day)
		default:
			assert.False(t, wh.IsClosed)
			require.NotNil(t, wh.Open)
			require.NotNil(t, wh.Close)
			assert.Equal(t, "10:00", *wh.Open)
			assert.Equal(t, "19:00", *wh.Close)
		}
	}

	// Seeding twice does not duplicate rows.
	require.NoError(t, db.EnsureSeedData(ctx))
	hours, err = db.ListOpenHours(ctx)
	require.NoError(t, err)
	assert.Len(t, hours, 7)

	studio, err := db.GetStylist(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Studio", studio.Name)

	svc, err := db.GetService(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Knippen", svc.Name)
	assert.Equal(t, 30, svc.DurationMinutes)
}

func TestBusinessSettingsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.GetBusinessSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Brussels", s.TimeZone)
	assert.Equal(t, 30, s.SlotMinutes)
	assert.Equal(t, 2, s.MinNoticeHours)

	s.SlotMinutes = 45
	s.MinNoticeHours = 4
	require.NoError(t, db.UpdateBusinessSettings(ctx, s))

	got, err := db.GetBusinessSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, got.SlotMinutes)
	assert.Equal(t, 4, got.MinNoticeHours)
}

func TestBlackoutDates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok, err := db.IsBlackout(ctx, "2026-12-25")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddBlackoutDate(ctx, "2026-12-25", "kerstmis"))
	// Duplicate add is a no-op.
	require.NoError(t, db.AddBlackoutDate(ctx, "2026-12-25", "kerstmis"))

	ok, err = db.IsBlackout(ctx, "2026-12-25")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := db.ListBlackoutDates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kerstmis", list[0].Reason)

	require.NoError(t, db.RemoveBlackoutDate(ctx, "2026-12-25"))
	ok, err = db.IsBlackout(ctx, "2026-12-25")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkingHoursAndTimeOffs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	overrides, err := db.GetWorkingHours(ctx, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, overrides, "no override rows by default")

	_, err = db.ExecContext(ctx, `
		INSERT INTO working_hours (stylist_id, day_of_week, start_time, end_time)
		VALUES (1, 2, '12:00', '17:00')`)
	require.NoError(t, err)

	overrides, err = db.GetWorkingHours(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "12:00", overrides[0].Start)

	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = db.ExecContext(ctx, `
		INSERT INTO time_offs (stylist_id, start_local, end_local, reason)
		VALUES (1, ?, ?, 'lunch meeting')`,
		dayStart.Add(13*time.Hour), dayStart.Add(14*time.Hour))
	require.NoError(t, err)

	offs, err := db.GetTimeOffs(ctx, 1, dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, offs, 1)
	assert.Equal(t, "lunch meeting", offs[0].Reason)

	// Window before the interval finds nothing.
	offs, err = db.GetTimeOffs(ctx, 1, dayStart, dayStart.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, offs)
}

func TestGetServiceNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetService(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetStylist(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
