package availability

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prohair/internal/database"
	"prohair/internal/models"
)

type fakeCalendar struct {
	settings  *models.BusinessSettings
	hours     map[int]*models.WeeklyOpenHours
	blackouts map[string]bool
	overrides map[int][]models.WorkingHour
	timeOffs  []models.TimeOff
}

func (f *fakeCalendar) Settings(ctx context.Context) (*models.BusinessSettings, error) {
	return f.settings, nil
}

func (f *fakeCalendar) OpenHours(ctx context.Context, day int) (*models.WeeklyOpenHours, error) {
	wh, ok := f.hours[day]
	if !ok {
		return nil, database.ErrNotFound
	}
	return wh, nil
}

func (f *fakeCalendar) IsBlackout(ctx context.Context, date string) (bool, error) {
	return f.blackouts[date], nil
}

func (f *fakeCalendar) WorkingHours(ctx context.Context, stylistID int64, day int) ([]models.WorkingHour, error) {
	return f.overrides[day], nil
}

func (f *fakeCalendar) TimeOffs(ctx context.Context, stylistID int64, start, end time.Time) ([]models.TimeOff, error) {
	var out []models.TimeOff
	for _, off := range f.timeOffs {
		if off.StartLocal.Before(end) && start.Before(off.EndLocal) {
			out = append(out, off)
		}
	}
	return out, nil
}

type fakeStore struct {
	services map[int64]*models.Service
	stylists map[int64]*models.Stylist
	appts    []models.Appointment
}

func (f *fakeStore) ListActiveBetween(ctx context.Context, stylistID int64, start, end time.Time) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, a := range f.appts {
		if a.StylistID == stylistID && a.StartUTC.Before(end) && start.Before(a.EndUTC) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) HasOverlap(ctx context.Context, stylistID int64, start, end time.Time) (bool, error) {
	for _, a := range f.appts {
		if a.StylistID == stylistID && a.StartUTC.Before(end) && start.Before(a.EndUTC) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetService(ctx context.Context, id int64) (*models.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return svc, nil
}

func (f *fakeStore) GetStylist(ctx context.Context, id int64) (*models.Stylist, error) {
	st, ok := f.stylists[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return st, nil
}

// newTestEngine wires an engine over in-memory fakes. The shop is open
// Tuesday through Saturday 10:00-19:00 UTC, slot step 30, no minimum
// notice unless a test sets one, clock pinned well before the test date.
func newTestEngine(t *testing.T) (*Engine, *fakeCalendar, *fakeStore) {
	t.Helper()

	open, clos := "10:00", "19:00"
	cal := &fakeCalendar{
		settings: &models.BusinessSettings{
			TimeZone:                "UTC",
			SlotMinutes:             30,
			MinNoticeHours:          0,
			MaxSimultaneousBookings: 1,
		},
		hours: map[int]*models.WeeklyOpenHours{
			0: {Day: 0, IsClosed: true},
			1: {Day: 1, IsClosed: true},
			2: {Day: 2, Open: &open, Close: &clos},
			3: {Day: 3, Open: &open, Close: &clos},
			4: {Day: 4, Open: &open, Close: &clos},
			5: {Day: 5, Open: &open, Close: &clos},
			6: {Day: 6, Open: &open, Close: &clos},
		},
		blackouts: map[string]bool{},
		overrides: map[int][]models.WorkingHour{},
	}

	store := &fakeStore{
		services: map[int64]*models.Service{
			1: {ID: 1, Name: "Knippen", DurationMinutes: 30, PriceCents: 3500},
		},
		stylists: map[int64]*models.Stylist{
			1: {ID: 1, Name: "Studio", IsActive: true},
		},
	}

	logger := zerolog.New(io.Discard)
	eng := NewEngine(cal, store, &logger)
	eng.now = func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}
	return eng, cal, store
}

// 2026-03-10 is a Tuesday.
const testDate = "2026-03-10"

func TestComputeSlotsWalksOpenWindow(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	first := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, first, slots[0])

	// Slot length is 30+5 minutes, so 18:30 would end at 19:05.
	last := slots[len(slots)-1]
	assert.Equal(t, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), last)

	for i := 1; i < len(slots); i++ {
		assert.Equal(t, 30*time.Minute, slots[i].Sub(slots[i-1]), "ascending fixed step")
	}
}

func TestComputeSlotsLastStartFitsBeforeClose(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	cal.settings.SlotMinutes = 5

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// 18:25 + 35min lands exactly on close; anything later spills over.
	last := slots[len(slots)-1]
	assert.Equal(t, time.Date(2026, 3, 10, 18, 25, 0, 0, time.UTC), last)
	for _, s := range slots {
		assert.False(t, s.After(last))
	}
}

func TestComputeSlotsEmptyOnInvalidInput(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	ctx := context.Background()

	for name, tc := range map[string]struct {
		date             string
		stylist, service int64
	}{
		"malformed date":  {"10-03-2026", 1, 1},
		"garbage date":    {"not-a-date", 1, 1},
		"unknown stylist": {testDate, 99, 1},
		"unknown service": {testDate, 1, 99},
		"closed monday":   {"2026-03-09", 1, 1},
	} {
		slots, err := eng.ComputeSlots(ctx, tc.date, tc.stylist, tc.service, "")
		require.NoError(t, err, name)
		assert.Empty(t, slots, name)
	}

	cal.blackouts[testDate] = true
	slots, err := eng.ComputeSlots(ctx, testDate, 1, 1, "")
	require.NoError(t, err)
	assert.Empty(t, slots, "blackout date")
}

func TestComputeSlotsMinNoticeBoundaryInclusive(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	cal.settings.MinNoticeHours = 2

	// Now is 09:00 on the test date itself; cutoff is 11:00.
	eng.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	}

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	cutoff := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, cutoff, slots[0], "slot starting exactly at now+notice is kept")
}

func TestComputeSlotsExcludesActiveAppointments(t *testing.T) {
	eng, _, store := newTestEngine(t)

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	store.appts = append(store.appts, models.Appointment{
		StylistID: 1,
		StartUTC:  start,
		EndUTC:    start.Add(35 * time.Minute),
		Status:    models.StatusConfirmed,
	})

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, s := range slots {
		assert.NotEqual(t, start, s, "booked start excluded")
		// 10:30 overlaps the booked [10:00, 10:35) interval too.
		assert.NotEqual(t, start.Add(30*time.Minute), s)
	}
	assert.Equal(t, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), slots[0])
}

func TestComputeSlotsHonorsWorkingHourOverride(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	cal.overrides[2] = []models.WorkingHour{
		{StylistID: 1, DayOfWeek: 2, Start: "12:00", End: "15:00"},
	}

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), slots[0])
	// Last start must fit 35 minutes before the 15:00 override end.
	assert.Equal(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), slots[len(slots)-1])
}

func TestComputeSlotsOverrideClippedToGlobalWindow(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	cal.overrides[2] = []models.WorkingHour{
		{StylistID: 1, DayOfWeek: 2, Start: "08:00", End: "11:00"},
	}

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// The 08:00 override start is clipped up to the 10:00 global open.
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), slots[0])
}

func TestComputeSlotsExcludesTimeOff(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	cal.timeOffs = []models.TimeOff{{
		StylistID:  1,
		StartLocal: time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
		EndLocal:   time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		Reason:     "lunch",
	}}

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 1, "")
	require.NoError(t, err)

	for _, s := range slots {
		end := s.Add(35 * time.Minute)
		blockedEnd := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
		blockedStart := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
		assert.False(t, s.Before(blockedEnd) && blockedStart.Before(end),
			"slot %s overlaps time off", s)
	}
}

func TestComputeSlotsZeroDurationServiceFallsBackToStep(t *testing.T) {
	eng, _, store := newTestEngine(t)
	store.services[2] = &models.Service{ID: 2, Name: "Consult", DurationMinutes: 0}

	slots, err := eng.ComputeSlots(context.Background(), testDate, 1, 2, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// With a 30-minute fallback duration, 18:30 still fits before 19:00.
	assert.Equal(t, time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC), slots[len(slots)-1])
}

func TestIsBookableReasons(t *testing.T) {
	eng, cal, _ := newTestEngine(t)
	cal.settings.MinNoticeHours = 2
	eng.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	tests := []struct {
		name   string
		start  time.Time
		ok     bool
		reason string
	}{
		{"valid afternoon slot", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), true, ""},
		{"exactly at notice cutoff", time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), true, ""},
		{"inside notice window", time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC), false, ReasonTooSoon},
		{"before opening", time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), false, ReasonOutsideHours},
		{"spills past close", time.Date(2026, 3, 11, 18, 45, 0, 0, time.UTC), false, ReasonOutsideHours},
		{"closed monday", time.Date(2026, 3, 16, 14, 0, 0, 0, time.UTC), false, ReasonClosed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason, err := eng.IsBookable(ctx, tc.start)
			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}

	cal.blackouts["2026-03-11"] = true
	ok, reason, err := eng.IsBookable(ctx, time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonBlackout, reason)
}

func TestIsFree(t *testing.T) {
	eng, _, store := newTestEngine(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	free, err := eng.IsFree(ctx, 1, start, 35)
	require.NoError(t, err)
	assert.True(t, free)

	store.appts = append(store.appts, models.Appointment{
		StylistID: 1,
		StartUTC:  start,
		EndUTC:    start.Add(35 * time.Minute),
		Status:    models.StatusHold,
	})

	free, err = eng.IsFree(ctx, 1, start, 35)
	require.NoError(t, err)
	assert.False(t, free)

	// Touching intervals do not conflict.
	free, err = eng.IsFree(ctx, 1, start.Add(35*time.Minute), 35)
	require.NoError(t, err)
	assert.True(t, free)

	// Other stylists are unaffected.
	free, err = eng.IsFree(ctx, 2, start, 35)
	require.NoError(t, err)
	assert.True(t, free)
}
