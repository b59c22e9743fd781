// Package availability computes bookable slots from the calendar
// constraints and the appointment book. All checks here are read-only;
// the booking package owns mutations.
package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"prohair/internal/database"
	"prohair/internal/models"
	"prohair/internal/timezone"
)

// MinSlotStepMinutes is the floor for the configured slot step.
const MinSlotStepMinutes = 5

// Rejection reasons returned by IsBookable.
const (
	ReasonTooSoon      = "too_soon"
	ReasonBlackout     = "blackout_date"
	ReasonClosed       = "day_closed"
	ReasonOutsideHours = "outside_open_hours"
)

// CalendarSource provides the admin-mutated calendar data, normally the
// calendar.Cache.
type CalendarSource interface {
	Settings(ctx context.Context) (*models.BusinessSettings, error)
	OpenHours(ctx context.Context, day int) (*models.WeeklyOpenHours, error)
	IsBlackout(ctx context.Context, date string) (bool, error)
	WorkingHours(ctx context.Context, stylistID int64, day int) ([]models.WorkingHour, error)
	TimeOffs(ctx context.Context, stylistID int64, start, end time.Time) ([]models.TimeOff, error)
}

// Store provides the appointment and catalog reads the engine needs.
type Store interface {
	ListActiveBetween(ctx context.Context, stylistID int64, start, end time.Time) ([]models.Appointment, error)
	HasOverlap(ctx context.Context, stylistID int64, start, end time.Time) (bool, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetStylist(ctx context.Context, id int64) (*models.Stylist, error)
}

// Engine combines calendar constraints with existing appointments.
type Engine struct {
	calendar CalendarSource
	store    Store
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewEngine creates an availability engine.
func NewEngine(calendar CalendarSource, store Store, logger *zerolog.Logger) *Engine {
	return &Engine{
		calendar: calendar,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

type window struct {
	start time.Time
	end   time.Time
}

// ComputeSlots returns the bookable local start times for a date,
// stylist and service, ascending and deduplicated. Invalid input
// (malformed date, unknown ids, closed or blacked-out day) yields an
// empty list, never an error; errors are reserved for storage failures.
func (e *Engine) ComputeSlots(ctx context.Context, date string, stylistID, serviceID int64, tz string) ([]time.Time, error) {
	settings, err := e.calendar.Settings(ctx)
	if err != nil {
		return nil, err
	}

	effectiveTZ := settings.TimeZone
	if timezone.IsValid(tz) {
		effectiveTZ = tz
	}

	day, err := timezone.ParseLocalDate(date, effectiveTZ)
	if err != nil {
		return nil, nil
	}

	blocked, err := e.calendar.IsBlackout(ctx, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, nil
	}

	wh, err := e.calendar.OpenHours(ctx, int(day.Weekday()))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if wh.IsClosed || wh.Open == nil || wh.Close == nil {
		return nil, nil
	}

	if _, err := e.store.GetStylist(ctx, stylistID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	step := time.Duration(settings.SlotMinutes) * time.Minute
	if step < MinSlotStepMinutes*time.Minute {
		step = MinSlotStepMinutes * time.Minute
	}

	duration := step
	service, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if service.DurationMinutes > 0 {
		duration = service.SlotLength()
	}

	dayOpen, err := timezone.ParseClock(day, *wh.Open)
	if err != nil {
		return nil, nil
	}
	dayClose, err := timezone.ParseClock(day, *wh.Close)
	if err != nil {
		return nil, nil
	}
	if !dayOpen.Before(dayClose) {
		return nil, nil
	}

	windows, err := e.effectiveWindows(ctx, stylistID, day, dayOpen, dayClose)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	// Minimum notice is anchored to the current instant expressed in
	// the effective timezone; the boundary is inclusive.
	nowLocal := e.now().In(day.Location())
	earliest := nowLocal.Add(time.Duration(settings.MinNoticeHours) * time.Hour)

	dayEnd := day.AddDate(0, 0, 1)
	timeOffs, err := e.calendar.TimeOffs(ctx, stylistID, day, dayEnd)
	if err != nil {
		return nil, err
	}

	busy, err := e.busyIntervals(ctx, stylistID, day, dayEnd)
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]bool)
	var slots []time.Time

	for _, win := range windows {
		for cur := win.start; !cur.Add(duration).After(win.end); cur = cur.Add(step) {
			if cur.Before(earliest) {
				continue
			}

			slotEnd := cur.Add(duration)

			if overlapsTimeOff(timeOffs, cur, slotEnd) {
				continue
			}
			if overlapsBusy(busy, cur, slotEnd) {
				continue
			}

			if !seen[cur] {
				seen[cur] = true
				slots = append(slots, cur)
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	e.logger.Debug().
		Str("date", date).
		Int64("stylist_id", stylistID).
		Int("count", len(slots)).
		Msg("slots computed")
	return slots, nil
}

// effectiveWindows intersects per-stylist working-hour overrides with
// the global open window. No overrides means the global window applies
// unchanged; an override clipped to nothing is discarded.
func (e *Engine) effectiveWindows(ctx context.Context, stylistID int64, day, dayOpen, dayClose time.Time) ([]window, error) {
	overrides, err := e.calendar.WorkingHours(ctx, stylistID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return []window{{start: dayOpen, end: dayClose}}, nil
	}

	var windows []window
	for _, ov := range overrides {
		start, err := timezone.ParseClock(day, ov.Start)
		if err != nil {
			continue
		}
		end, err := timezone.ParseClock(day, ov.End)
		if err != nil {
			continue
		}

		if start.Before(dayOpen) {
			start = dayOpen
		}
		if end.After(dayClose) {
			end = dayClose
		}
		if start.Before(end) {
			windows = append(windows, window{start: start, end: end})
		}
	}
	return windows, nil
}

// busyIntervals returns the local-time intervals blocked by confirmed
// appointments and unexpired holds.
func (e *Engine) busyIntervals(ctx context.Context, stylistID int64, dayStart, dayEnd time.Time) ([]window, error) {
	appts, err := e.store.ListActiveBetween(ctx, stylistID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, err
	}

	loc := dayStart.Location()
	busy := make([]window, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, window{start: a.StartUTC.In(loc), end: a.EndUTC.In(loc)})
	}
	return busy, nil
}

func overlapsTimeOff(offs []models.TimeOff, start, end time.Time) bool {
	for _, off := range offs {
		if start.Before(off.EndLocal) && off.StartLocal.Before(end) {
			return true
		}
	}
	return false
}

func overlapsBusy(busy []window, start, end time.Time) bool {
	for _, b := range busy {
		if start.Before(b.end) && b.start.Before(end) {
			return true
		}
	}
	return false
}

// IsBookable checks the business-hours rules for a single instant:
// minimum notice, blackout and weekly window containment of one slot
// length. It deliberately does not look at existing appointments; that
// orthogonal concern is IsFree.
func (e *Engine) IsBookable(ctx context.Context, startUTC time.Time) (bool, string, error) {
	settings, err := e.calendar.Settings(ctx)
	if err != nil {
		return false, "", err
	}

	loc := timezone.Location(settings.TimeZone)
	local := startUTC.In(loc)
	slotEnd := local.Add(time.Duration(settings.SlotMinutes) * time.Minute)

	nowLocal := e.now().In(loc)
	earliest := nowLocal.Add(time.Duration(settings.MinNoticeHours) * time.Hour)
	if local.Before(earliest) {
		return false, ReasonTooSoon, nil
	}

	blocked, err := e.calendar.IsBlackout(ctx, local.Format("2006-01-02"))
	if err != nil {
		return false, "", err
	}
	if blocked {
		return false, ReasonBlackout, nil
	}

	wh, err := e.calendar.OpenHours(ctx, int(local.Weekday()))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, ReasonClosed, nil
		}
		return false, "", err
	}
	if wh.IsClosed || wh.Open == nil || wh.Close == nil {
		return false, ReasonClosed, nil
	}

	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	open, err := timezone.ParseClock(day, *wh.Open)
	if err != nil {
		return false, ReasonClosed, nil
	}
	clos, err := timezone.ParseClock(day, *wh.Close)
	if err != nil {
		return false, ReasonClosed, nil
	}

	if local.Before(open) || slotEnd.After(clos) {
		return false, ReasonOutsideHours, nil
	}

	return true, "", nil
}

// IsFree reports whether no confirmed or unexpired-held appointment for
// the stylist overlaps [startUTC, startUTC+duration).
func (e *Engine) IsFree(ctx context.Context, stylistID int64, startUTC time.Time, durationMinutes int) (bool, error) {
	end := startUTC.Add(time.Duration(durationMinutes) * time.Minute)
	overlap, err := e.store.HasOverlap(ctx, stylistID, startUTC, end)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}
