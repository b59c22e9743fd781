// Package booking owns the hold and confirmation lifecycle. A client
// takes a short-lived hold on a slot, then confirms it with contact
// details before the hold expires; unconfirmed holds evaporate.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"prohair/internal/database"
	"prohair/internal/events"
	"prohair/internal/metrics"
	"prohair/internal/models"
	"prohair/internal/timezone"
)

// ErrSlotTaken is returned when a competing hold or booking already
// occupies the requested interval.
var ErrSlotTaken = database.ErrSlotTaken

var (
	// ErrHoldNotFound means no live hold matches the token.
	ErrHoldNotFound = errors.New("hold not found")
	// ErrHoldExpired means the hold existed but its expiry has passed.
	ErrHoldExpired = errors.New("hold has expired")
	// ErrNotBookable means the slot violates a business-hours rule.
	ErrNotBookable = errors.New("slot not bookable")
	// ErrUnknownService means the requested service does not exist.
	ErrUnknownService = errors.New("unknown service")
)

// Store is the persistence surface the booking flow mutates.
type Store interface {
	CreateHold(ctx context.Context, appt *models.Appointment) error
	GetByHoldToken(ctx context.Context, token string) (*models.Appointment, error)
	ConfirmHold(ctx context.Context, token, name, email, phone string) (*models.Appointment, error)
	DeleteByHoldToken(ctx context.Context, token string) (bool, error)
	CancelAppointments(ctx context.Context, ids []int64, hard bool) (int64, error)
	ListRecent(ctx context.Context, includeCancelled bool, limit int) ([]models.AppointmentSummary, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
}

// RuleChecker validates a start instant against the business-hours
// rules. The availability engine implements it.
type RuleChecker interface {
	IsBookable(ctx context.Context, startUTC time.Time) (bool, string, error)
}

// SettingsSource yields the current business settings.
type SettingsSource interface {
	Settings(ctx context.Context) (*models.BusinessSettings, error)
}

// Notifier queues the confirmation mail. Fire-and-forget: the booking
// flow never waits on it and never sees its errors.
type Notifier interface {
	EnqueueConfirmation(to, clientName, serviceName string, startLocal time.Time)
}

// HoldRequest identifies the slot a client wants to hold. StartLocal
// is wall-clock time in TZ; an empty or invalid TZ falls back to the
// configured business timezone. HoldMinutes overrides the configured
// hold lifetime when positive.
type HoldRequest struct {
	StylistID   int64
	ServiceID   int64
	StartLocal  time.Time
	TZ          string
	HoldMinutes int
}

// Service coordinates holds, confirmations and cancellations.
type Service struct {
	store    Store
	rules    RuleChecker
	settings SettingsSource
	bus      *events.EventBus
	notifier Notifier
	logger   *zerolog.Logger
	holdTTL  time.Duration
	now      func() time.Time
}

// NewService wires the booking service. notifier may be nil when email
// is disabled.
func NewService(store Store, rules RuleChecker, settings SettingsSource, bus *events.EventBus, notifier Notifier, holdTTL time.Duration, logger *zerolog.Logger) *Service {
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	return &Service{
		store:    store,
		rules:    rules,
		settings: settings,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
		holdTTL:  holdTTL,
		now:      time.Now,
	}
}

// newHoldToken returns an opaque 32-character hex token.
func newHoldToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateHold places a hold on the slot. The hold blocks competitors
// immediately and expires on its own unless confirmed in time.
func (s *Service) CreateHold(ctx context.Context, req HoldRequest) (*models.Appointment, error) {
	svc, err := s.store.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownService
		}
		return nil, err
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}

	duration := svc.SlotLength()
	if svc.DurationMinutes <= 0 {
		duration = time.Duration(settings.SlotMinutes) * time.Minute
	}

	tz := settings.TimeZone
	if timezone.IsValid(req.TZ) {
		tz = req.TZ
	}
	startUTC := timezone.ToUTC(req.StartLocal, tz)

	ok, reason, err := s.rules.IsBookable(ctx, startUTC)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBookable, reason)
	}

	ttl := s.holdTTL
	if req.HoldMinutes > 0 {
		ttl = time.Duration(req.HoldMinutes) * time.Minute
	}

	token := newHoldToken()
	until := s.now().Add(ttl).UTC()

	appt := &models.Appointment{
		StylistID:    req.StylistID,
		ServiceID:    req.ServiceID,
		StartUTC:     startUTC,
		EndUTC:       startUTC.Add(duration),
		HoldToken:    &token,
		HoldUntilUTC: &until,
	}

	if err := s.store.CreateHold(ctx, appt); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			s.logger.Info().
				Int64("stylist_id", req.StylistID).
				Time("start_utc", appt.StartUTC).
				Msg("hold rejected, slot taken")
		}
		return nil, err
	}

	metrics.IncHoldCreated()
	s.publish(events.SlotHeld, map[string]interface{}{
		"stylistId": appt.StylistID,
		"startUtc":  appt.StartUTC,
		"endUtc":    appt.EndUTC,
	})

	s.logger.Info().
		Int64("appointment_id", appt.ID).
		Int64("stylist_id", appt.StylistID).
		Time("start_utc", appt.StartUTC).
		Time("hold_until", until).
		Msg("hold created")
	return appt, nil
}

// Confirm turns a live hold into a confirmed booking. The expiry check
// here is authoritative: an expired hold is removed and rejected even
// if the sweeper has not caught it yet.
func (s *Service) Confirm(ctx context.Context, token, name, email, phone string) (*models.Appointment, error) {
	held, err := s.store.GetByHoldToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}

	// A hold is expired once its deadline is reached, matching the
	// storage predicates that require hold_until_utc strictly in the
	// future for a hold to block a slot.
	if held.HoldUntilUTC != nil && !held.HoldUntilUTC.After(s.now().UTC()) {
		if _, err := s.store.DeleteByHoldToken(ctx, token); err != nil {
			s.logger.Warn().Err(err).Msg("failed to remove expired hold")
		}
		return nil, ErrHoldExpired
	}

	appt, err := s.store.ConfirmHold(ctx, token, name, email, phone)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// The sweeper or a concurrent release won the race.
			return nil, ErrHoldNotFound
		}
		return nil, err
	}

	metrics.IncBookingConfirmed()
	s.publish(events.SlotBooked, map[string]interface{}{
		"stylistId": appt.StylistID,
		"startUtc":  appt.StartUTC,
		"endUtc":    appt.EndUTC,
	})
	s.publish(events.BookingCreated, map[string]interface{}{
		"appointmentId": appt.ID,
		"stylistId":     appt.StylistID,
		"startUtc":      appt.StartUTC,
	})

	s.sendConfirmation(ctx, appt)

	s.logger.Info().
		Int64("appointment_id", appt.ID).
		Str("client", appt.ClientName).
		Time("start_utc", appt.StartUTC).
		Msg("booking confirmed")
	return appt, nil
}

// sendConfirmation queues the confirmation mail. Failures are logged
// and counted but never surface to the confirm path.
func (s *Service) sendConfirmation(ctx context.Context, appt *models.Appointment) {
	if s.notifier == nil || appt.ClientEmail == "" {
		return
	}

	serviceName := fmt.Sprintf("#%d", appt.ServiceID)
	if svc, err := s.store.GetService(ctx, appt.ServiceID); err == nil {
		serviceName = svc.Name
	}

	loc := timezone.Location(timezone.DefaultTimezone)
	if settings, err := s.settings.Settings(ctx); err == nil {
		loc = timezone.Location(settings.TimeZone)
	}

	s.notifier.EnqueueConfirmation(appt.ClientEmail, appt.ClientName, serviceName, appt.StartUTC.In(loc))
}

// ReleaseHold removes a hold. Releasing a token that no longer matches
// a live hold reports false with no error. The freed interval is read
// before the delete so subscribers learn which slot just opened up.
func (s *Service) ReleaseHold(ctx context.Context, token string) (bool, error) {
	held, err := s.store.GetByHoldToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	released, err := s.store.DeleteByHoldToken(ctx, token)
	if err != nil {
		return false, err
	}
	if released {
		s.publish(events.SlotReleased, map[string]interface{}{
			"stylistId": held.StylistID,
			"startUtc":  held.StartUTC,
			"endUtc":    held.EndUTC,
		})
		s.logger.Info().
			Int64("stylist_id", held.StylistID).
			Time("start_utc", held.StartUTC).
			Msg("hold released")
	}
	return released, nil
}

// CancelAppointment cancels a single appointment.
func (s *Service) CancelAppointment(ctx context.Context, id int64, hard bool) (int64, error) {
	return s.CancelMany(ctx, []int64{id}, hard)
}

// CancelMany cancels appointments by id. Soft cancellation keeps the
// rows for reporting; hard removes them. Returns the number of rows
// changed.
func (s *Service) CancelMany(ctx context.Context, ids []int64, hard bool) (int64, error) {
	n, err := s.store.CancelAppointments(ctx, ids, hard)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddBookingsCancelled(n)
		s.publish(events.BookingCancelled, map[string]interface{}{
			"appointmentIds": ids,
			"hard":           hard,
		})
		s.logger.Info().Int64("count", n).Bool("hard", hard).Msg("appointments cancelled")
	}
	return n, nil
}

// ListRecent returns the newest appointments for admin views.
func (s *Service) ListRecent(ctx context.Context, includeCancelled bool, limit int) ([]models.AppointmentSummary, error) {
	return s.store.ListRecent(ctx, includeCancelled, limit)
}

func (s *Service) publish(eventType string, payload map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Debug().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}
