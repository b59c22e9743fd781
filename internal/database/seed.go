package database

import (
	"context"
	"database/sql"
	"fmt"

	"prohair/internal/models"
)

// Default open hours used at seed time: Tue-Sat 10:00-19:00,
// Sunday and Monday closed.
var defaultOpenHours = struct {
	Open       string
	Close      string
	ClosedDays map[int]bool
}{
	Open:       "10:00",
	Close:      "19:00",
	ClosedDays: map[int]bool{0: true, 1: true},
}

var seedServices = []models.Service{
	{Name: "Knippen", DurationMinutes: 30, PriceCents: 3500, IsActive: true},
	{Name: "Föhnen", DurationMinutes: 30, PriceCents: 2500, IsActive: true},
	{Name: "Kleuren", DurationMinutes: 90, PriceCents: 7500, IsActive: true},
	{Name: "Consult – haarprothese", DurationMinutes: 45, PriceCents: 0, IsActive: true},
	{Name: "Plaatsing/maatwerk haarprothese", DurationMinutes: 120, PriceCents: 0, IsActive: true},
	{Name: "Onderhoud / re-bonding", DurationMinutes: 60, PriceCents: 0, IsActive: true},
}

// EnsureSeedData creates the singleton settings row, exactly one weekly
// open-hours row per weekday, the default services, and the fallback
// "Studio" stylist. Existing rows are left alone, missing ones added.
func (db *DB) EnsureSeedData(ctx context.Context) error {
	settings, err := db.GetBusinessSettings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if err := db.UpdateBusinessSettings(ctx, settings); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	// Invariant: exactly one weekly_open_hours row per weekday; the
	// UNIQUE(day) constraint keeps concurrent seeds from doubling up.
	for day := 0; day <= 6; day++ {
		exists, err := db.openHoursExist(ctx, day)
		if err != nil {
			return fmt.Errorf("check open hours day %d: %w", day, err)
		}
		if exists {
			continue
		}

		open, clos := defaultOpenHours.Open, defaultOpenHours.Close
		closed := defaultOpenHours.ClosedDays[day]
		var openPtr, closePtr *string
		if !closed {
			openPtr, closePtr = &open, &clos
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO weekly_open_hours (day, is_closed, open_time, close_time)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(day) DO NOTHING`,
			day, closed, openPtr, closePtr,
		); err != nil {
			return fmt.Errorf("seed open hours day %d: %w", day, err)
		}
	}

	for _, svc := range seedServices {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO services (name, duration_minutes, price_cents, is_active)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			svc.Name, svc.DurationMinutes, svc.PriceCents, svc.IsActive,
		); err != nil {
			return fmt.Errorf("seed service %s: %w", svc.Name, err)
		}
	}

	// Hidden technical stylist so booking works before real stylists
	// are configured; never shown in any client-facing listing.
	var studioID int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM stylists WHERE name = 'Studio'`,
	).Scan(&studioID)
	if err == sql.ErrNoRows {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO stylists (name, is_active) VALUES ('Studio', 1)`,
		); err != nil {
			return fmt.Errorf("seed stylist: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("check stylist: %w", err)
	} else {
		if _, err := db.ExecContext(ctx,
			`UPDATE stylists SET is_active = 1 WHERE id = ?`, studioID,
		); err != nil {
			return fmt.Errorf("reactivate stylist: %w", err)
		}
	}

	if db.logger != nil {
		db.logger.Info().Msg("Seed data ensured")
	}
	return nil
}

func (db *DB) openHoursExist(ctx context.Context, day int) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM weekly_open_hours WHERE day = ?`, day,
	).Scan(&count)
	return count > 0, err
}
