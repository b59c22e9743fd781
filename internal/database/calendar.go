package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prohair/internal/models"
)

// GetBusinessSettings returns the singleton settings row, falling back
// to defaults when it is missing.
func (db *DB) GetBusinessSettings(ctx context.Context) (*models.BusinessSettings, error) {
	var s models.BusinessSettings
	err := db.QueryRowContext(ctx, `
		SELECT id, timezone, slot_minutes, min_notice_hours, max_simultaneous_bookings
		FROM business_settings WHERE id = 1`,
	).Scan(&s.ID, &s.TimeZone, &s.SlotMinutes, &s.MinNoticeHours, &s.MaxSimultaneousBookings)
	if err == sql.ErrNoRows {
		return models.DefaultBusinessSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

// UpdateBusinessSettings upserts the singleton settings row.
func (db *DB) UpdateBusinessSettings(ctx context.Context, s *models.BusinessSettings) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO business_settings (id, timezone, slot_minutes, min_notice_hours, max_simultaneous_bookings)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timezone = excluded.timezone,
			slot_minutes = excluded.slot_minutes,
			min_notice_hours = excluded.min_notice_hours,
			max_simultaneous_bookings = excluded.max_simultaneous_bookings`,
		s.TimeZone, s.SlotMinutes, s.MinNoticeHours, s.MaxSimultaneousBookings,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// GetOpenHours returns the weekly open hours row for a weekday
// (0=Sunday..6=Saturday), or ErrNotFound when the day is unseeded.
func (db *DB) GetOpenHours(ctx context.Context, day int) (*models.WeeklyOpenHours, error) {
	var wh models.WeeklyOpenHours
	var openT, closeT sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, day, is_closed, open_time, close_time FROM weekly_open_hours WHERE day = ?`,
		day,
	).Scan(&wh.ID, &wh.Day, &wh.IsClosed, &openT, &closeT)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get open hours: %w", err)
	}
	if openT.Valid {
		wh.Open = &openT.String
	}
	if closeT.Valid {
		wh.Close = &closeT.String
	}
	return &wh, nil
}

// ListOpenHours returns all seven weekly rows ordered by day.
func (db *DB) ListOpenHours(ctx context.Context) ([]models.WeeklyOpenHours, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, day, is_closed, open_time, close_time FROM weekly_open_hours ORDER BY day`,
	)
	if err != nil {
		return nil, fmt.Errorf("list open hours: %w", err)
	}
	defer rows.Close()

	var out []models.WeeklyOpenHours
	for rows.Next() {
		var wh models.WeeklyOpenHours
		var openT, closeT sql.NullString
		if err := rows.Scan(&wh.ID, &wh.Day, &wh.IsClosed, &openT, &closeT); err != nil {
			return nil, fmt.Errorf("scan open hours: %w", err)
		}
		if openT.Valid {
			wh.Open = &openT.String
		}
		if closeT.Valid {
			wh.Close = &closeT.String
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

// UpdateOpenHours updates one weekday row.
func (db *DB) UpdateOpenHours(ctx context.Context, wh *models.WeeklyOpenHours) error {
	_, err := db.ExecContext(ctx, `
		UPDATE weekly_open_hours SET is_closed = ?, open_time = ?, close_time = ? WHERE day = ?`,
		wh.IsClosed, wh.Open, wh.Close, wh.Day,
	)
	if err != nil {
		return fmt.Errorf("update open hours: %w", err)
	}
	return nil
}

// IsBlackout reports whether the given local date ("2006-01-02") is a
// blackout date.
func (db *DB) IsBlackout(ctx context.Context, date string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blackout_dates WHERE date = ?`, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check blackout: %w", err)
	}
	return count > 0, nil
}

// ListBlackoutDates returns all blackout dates ordered by date.
func (db *DB) ListBlackoutDates(ctx context.Context) ([]models.BlackoutDate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, date, COALESCE(reason, '') FROM blackout_dates ORDER BY date`,
	)
	if err != nil {
		return nil, fmt.Errorf("list blackout dates: %w", err)
	}
	defer rows.Close()

	var out []models.BlackoutDate
	for rows.Next() {
		var b models.BlackoutDate
		if err := rows.Scan(&b.ID, &b.Date, &b.Reason); err != nil {
			return nil, fmt.Errorf("scan blackout date: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddBlackoutDate inserts a blackout date; duplicates are a no-op.
func (db *DB) AddBlackoutDate(ctx context.Context, date, reason string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO blackout_dates (date, reason) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET reason = excluded.reason`,
		date, reason,
	)
	if err != nil {
		return fmt.Errorf("add blackout date: %w", err)
	}
	return nil
}

// RemoveBlackoutDate deletes a blackout date if present.
func (db *DB) RemoveBlackoutDate(ctx context.Context, date string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM blackout_dates WHERE date = ?`, date)
	if err != nil {
		return fmt.Errorf("remove blackout date: %w", err)
	}
	return nil
}

// GetWorkingHours returns the per-stylist override windows for a
// weekday. An empty result means no override: the global hours apply
// unchanged.
func (db *DB) GetWorkingHours(ctx context.Context, stylistID int64, day int) ([]models.WorkingHour, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, stylist_id, day_of_week, start_time, end_time
		FROM working_hours WHERE stylist_id = ? AND day_of_week = ?
		ORDER BY start_time`,
		stylistID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("get working hours: %w", err)
	}
	defer rows.Close()

	var out []models.WorkingHour
	for rows.Next() {
		var wh models.WorkingHour
		if err := rows.Scan(&wh.ID, &wh.StylistID, &wh.DayOfWeek, &wh.Start, &wh.End); err != nil {
			return nil, fmt.Errorf("scan working hour: %w", err)
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

// GetTimeOffs returns the stylist's time-off intervals overlapping
// [start, end) in local wall-clock time.
func (db *DB) GetTimeOffs(ctx context.Context, stylistID int64, start, end time.Time) ([]models.TimeOff, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, stylist_id, start_local, end_local, COALESCE(reason, '')
		FROM time_offs
		WHERE stylist_id = ? AND end_local > ? AND start_local < ?
		ORDER BY start_local`,
		stylistID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("get time offs: %w", err)
	}
	defer rows.Close()

	var out []models.TimeOff
	for rows.Next() {
		var to models.TimeOff
		if err := rows.Scan(&to.ID, &to.StylistID, &to.StartLocal, &to.EndLocal, &to.Reason); err != nil {
			return nil, fmt.Errorf("scan time off: %w", err)
		}
		out = append(out, to)
	}
	return out, rows.Err()
}

// GetService returns an active service by id, or ErrNotFound.
func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, name, duration_minutes, price_cents, is_active
		FROM services WHERE id = ? AND is_active = 1`,
		id,
	).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &s, nil
}

// GetStylist returns an active stylist by id, or ErrNotFound.
func (db *DB) GetStylist(ctx context.Context, id int64) (*models.Stylist, error) {
	var st models.Stylist
	err := db.QueryRowContext(ctx,
		`SELECT id, name, is_active FROM stylists WHERE id = ? AND is_active = 1`,
		id,
	).Scan(&st.ID, &st.Name, &st.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stylist: %w", err)
	}
	return &st, nil
}
