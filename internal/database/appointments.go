package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"prohair/internal/metrics"
	"prohair/internal/models"
)

// CreateHold inserts a hold inside one transaction: expired holds are
// purged first, then the target interval is re-checked for overlap, then
// the row is inserted. A concurrent hold that wins the race between the
// check and the insert trips the unique index; that failure is mapped to
// ErrSlotTaken just like an application-detected conflict.
func (db *DB) CreateHold(ctx context.Context, appt *models.Appointment) error {
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Inline purge: cheap, and tightens the race window before the
	// conflict check. The background sweeper does the same thing on
	// its own schedule.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM appointments WHERE status = ? AND hold_until_utc < ?`,
		models.StatusHold, now,
	); err != nil {
		return fmt.Errorf("purge expired holds: %w", err)
	}

	var conflicts int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE stylist_id = ?
		  AND end_utc > ? AND start_utc < ?
		  AND (status = ? OR (status = ? AND hold_until_utc > ?))`,
		appt.StylistID,
		appt.StartUTC, appt.EndUTC,
		models.StatusConfirmed, models.StatusHold, now,
	).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("check conflicts: %w", err)
	}
	if conflicts > 0 {
		metrics.IncSlotConflict("application")
		return ErrSlotTaken
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO appointments (
			stylist_id, service_id, start_utc, end_utc, status,
			hold_token, hold_until_utc, created_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.StylistID, appt.ServiceID, appt.StartUTC, appt.EndUTC,
		models.StatusHold, appt.HoldToken, appt.HoldUntilUTC, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.IncSlotConflict("constraint")
			return ErrSlotTaken
		}
		return fmt.Errorf("insert hold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			metrics.IncSlotConflict("constraint")
			return ErrSlotTaken
		}
		return fmt.Errorf("commit: %w", err)
	}

	appt.ID, _ = result.LastInsertId()
	appt.Status = models.StatusHold
	appt.CreatedUTC = now
	return nil
}

// GetByHoldToken returns the held appointment with the given token.
// Returns ErrNotFound if no hold matches (confirmed and cancelled rows
// never match: their token is cleared or ignored).
func (db *DB) GetByHoldToken(ctx context.Context, token string) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, stylist_id, service_id, start_utc, end_utc, status,
		       COALESCE(client_name, ''), COALESCE(client_email, ''), COALESCE(client_phone, ''),
		       hold_token, hold_until_utc, created_utc
		FROM appointments
		WHERE hold_token = ? AND status = ?`,
		token, models.StatusHold,
	)
	return scanAppointment(row)
}

// ConfirmHold transitions a held appointment to confirmed: contact
// fields are set, token and expiry cleared. The caller is responsible
// for the authoritative expiry check before calling.
func (db *DB) ConfirmHold(ctx context.Context, token, name, email, phone string) (*models.Appointment, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM appointments WHERE hold_token = ? AND status = ?`,
		token, models.StatusHold,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup hold: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE appointments
		SET status = ?, client_name = ?, client_email = ?, client_phone = ?,
		    hold_token = NULL, hold_until_utc = NULL
		WHERE id = ? AND status = ?`,
		models.StatusConfirmed, name, email, phone,
		id, models.StatusHold,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm hold: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// A concurrent release or sweep removed the hold between the
		// lookup and the update.
		return nil, ErrNotFound
	}

	return db.GetAppointment(ctx, id)
}

// DeleteByHoldToken removes a held appointment. Returns false when no
// hold matched; that is not an error, releasing twice is a no-op.
func (db *DB) DeleteByHoldToken(ctx context.Context, token string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM appointments WHERE hold_token = ? AND status = ?`,
		token, models.StatusHold,
	)
	if err != nil {
		return false, fmt.Errorf("delete hold: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelAppointments cancels the given ids as one statement. Soft
// cancel marks rows cancelled (freeing the unique index); hard removes
// them. Already-cancelled rows are skipped silently.
func (db *DB) CancelAppointments(ctx context.Context, ids []int64, hard bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}

	var query string
	if hard {
		query = `DELETE FROM appointments WHERE id IN (` + placeholders + `)`
	} else {
		query = `UPDATE appointments SET status = ?, hold_token = NULL, hold_until_utc = NULL
			WHERE id IN (` + placeholders + `) AND status != ?`
		args = append([]interface{}{models.StatusCancelled}, args...)
		args = append(args, models.StatusCancelled)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cancel appointments: %w", err)
	}
	return result.RowsAffected()
}

// ListActiveBetween returns confirmed and unexpired-held appointments
// for a stylist overlapping [start, end), ordered by start.
func (db *DB) ListActiveBetween(ctx context.Context, stylistID int64, start, end time.Time) ([]models.Appointment, error) {
	now := time.Now().UTC()
	rows, err := db.QueryContext(ctx, `
		SELECT id, stylist_id, service_id, start_utc, end_utc, status,
		       COALESCE(client_name, ''), COALESCE(client_email, ''), COALESCE(client_phone, ''),
		       hold_token, hold_until_utc, created_utc
		FROM appointments
		WHERE stylist_id = ?
		  AND end_utc > ? AND start_utc < ?
		  AND (status = ? OR (status = ? AND hold_until_utc > ?))
		ORDER BY start_utc`,
		stylistID, start, end,
		models.StatusConfirmed, models.StatusHold, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}

// HasOverlap reports whether any confirmed or unexpired-held appointment
// for the stylist overlaps [start, end).
func (db *DB) HasOverlap(ctx context.Context, stylistID int64, start, end time.Time) (bool, error) {
	now := time.Now().UTC()
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE stylist_id = ?
		  AND end_utc > ? AND start_utc < ?
		  AND (status = ? OR (status = ? AND hold_until_utc > ?))`,
		stylistID, start, end,
		models.StatusConfirmed, models.StatusHold, now,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return count > 0, nil
}

// PurgeExpiredHolds removes holds whose expiry has passed and returns
// the number removed. Safe to run concurrently with CreateHold's inline
// purge: deletes are idempotent and zero matches is not an error.
func (db *DB) PurgeExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM appointments WHERE status = ? AND hold_until_utc < ?`,
		models.StatusHold, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired holds: %w", err)
	}
	return result.RowsAffected()
}

// ListRecent returns the newest appointments for admin reporting,
// joined with the service name. Cancelled rows are excluded unless
// requested.
func (db *DB) ListRecent(ctx context.Context, includeCancelled bool, limit int) ([]models.AppointmentSummary, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT a.id, a.start_utc,
		       COALESCE(s.name, '#' || a.service_id),
		       COALESCE(a.client_name, ''), COALESCE(a.client_email, ''), COALESCE(a.client_phone, ''),
		       a.status
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id`
	args := []interface{}{}
	if !includeCancelled {
		query += ` WHERE a.status != ?`
		args = append(args, models.StatusCancelled)
	}
	query += ` ORDER BY a.start_utc DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var out []models.AppointmentSummary
	for rows.Next() {
		var s models.AppointmentSummary
		if err := rows.Scan(&s.ID, &s.StartUTC, &s.ServiceName,
			&s.ClientName, &s.ClientEmail, &s.ClientPhone, &s.Status); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetAppointment returns one appointment by id, or ErrNotFound.
func (db *DB) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, stylist_id, service_id, start_utc, end_utc, status,
		       COALESCE(client_name, ''), COALESCE(client_email, ''), COALESCE(client_phone, ''),
		       hold_token, hold_until_utc, created_utc
		FROM appointments WHERE id = ?`,
		id,
	)
	return scanAppointment(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	var token sql.NullString
	var until sql.NullTime

	err := row.Scan(
		&a.ID, &a.StylistID, &a.ServiceID, &a.StartUTC, &a.EndUTC, &a.Status,
		&a.ClientName, &a.ClientEmail, &a.ClientPhone,
		&token, &until, &a.CreatedUTC,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}

	if token.Valid {
		a.HoldToken = &token.String
	}
	if until.Valid {
		t := until.Time.UTC()
		a.HoldUntilUTC = &t
	}
	a.StartUTC = a.StartUTC.UTC()
	a.EndUTC = a.EndUTC.UTC()
	a.CreatedUTC = a.CreatedUTC.UTC()
	return &a, nil
}
