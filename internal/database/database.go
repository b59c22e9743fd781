package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB represents the database connection.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrSlotTaken is returned when a hold or booking would overlap an
	// existing confirmed appointment or unexpired hold. Both the
	// application-level overlap check and the storage unique constraint
	// map to this error.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrNotFound is returned by lookups that matched no row.
	ErrNotFound = errors.New("not found")
)

// NewDB initializes a new database connection and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode, busy timeout: many workers share one file.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{
		DB:     db,
		logger: logger,
	}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS business_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			timezone TEXT NOT NULL DEFAULT 'Europe/Brussels',
			slot_minutes INTEGER NOT NULL DEFAULT 30,
			min_notice_hours INTEGER NOT NULL DEFAULT 2,
			max_simultaneous_bookings INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_open_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			day INTEGER NOT NULL UNIQUE CHECK (day BETWEEN 0 AND 6),
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS blackout_dates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			reason TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS stylists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS working_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stylist_id INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			FOREIGN KEY (stylist_id) REFERENCES stylists(id)
		)`,

		`CREATE TABLE IF NOT EXISTS time_offs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stylist_id INTEGER NOT NULL,
			start_local DATETIME NOT NULL,
			end_local DATETIME NOT NULL,
			reason TEXT,
			FOREIGN KEY (stylist_id) REFERENCES stylists(id)
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			price_cents INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stylist_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			start_utc DATETIME NOT NULL,
			end_utc DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'hold',
			client_name TEXT,
			client_email TEXT,
			client_phone TEXT,
			hold_token TEXT,
			hold_until_utc DATETIME,
			created_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (stylist_id) REFERENCES stylists(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		// Last line of defense against double booking: the application
		// overlap check can lose a race between two concurrent holds,
		// the partial unique index cannot. Cancelled rows are excluded
		// so a freed slot can be rebooked at the same start.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_stylist_start_active
			ON appointments(stylist_id, start_utc)
			WHERE status IN ('hold', 'confirmed')`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_hold_token
			ON appointments(hold_token) WHERE hold_token IS NOT NULL`,

		`CREATE INDEX IF NOT EXISTS idx_appointments_stylist_window
			ON appointments(stylist_id, start_utc, end_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_hold_until
			ON appointments(status, hold_until_utc)`,

		`CREATE INDEX IF NOT EXISTS idx_working_hours_stylist_day
			ON working_hours(stylist_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_time_offs_stylist ON time_offs(stylist_id, start_local)`,
		`CREATE INDEX IF NOT EXISTS idx_blackout_dates_date ON blackout_dates(date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure
// from sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func (db *DB) Close() error {
	return db.DB.Close()
}
