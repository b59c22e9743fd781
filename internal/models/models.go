package models

import "time"

// Appointment statuses.
const (
	StatusHold      = "hold"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// BufferMinutes is appended after every service so consecutive
// appointments never run back to back.
const BufferMinutes = 5

// BusinessSettings is a singleton row with salon-wide booking parameters.
type BusinessSettings struct {
	ID                      int64  `json:"id"`
	TimeZone                string `json:"timezone"`
	SlotMinutes             int    `json:"slot_minutes"`
	MinNoticeHours          int    `json:"min_notice_hours"`
	MaxSimultaneousBookings int    `json:"max_simultaneous_bookings"`
}

// DefaultBusinessSettings returns the settings used when the row is missing.
func DefaultBusinessSettings() *BusinessSettings {
	return &BusinessSettings{
		ID:                      1,
		TimeZone:                "Europe/Brussels",
		SlotMinutes:             30,
		MinNoticeHours:          2,
		MaxSimultaneousBookings: 1,
	}
}

// WeeklyOpenHours describes the salon-wide window for one weekday.
// Open/Close are "15:04" wall-clock strings; nil or IsClosed means
// the day yields no slots. Exactly one row exists per weekday.
type WeeklyOpenHours struct {
	ID       int64   `json:"id"`
	Day      int     `json:"day"` // 0=Sunday .. 6=Saturday
	IsClosed bool    `json:"is_closed"`
	Open     *string `json:"open,omitempty"`
	Close    *string `json:"close,omitempty"`
}

// BlackoutDate fully closes a specific calendar date.
type BlackoutDate struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"` // "2006-01-02"
	Reason string `json:"reason,omitempty"`
}

// Stylist is the bookable resource.
type Stylist struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// WorkingHour narrows the global open hours for one stylist on one weekday.
// The effective window is the intersection with WeeklyOpenHours.
type WorkingHour struct {
	ID        int64  `json:"id"`
	StylistID int64  `json:"stylist_id"`
	DayOfWeek int    `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	Start     string `json:"start"`       // "09:00"
	End       string `json:"end"`         // "18:00"
}

// TimeOff blocks an interval of local wall-clock time for a stylist.
type TimeOff struct {
	ID         int64     `json:"id"`
	StylistID  int64     `json:"stylist_id"`
	StartLocal time.Time `json:"start_local"`
	EndLocal   time.Time `json:"end_local"`
	Reason     string    `json:"reason,omitempty"`
}

// Service is a bookable treatment. PriceCents avoids float money.
type Service struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	IsActive        bool   `json:"is_active"`
}

// SlotLength returns the duration a booking of this service occupies,
// including the trailing buffer.
func (s *Service) SlotLength() time.Duration {
	return time.Duration(s.DurationMinutes+BufferMinutes) * time.Minute
}

// Appointment is the central entity. Instants are stored in UTC;
// local wall-clock times exist only at the presentation boundary.
type Appointment struct {
	ID        int64  `json:"id"`
	StylistID int64  `json:"stylist_id"`
	ServiceID int64  `json:"service_id"`

	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`

	Status string `json:"status"`

	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`

	// Hold-only fields, cleared on confirmation.
	HoldToken    *string    `json:"hold_token,omitempty"`
	HoldUntilUTC *time.Time `json:"hold_until_utc,omitempty"`

	CreatedUTC time.Time `json:"created_utc"`
}

// IsActiveAt reports whether the appointment blocks its interval at
// the given instant: confirmed, or held with an unexpired hold.
func (a *Appointment) IsActiveAt(now time.Time) bool {
	switch a.Status {
	case StatusConfirmed:
		return true
	case StatusHold:
		return a.HoldUntilUTC != nil && a.HoldUntilUTC.After(now)
	default:
		return false
	}
}

// Overlaps reports whether [a.StartUTC, a.EndUTC) intersects [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return Overlap(a.StartUTC, a.EndUTC, start, end)
}

// Overlap reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect: s1 < e2 && s2 < e1.
func Overlap(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// AppointmentSummary is the admin reporting projection of an appointment.
type AppointmentSummary struct {
	ID          int64     `json:"id"`
	StartUTC    time.Time `json:"start_utc"`
	ServiceName string    `json:"service_name"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	ClientPhone string    `json:"client_phone"`
	Status      string    `json:"status"`
}
