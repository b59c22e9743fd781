// Package timezone resolves configured timezone identifiers and converts
// between local wall-clock times and UTC instants.
package timezone

import "time"

// DefaultTimezone is used when the configured identifier is empty or invalid.
const DefaultTimezone = "Europe/Brussels"

// IsValid reports whether tz resolves to a known location.
func IsValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// Location resolves tz, falling back to DefaultTimezone and finally UTC.
// It never fails: an unresolvable identifier must not crash a request.
func Location(tz string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}

	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// NowIn returns the current instant as wall-clock time in tz.
func NowIn(tz string) time.Time {
	return time.Now().In(Location(tz))
}

// ToLocal converts a UTC instant to wall-clock time in tz.
func ToLocal(utc time.Time, tz string) time.Time {
	return utc.In(Location(tz))
}

// ToUTC interprets a wall-clock time as local time in tz and returns
// the corresponding UTC instant.
func ToUTC(local time.Time, tz string) time.Time {
	loc := Location(tz)
	return time.Date(
		local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(),
		loc,
	).UTC()
}

// ParseLocalDate parses a "2006-01-02" date string in tz.
func ParseLocalDate(date, tz string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", date, Location(tz))
}

// ParseClock parses a "15:04" string onto the given date, in that
// date's location.
func ParseClock(date time.Time, hm string) (time.Time, error) {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0,
		date.Location(),
	), nil
}
