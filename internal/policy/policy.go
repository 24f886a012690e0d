// Package policy holds the calendar rules that decide whether a booking window
// is acceptable at a given moment. The rules are pure: the caller supplies the
// current date and hour.
package policy

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a reservation date.
const DateLayout = "2006-01-02"

const (
	MinHour = 0
	MaxHour = 24
)

var (
	ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")
	ErrDateInPast  = errors.New("date cannot be earlier than today")
	ErrHourRange   = errors.New("hours must be within 0-24")
	ErrEmptyWindow = errors.New("end hour must be later than start hour")
	ErrHourPassed  = errors.New("start hour has already passed today")
)

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return d, nil
}

// ValidateHours checks 0 <= start < end <= 24.
func ValidateHours(start, end int) error {
	if start < MinHour || end > MaxHour {
		return ErrHourRange
	}
	if start >= end {
		return ErrEmptyWindow
	}
	return nil
}

// ValidateWindow reports why [start, end) on date cannot be booked when the
// current local date is today and the current hour is nowHour, or nil if it can.
// Dates are compared as calendar days, never as instants.
func ValidateWindow(today string, nowHour int, date string, start, end int) error {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return err
	}
	t, err := ParseDate(today, time.UTC)
	if err != nil {
		return err
	}
	if d.Before(t) {
		return ErrDateInPast
	}
	if err := ValidateHours(start, end); err != nil {
		return err
	}
	if d.Equal(t) && start < nowHour {
		return ErrHourPassed
	}
	return nil
}

// NotBefore reports whether date is today or later. Used for approvals and
// admin-created approved reservations, which ignore the current hour.
func NotBefore(date, today string) (bool, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return false, err
	}
	t, err := ParseDate(today, time.UTC)
	if err != nil {
		return false, err
	}
	return !d.Before(t), nil
}

// WithinTolerance reports whether now lies within tolerance of the scheduled
// instant, boundaries included.
func WithinTolerance(now, scheduled time.Time, tolerance time.Duration) bool {
	diff := now.Sub(scheduled)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
