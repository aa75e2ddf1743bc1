// Package receipt builds claim QR receipts and computes how long they stay valid.
package receipt

import "time"

// DefaultValidDays is the number of weekdays a receipt stays valid.
const DefaultValidDays = 7

// dateOf truncates t to midnight in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// addWeekdays moves d forward by n weekdays, skipping Saturdays and Sundays.
func addWeekdays(d time.Time, n int) time.Time {
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if !isWeekend(d) {
			n--
		}
	}
	return d
}

// weekdaysBetween counts weekdays in the half-open range (from, to].
func weekdaysBetween(from, to time.Time) int {
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if !isWeekend(d) {
			n++
		}
	}
	return n
}

// ExpiryDate returns the calendar date, in loc, on which a receipt issued at
// issuedAt expires. A non-positive validDays uses DefaultValidDays.
func ExpiryDate(issuedAt time.Time, validDays int, loc *time.Location) time.Time {
	if validDays <= 0 {
		validDays = DefaultValidDays
	}
	return addWeekdays(dateOf(issuedAt, loc), validDays)
}

// RemainingValidDays returns the weekdays left until the receipt expires,
// measured from now's calendar date. Zero means it expires today, negative
// values count weekdays past expiry. A weekend directly after expiry already
// counts as -1.
func RemainingValidDays(issuedAt time.Time, validDays int, now time.Time) int {
	loc := now.Location()
	expiry := ExpiryDate(issuedAt, validDays, loc)
	today := dateOf(now, loc)

	switch {
	case today.Equal(expiry):
		return 0
	case today.Before(expiry):
		return weekdaysBetween(today, expiry)
	default:
		n := weekdaysBetween(expiry, today)
		if n == 0 {
			n = 1
		}
		return -n
	}
}

// Expired reports whether the receipt is past its validity window.
func Expired(issuedAt time.Time, validDays int, now time.Time) bool {
	return RemainingValidDays(issuedAt, validDays, now) < 0
}
