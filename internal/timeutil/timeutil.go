// Package timeutil provides the time arithmetic used across Pontual:
// duration computation, display formatting, the clock-preserving UTC storage
// convention, and relative activity labels.
//
// Stored instants follow a single convention everywhere: wall-clock local
// time is shifted by its UTC offset before storage, so the UTC calendar and
// clock fields of a stored instant equal the original wall clock. Read paths
// extract UTC fields directly and never re-localize.
package timeutil

import (
	"fmt"
	"math"
	"time"
)

// DurationMinutes returns the whole minutes between started and ended,
// truncating fractional seconds. Callers must ensure ended is not before
// started; entry validation rejects such intervals before they reach here.
// Totals are always computed by summing per-entry floored minutes, never by
// flooring a summed seconds total.
func DurationMinutes(started, ended time.Time) int {
	return int(ended.Sub(started) / time.Minute)
}

// FormatMinutes formats a minute total for display: 0 -> "0h", 45 -> "45m",
// 90 -> "1h30m", 125 -> "2h05m".
func FormatMinutes(totalMinutes int) string {
	if totalMinutes == 0 {
		return "0h"
	}

	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", hours, minutes)
}

// FormatHoursDecimal formats fractional hours with the same display contract
// as FormatMinutes. Minutes that round up to 60 carry into an extra whole
// hour, so 1.999 renders as "2h00m" rather than "1h60m".
func FormatHoursDecimal(hours float64) string {
	if hours == 0 {
		return "0h"
	}

	wholeHours := int(math.Floor(hours))
	minutes := int(math.Round((hours - float64(wholeHours)) * 60))
	if minutes == 60 {
		wholeHours++
		minutes = 0
	}

	if wholeHours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", wholeHours, minutes)
}

// LocalToUTCPreservingClock converts a wall-clock local time to the stored
// instant whose UTC fields equal the local fields. The shift equals the
// location's UTC offset at that instant.
func LocalToUTCPreservingClock(local time.Time) time.Time {
	_, offset := local.Zone()
	return local.Add(time.Duration(offset) * time.Second).UTC()
}

// StartOfDay returns midnight of t's UTC calendar date. Under the
// clock-preserving convention this is local midnight of the stored day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns Monday 00:00:00 of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	daysFromMonday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -daysFromMonday)
}

// StartOfMonth returns the first day of t's month at midnight.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// RelativeLabel renders the "last activity" label for the display locale:
// "Agora mesmo" under an hour, then hours, days and weeks with the correct
// singular/plural suffix.
func RelativeLabel(lastActivity, now time.Time) string {
	diff := now.Sub(lastActivity)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case hours < 1:
		return "Agora mesmo"
	case hours < 24:
		return fmt.Sprintf("%d hora%s atrás", hours, plural(hours))
	case days < 7:
		return fmt.Sprintf("%d dia%s atrás", days, plural(days))
	default:
		weeks := days / 7
		return fmt.Sprintf("%d semana%s atrás", weeks, plural(weeks))
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
