package reports

import (
	"fmt"
	"time"

	"github.com/ponto-labs/pontual/internal/timeutil"
)

// RangePreset names a date-range filter computed relative to a caller
// supplied "now". All ranges are half-open [From, To) over started_at.
type RangePreset string

const (
	RangeAll          RangePreset = "all"
	RangeToday        RangePreset = "today"
	RangeLast7Days    RangePreset = "last7days"
	RangeLast15Days   RangePreset = "last15days"
	RangeCurrentWeek  RangePreset = "currentWeek"
	RangeCurrentMonth RangePreset = "currentMonth"
	RangeCustom       RangePreset = "custom"
)

// DateRange is a resolved half-open interval. Zero bounds mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// ParsePreset validates a preset name from the API surface.
func ParsePreset(s string) (RangePreset, error) {
	switch RangePreset(s) {
	case RangeAll, RangeToday, RangeLast7Days, RangeLast15Days,
		RangeCurrentWeek, RangeCurrentMonth, RangeCustom:
		return RangePreset(s), nil
	case "":
		return RangeAll, nil
	}
	return "", fmt.Errorf("unknown range preset %q", s)
}

// Resolve computes the interval for a preset relative to now. RangeCustom
// carries explicit bounds and is rejected here; it goes through CustomRange.
func Resolve(preset RangePreset, now time.Time) (DateRange, error) {
	switch preset {
	case RangeAll:
		return DateRange{}, nil
	case RangeToday:
		day := timeutil.StartOfDay(now)
		return DateRange{From: day, To: day.AddDate(0, 0, 1)}, nil
	case RangeLast7Days:
		return DateRange{From: now.AddDate(0, 0, -7), To: now}, nil
	case RangeLast15Days:
		return DateRange{From: now.AddDate(0, 0, -15), To: now}, nil
	case RangeCurrentWeek:
		return DateRange{From: timeutil.StartOfWeek(now), To: now}, nil
	case RangeCurrentMonth:
		return DateRange{From: timeutil.StartOfMonth(now), To: now}, nil
	case RangeCustom:
		return DateRange{}, fmt.Errorf("custom range needs explicit start and end; use CustomRange")
	}
	return DateRange{}, fmt.Errorf("unknown range preset %q", preset)
}

// CustomRange builds an interval inclusive of both calendar days: only the
// date components of start and end matter, and the whole end day is covered.
func CustomRange(start, end time.Time) DateRange {
	return DateRange{
		From: timeutil.StartOfDay(start),
		To:   timeutil.StartOfDay(end).AddDate(0, 0, 1),
	}
}
