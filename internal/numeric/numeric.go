// Package numeric holds the shared numeric and calendar primitives used by the
// normalization and training-load pipeline: nil-propagating rounding, unit
// conversion, and UTC date / ISO-week math.
package numeric

import (
	"math"
	"time"
)

const (
	// KmToMiles converts kilometers to statute miles.
	KmToMiles = 0.621371

	dateLayout     = "2006-01-02"
	minutesPerHour = 60.0
)

// Float returns a pointer to v. Convenience for building optional metrics.
func Float(v float64) *float64 {
	return &v
}

// Round rounds half away from zero to the given number of decimals.
// A nil or NaN input propagates as nil.
func Round(value *float64, decimals int) *float64 {
	if value == nil || math.IsNaN(*value) {
		return nil
	}
	factor := math.Pow(10, float64(decimals))
	rounded := math.Round(*value*factor) / factor
	return &rounded
}

// Round2 rounds to two decimals, the precision used for every stored metric.
func Round2(value *float64) *float64 {
	return Round(value, 2)
}

// ParseTimestamp accepts a bare YYYY-MM-DD date (interpreted as a UTC calendar
// date, never local) or a general RFC 3339 timestamp. Invalid input yields nil.
func ParseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, time.UTC); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		utc := t.UTC()
		return &utc
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		utc := t.UTC()
		return &utc
	}
	return nil
}

// ISODate formats t as its UTC calendar date.
func ISODate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ISOWeek returns the ISO-8601 week number for a YYYY-MM-DD or timestamp
// string: weeks start Monday and week 1 contains the year's first Thursday,
// so early January can belong to week 52/53 of the previous ISO year.
func ISOWeek(value string) *int {
	parsed := ParseTimestamp(value)
	if parsed == nil {
		return nil
	}
	target := parsed.UTC()
	dayNum := int(target.Weekday())
	if dayNum == 0 {
		dayNum = 7
	}
	// Shift to the Thursday of this week, then count 7-day blocks from Jan 1.
	target = target.AddDate(0, 0, 4-dayNum)
	yearStart := time.Date(target.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	week := int(math.Ceil((target.Sub(yearStart).Hours()/24 + 1) / 7))
	return &week
}

// MinutesBetween returns end-start in minutes. Nil when either timestamp is
// unparseable or end precedes start; a duration is never negative.
func MinutesBetween(start, end string) *float64 {
	startAt := ParseTimestamp(start)
	endAt := ParseTimestamp(end)
	if startAt == nil || endAt == nil {
		return nil
	}
	diff := endAt.Sub(*startAt).Minutes()
	if diff < 0 {
		return nil
	}
	return &diff
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	return math.Min(math.Max(value, min), max)
}

// MetersPerSecondToKmh converts a speed in m/s to km/h, rounded to 2 decimals.
func MetersPerSecondToKmh(value *float64) *float64 {
	if value == nil {
		return nil
	}
	kmh := *value * 3.6
	return Round2(&kmh)
}

// MetersPerSecondToPace converts a speed in m/s to a min/km pace, rounded to
// 2 decimals. Undefined (nil) for zero or negative speed.
func MetersPerSecondToPace(value *float64) *float64 {
	if value == nil || *value <= 0 {
		return nil
	}
	minutes := (1000 / *value) / minutesPerHour
	return Round2(&minutes)
}

// KmToMi converts a kilometer quantity to miles. Used for both distances and
// km/h speeds so the two are never mixed across units.
func KmToMi(value float64) float64 {
	return value * KmToMiles
}
