// Package acwr computes the Acute:Chronic Workload Ratio report: weekly load
// buckets, the rolling ratio history, a classified summary, and workout
// suggestions. Everything here is recomputed from the workout collection on
// every request; nothing is persisted.
package acwr

import (
	"sort"
	"time"

	"fitsync-api-go/internal/load"
	"fitsync-api-go/internal/numeric"
)

const (
	historyWeeks  = 12
	chronicWeeks  = 4
	monitorCeil   = 1.5
	targetRangeLo = 0.8
	targetRangeHi = 1.3
)

// Workout is one row of aggregator input: a load projection plus the calendar
// date it lands on.
type Workout struct {
	WorkoutDate string
	load.Input
}

// ComputedWorkout is an input row with its freshly recomputed load figures.
// The aggregator is the authority on unit-adjusted numbers and ignores any
// previously stored values.
type ComputedWorkout struct {
	Workout
	DistanceKm       *float64 `json:"distance_km"`
	AvgSpeedKmh      *float64 `json:"avg_speed_kmh"`
	DeltaHR          *float64 `json:"delta_hr"`
	InternalLoad     *float64 `json:"internal_load"`
	ExternalLoad     *float64 `json:"external_load"`
	TotalSessionLoad *float64 `json:"total_session_load"`
}

// WeeklyLoadPoint is one Sunday-keyed week bucket and its total load. Weeks
// with no workouts carry a 0, not a gap.
type WeeklyLoadPoint struct {
	WeekStart string  `json:"weekStart"`
	WeekLabel string  `json:"weekLabel"`
	TotalLoad float64 `json:"totalLoad"`
}

// HistoryPoint is one week's own ratio against the four weeks preceding it.
// Nil ratio means insufficient preceding history, not zero.
type HistoryPoint struct {
	WeekStart string   `json:"weekStart"`
	WeekLabel string   `json:"weekLabel"`
	Ratio     *float64 `json:"ratio"`
}

// Tone is the severity bucket a ratio classifies into.
type Tone string

const (
	ToneMuted    Tone = "muted"
	ToneCaution  Tone = "caution"
	TonePositive Tone = "positive"
	ToneWarning  Tone = "warning"
	ToneDanger   Tone = "danger"
)

type Status struct {
	Label       string `json:"label"`
	Tone        Tone   `json:"tone"`
	Description string `json:"description"`
}

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Summary struct {
	Ratio             *float64 `json:"ratio"`
	AcuteLoad         float64  `json:"acuteLoad"`
	ChronicLoad       float64  `json:"chronicLoad"`
	RemainingCapacity *float64 `json:"remainingCapacity"`
	Status            Status   `json:"status"`
	TargetRange       Range    `json:"targetRange"`
	LastUpdated       *string  `json:"lastUpdated"`
}

// Report is the full aggregator output for one user.
type Report struct {
	Workouts    []ComputedWorkout `json:"workouts"`
	WeeklyLoad  []WeeklyLoadPoint `json:"weeklyLoad"`
	AcwrHistory []HistoryPoint    `json:"acwrHistory"`
	Summary     Summary           `json:"summary"`
	Suggestions []Suggestion      `json:"suggestions"`
}

// Options tunes a Summarize call. A zero Today means the current wall clock;
// an empty Unit means kilometers.
type Options struct {
	Today time.Time
	Unit  load.DistanceUnit
}

type weekEntry struct {
	total float64
	date  time.Time
}

// Summarize buckets the workouts into Sunday-started calendar weeks, builds
// the trailing 12-week load and ratio history, and classifies the current
// acute:chronic ratio.
func Summarize(workouts []Workout, opts Options) Report {
	today := opts.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}

	computed := make([]ComputedWorkout, 0, len(workouts))
	for _, w := range workouts {
		c := load.Compute(w.Input, opts.Unit)
		computed = append(computed, ComputedWorkout{
			Workout:          w,
			DistanceKm:       c.DistanceKm,
			AvgSpeedKmh:      c.AvgSpeedKmh,
			DeltaHR:          c.DeltaHR,
			InternalLoad:     c.InternalLoad,
			ExternalLoad:     c.ExternalLoad,
			TotalSessionLoad: c.TotalSessionLoad,
		})
	}

	currentWeekStart := startOfWeek(today)
	firstWeek := currentWeekStart.AddDate(0, 0, -(historyWeeks-1)*7)

	// Seed every week of the display window so gap weeks render as 0.
	totals := map[string]weekEntry{}
	for i := 0; i < historyWeeks; i++ {
		weekStart := firstWeek.AddDate(0, 0, i*7)
		totals[numeric.ISODate(weekStart)] = weekEntry{date: weekStart}
	}

	for _, w := range computed {
		date := parseWorkoutDate(w.WorkoutDate)
		if date == nil {
			continue
		}
		weekStart := startOfWeek(*date)
		key := numeric.ISODate(weekStart)
		entry, ok := totals[key]
		if !ok {
			entry = weekEntry{date: weekStart}
		}
		if w.TotalSessionLoad != nil {
			entry.total += *w.TotalSessionLoad
		}
		totals[key] = entry
	}

	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > historyWeeks {
		keys = keys[len(keys)-historyWeeks:]
	}

	weekly := make([]WeeklyLoadPoint, 0, len(keys))
	for _, key := range keys {
		entry := totals[key]
		weekly = append(weekly, WeeklyLoadPoint{
			WeekStart: key,
			WeekLabel: weekLabel(entry.date),
			TotalLoad: roundLoad(entry.total),
		})
	}

	history := make([]HistoryPoint, 0, len(keys))
	for i, key := range keys {
		entry := totals[key]
		point := HistoryPoint{WeekStart: key, WeekLabel: weekLabel(entry.date)}
		// Each bucket's ratio uses the four weeks strictly preceding that
		// bucket, independent of today.
		windowStart := i - chronicWeeks
		if windowStart >= 0 {
			var sum float64
			for _, prior := range keys[windowStart:i] {
				sum += totals[prior].total
			}
			chronic := sum / chronicWeeks
			if chronic > 0 {
				ratio := roundLoad(entry.total / chronic)
				point.Ratio = &ratio
			}
		}
		history = append(history, point)
	}

	acute := roundLoad(totals[numeric.ISODate(currentWeekStart)].total)
	var chronicSum float64
	for i := 1; i <= chronicWeeks; i++ {
		key := numeric.ISODate(currentWeekStart.AddDate(0, 0, -7*i))
		chronicSum += totals[key].total
	}
	chronic := roundLoad(chronicSum / chronicWeeks)

	// Chronic of zero with positive acute reports 0 rather than an undefined
	// ratio. Arguably a "new athlete" sentinel would serve better; kept as-is
	// pending product review.
	var ratio *float64
	switch {
	case chronic > 0:
		value := roundLoad(acute / chronic)
		ratio = &value
	case acute > 0:
		value := 0.0
		ratio = &value
	}

	var remainingCapacity *float64
	if chronic > 0 {
		capacity := roundLoad(chronic*targetRangeHi - acute)
		if capacity < 0 {
			capacity = 0
		}
		remainingCapacity = &capacity
	}

	var lastUpdated *string
	for _, w := range computed {
		if w.WorkoutDate == "" {
			continue
		}
		if lastUpdated == nil || w.WorkoutDate > *lastUpdated {
			date := w.WorkoutDate
			lastUpdated = &date
		}
	}

	return Report{
		Workouts:    computed,
		WeeklyLoad:  weekly,
		AcwrHistory: history,
		Summary: Summary{
			Ratio:             ratio,
			AcuteLoad:         acute,
			ChronicLoad:       chronic,
			RemainingCapacity: remainingCapacity,
			Status:            classify(ratio),
			TargetRange:       Range{Min: targetRangeLo, Max: targetRangeHi},
			LastUpdated:       lastUpdated,
		},
		Suggestions: buildSuggestions(ratio, remainingCapacity),
	}
}

// classify maps a ratio onto the guidance bands. The 0.8 and 1.3 boundaries
// are inclusive on the productive side.
func classify(ratio *float64) Status {
	if ratio == nil {
		return Status{
			Label:       "Need more data",
			Tone:        ToneMuted,
			Description: "Log consistent workouts for at least four weeks to unlock ACWR guidance.",
		}
	}
	switch {
	case *ratio < targetRangeLo:
		return Status{
			Label:       "Undertraining / Caution",
			Tone:        ToneCaution,
			Description: "Gradual load increases will help build resilience without spiking injury risk.",
		}
	case *ratio <= targetRangeHi:
		return Status{
			Label:       "Productive Load",
			Tone:        TonePositive,
			Description: "Training stress is in the sweet spot. Maintain this rhythm to keep progressing.",
		}
	case *ratio <= monitorCeil:
		return Status{
			Label:       "Monitor Load",
			Tone:        ToneWarning,
			Description: "You are edging past the safe zone. Add recovery or easy volume to stabilize.",
		}
	default:
		return Status{
			Label:       "High Risk / Deload",
			Tone:        ToneDanger,
			Description: "Acute stress is spiking. Prioritize rest sessions before stacking harder work.",
		}
	}
}

// startOfWeek shifts a date back to the Sunday of its week, UTC midnight.
func startOfWeek(t time.Time) time.Time {
	t = t.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return date.AddDate(0, 0, -int(date.Weekday()))
}

func parseWorkoutDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	return numeric.ParseTimestamp(value)
}

func weekLabel(t time.Time) string {
	return t.Format("Jan 2")
}

func roundLoad(value float64) float64 {
	if rounded := numeric.Round2(&value); rounded != nil {
		return *rounded
	}
	return 0
}
