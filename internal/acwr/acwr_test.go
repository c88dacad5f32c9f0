package acwr

import (
	"math"
	"testing"
	"time"

	"fitsync-api-go/internal/load"
	"fitsync-api-go/internal/numeric"
)

// sunday 2025-06-15; the four preceding week starts are Jun 8, Jun 1,
// May 25 and May 18.
var testToday = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func run(date string, distanceKm, avgSpeedKmh float64) Workout {
	return Workout{
		WorkoutDate: date,
		Input: load.Input{
			DistanceKm:  numeric.Float(distanceKm),
			AvgSpeedKmh: numeric.Float(avgSpeedKmh),
		},
	}
}

func TestSummarizeEmpty(t *testing.T) {
	report := Summarize(nil, Options{Today: testToday})

	if len(report.WeeklyLoad) != historyWeeks {
		t.Fatalf("weekly load: got %d points, want %d", len(report.WeeklyLoad), historyWeeks)
	}
	for _, point := range report.WeeklyLoad {
		if point.TotalLoad != 0 {
			t.Fatalf("week %s: got %v, want 0", point.WeekStart, point.TotalLoad)
		}
	}
	if report.WeeklyLoad[0].WeekStart != "2025-03-30" || report.WeeklyLoad[11].WeekStart != "2025-06-15" {
		t.Fatalf("window bounds: %s .. %s", report.WeeklyLoad[0].WeekStart, report.WeeklyLoad[11].WeekStart)
	}
	for _, point := range report.AcwrHistory {
		if point.Ratio != nil {
			t.Fatalf("week %s: expected nil ratio with no load", point.WeekStart)
		}
	}

	s := report.Summary
	if s.Ratio != nil || s.AcuteLoad != 0 || s.ChronicLoad != 0 || s.RemainingCapacity != nil || s.LastUpdated != nil {
		t.Fatalf("summary not empty: %+v", s)
	}
	if s.Status.Tone != ToneMuted || s.Status.Label != "Need more data" {
		t.Fatalf("status: %+v", s.Status)
	}
	if s.TargetRange.Min != 0.8 || s.TargetRange.Max != 1.3 {
		t.Fatalf("target range: %+v", s.TargetRange)
	}
	if len(report.Suggestions) != 3 || report.Suggestions[0].Title != "Consistency First" {
		t.Fatalf("suggestions: %+v", report.Suggestions)
	}
}

func TestSummarizeProductiveWeek(t *testing.T) {
	// 10 km at 10 km/h is an external load of 100 per run.
	workouts := []Workout{
		run("2025-05-18", 10, 10),
		run("2025-05-25", 10, 10),
		run("2025-06-01", 10, 10),
		run("2025-06-08", 10, 10),
		run("2025-06-15", 12, 10),
	}
	report := Summarize(workouts, Options{Today: testToday})

	s := report.Summary
	if s.AcuteLoad != 120 {
		t.Fatalf("acute: got %v", s.AcuteLoad)
	}
	if s.ChronicLoad != 100 {
		t.Fatalf("chronic: got %v", s.ChronicLoad)
	}
	if s.Ratio == nil || *s.Ratio != 1.2 {
		t.Fatalf("ratio: got %v", s.Ratio)
	}
	if s.Status.Label != "Productive Load" || s.Status.Tone != TonePositive {
		t.Fatalf("status: %+v", s.Status)
	}
	if s.RemainingCapacity == nil || *s.RemainingCapacity != 10 {
		t.Fatalf("remaining capacity: got %v", s.RemainingCapacity)
	}
	if s.LastUpdated == nil || *s.LastUpdated != "2025-06-15" {
		t.Fatalf("last updated: got %v", s.LastUpdated)
	}

	last := report.WeeklyLoad[len(report.WeeklyLoad)-1]
	if last.WeekStart != "2025-06-15" || last.TotalLoad != 120 {
		t.Fatalf("current week bucket: %+v", last)
	}
	if last.WeekLabel != "Jun 15" {
		t.Fatalf("week label: %q", last.WeekLabel)
	}

	// Each history bucket measures against the four weeks preceding it.
	history := report.AcwrHistory
	current := history[len(history)-1]
	if current.Ratio == nil || *current.Ratio != 1.2 {
		t.Fatalf("current history ratio: %v", current.Ratio)
	}
	previous := history[len(history)-2]
	// Jun 8's window holds three 100-load weeks and one empty one.
	if previous.Ratio == nil || *previous.Ratio != 1.33 {
		t.Fatalf("previous history ratio: %v", previous.Ratio)
	}
	for _, point := range history[:chronicWeeks] {
		if point.Ratio != nil {
			t.Fatalf("week %s: ratio should be nil without four preceding weeks", point.WeekStart)
		}
	}
}

func TestSummarizeGapWeeksCountAsZero(t *testing.T) {
	workouts := []Workout{
		run("2025-05-18", 10, 10),
		run("2025-06-08", 10, 10),
		run("2025-06-15", 12, 10),
	}
	report := Summarize(workouts, Options{Today: testToday})

	if report.Summary.ChronicLoad != 50 {
		t.Fatalf("chronic with two gap weeks: got %v", report.Summary.ChronicLoad)
	}
	if report.Summary.Ratio == nil || *report.Summary.Ratio != 2.4 {
		t.Fatalf("ratio: got %v", report.Summary.Ratio)
	}
	if report.Summary.Status.Tone != ToneDanger {
		t.Fatalf("status: %+v", report.Summary.Status)
	}
	if report.Summary.RemainingCapacity == nil || *report.Summary.RemainingCapacity != 0 {
		t.Fatalf("overshoot should clamp capacity to 0: %v", report.Summary.RemainingCapacity)
	}
	if report.Suggestions[0].Title != "Micro Deload" {
		t.Fatalf("deload suggestions expected: %+v", report.Suggestions[0])
	}
}

func TestSummarizeNoChronicHistory(t *testing.T) {
	report := Summarize([]Workout{run("2025-06-15", 10, 10)}, Options{Today: testToday})

	s := report.Summary
	if s.Ratio == nil || *s.Ratio != 0 {
		t.Fatalf("positive acute over zero chronic should report 0, got %v", s.Ratio)
	}
	if s.RemainingCapacity != nil {
		t.Fatalf("capacity is undefined without chronic load: %v", s.RemainingCapacity)
	}
	if s.Status.Tone != ToneCaution {
		t.Fatalf("status: %+v", s.Status)
	}
}

func TestSummarizeMiles(t *testing.T) {
	report := Summarize([]Workout{run("2025-06-15", 10, 10)}, Options{Today: testToday, Unit: load.UnitMiles})
	if math.Abs(report.Summary.AcuteLoad-38.61) > 1e-9 {
		t.Fatalf("acute in miles: got %v", report.Summary.AcuteLoad)
	}
}

func TestSummarizeIgnoresWorkoutsOutsideWindow(t *testing.T) {
	report := Summarize([]Workout{
		run("2024-01-07", 10, 10),
		run("2025-06-15", 10, 10),
	}, Options{Today: testToday})

	// The stale workout still appears in the computed list but lands in no
	// display bucket.
	if len(report.Workouts) != 2 {
		t.Fatalf("computed workouts: got %d", len(report.Workouts))
	}
	if len(report.WeeklyLoad) != historyWeeks {
		t.Fatalf("weekly load: got %d points", len(report.WeeklyLoad))
	}
	var total float64
	for _, point := range report.WeeklyLoad {
		total += point.TotalLoad
	}
	if total != 100 {
		t.Fatalf("window total: got %v", total)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		ratio *float64
		tone  Tone
		label string
	}{
		{"nil", nil, ToneMuted, "Need more data"},
		{"below range", numeric.Float(0.79), ToneCaution, "Undertraining / Caution"},
		{"lower bound inclusive", numeric.Float(0.8), TonePositive, "Productive Load"},
		{"upper bound inclusive", numeric.Float(1.3), TonePositive, "Productive Load"},
		{"just over", numeric.Float(1.31), ToneWarning, "Monitor Load"},
		{"monitor ceiling", numeric.Float(1.5), ToneWarning, "Monitor Load"},
		{"danger", numeric.Float(1.51), ToneDanger, "High Risk / Deload"},
	}
	for _, tc := range cases {
		got := classify(tc.ratio)
		if got.Tone != tc.tone || got.Label != tc.label {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

func TestStartOfWeek(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-06-15", "2025-06-15"},
		{"2025-06-16", "2025-06-15"},
		{"2025-06-21", "2025-06-15"},
		{"2025-06-22", "2025-06-22"},
	}
	for _, tc := range cases {
		parsed := numeric.ParseTimestamp(tc.in)
		if got := numeric.ISODate(startOfWeek(*parsed)); got != tc.want {
			t.Fatalf("startOfWeek(%s): got %s want %s", tc.in, got, tc.want)
		}
	}
}
