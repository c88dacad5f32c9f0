// Package workout defines the canonical, vendor-agnostic workout record
// produced by the payload normalizer and persisted by the store. The JSON
// field names are the persistence contract and must not drift.
package workout

import "encoding/json"

// Record is one normalized workout. Identity is (UserID, TerraWorkoutID);
// re-delivery of the same external workout upserts rather than duplicates.
// Metric fields are nil when the source payload did not carry them.
type Record struct {
	TerraWorkoutID string `json:"terra_workout_id"`
	TerraUserID    string `json:"terra_user_id"`
	Provider       string `json:"provider"`
	UserID         string `json:"user_id"`

	TypeOfWorkout *string `json:"type_of_workout"`
	Modality      *string `json:"modality"`
	Source        string  `json:"source"`

	StartedAt       string   `json:"started_at"`
	EndedAt         string   `json:"ended_at"`
	WorkoutDate     string   `json:"workout_date"`
	DurationMinutes *float64 `json:"duration_minutes"`
	WeekNumber      *int     `json:"week_number"`

	Calories       *float64 `json:"calories"`
	DistanceKm     *float64 `json:"distance_km"`
	DistanceMeters *float64 `json:"distance_meters"`
	Steps          *float64 `json:"steps"`
	BaseElevation  *float64 `json:"base_el"`

	AvgHeartRate *float64 `json:"avg_heart_rate"`
	MaxHeartRate *float64 `json:"max_heart_rate"`
	RHR          *float64 `json:"rhr"`
	HRMax        *float64 `json:"hr_max"`
	HRAvg        *float64 `json:"hr_avg"`
	DeltaHR      *float64 `json:"delta_hr"`
	RPE          *float64 `json:"rpe"`

	Zone1 *float64 `json:"zone1"`
	Zone2 *float64 `json:"zone2"`
	Zone3 *float64 `json:"zone3"`
	Zone4 *float64 `json:"zone4"`
	Zone5 *float64 `json:"zone5"`

	AvgSpeedKmh      *float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh      *float64 `json:"max_speed_kmh"`
	AvgPaceMinPerKm  *float64 `json:"avg_pace_min_per_km"`
	BestPaceMinPerKm *float64 `json:"best_pace_min_per_km"`

	InternalLoad     *float64 `json:"internal_load"`
	ExternalLoad     *float64 `json:"external_load"`
	TotalSessionLoad *float64 `json:"total_session_load"`

	RawPayload   json.RawMessage `json:"raw_payload"`
	LastSyncedAt string          `json:"last_synced_at"`
}
