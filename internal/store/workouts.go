package store

import (
	"context"
	"fmt"

	"fitsync-api-go/internal/acwr"
	"fitsync-api-go/internal/load"
	"fitsync-api-go/internal/workout"
)

const upsertWorkoutSQL = `
INSERT INTO workouts (
	terra_workout_id, terra_user_id, provider, user_id,
	type_of_workout, modality, source,
	started_at, ended_at, workout_date, duration_minutes, week_number,
	calories, distance_km, distance_meters, steps, base_el,
	avg_heart_rate, max_heart_rate, rhr, hr_max, hr_avg, delta_hr, rpe,
	zone1, zone2, zone3, zone4, zone5,
	avg_speed_kmh, max_speed_kmh, avg_pace_min_per_km, best_pace_min_per_km,
	internal_load, external_load, total_session_load,
	raw_payload, last_synced_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
	$31, $32, $33, $34, $35, $36, $37, $38
)
ON CONFLICT (user_id, terra_workout_id) DO UPDATE SET
	terra_user_id = EXCLUDED.terra_user_id,
	provider = EXCLUDED.provider,
	type_of_workout = EXCLUDED.type_of_workout,
	modality = EXCLUDED.modality,
	source = EXCLUDED.source,
	started_at = EXCLUDED.started_at,
	ended_at = EXCLUDED.ended_at,
	workout_date = EXCLUDED.workout_date,
	duration_minutes = EXCLUDED.duration_minutes,
	week_number = EXCLUDED.week_number,
	calories = EXCLUDED.calories,
	distance_km = EXCLUDED.distance_km,
	distance_meters = EXCLUDED.distance_meters,
	steps = EXCLUDED.steps,
	base_el = EXCLUDED.base_el,
	avg_heart_rate = EXCLUDED.avg_heart_rate,
	max_heart_rate = EXCLUDED.max_heart_rate,
	rhr = EXCLUDED.rhr,
	hr_max = EXCLUDED.hr_max,
	hr_avg = EXCLUDED.hr_avg,
	delta_hr = EXCLUDED.delta_hr,
	rpe = EXCLUDED.rpe,
	zone1 = EXCLUDED.zone1,
	zone2 = EXCLUDED.zone2,
	zone3 = EXCLUDED.zone3,
	zone4 = EXCLUDED.zone4,
	zone5 = EXCLUDED.zone5,
	avg_speed_kmh = EXCLUDED.avg_speed_kmh,
	max_speed_kmh = EXCLUDED.max_speed_kmh,
	avg_pace_min_per_km = EXCLUDED.avg_pace_min_per_km,
	best_pace_min_per_km = EXCLUDED.best_pace_min_per_km,
	internal_load = EXCLUDED.internal_load,
	external_load = EXCLUDED.external_load,
	total_session_load = EXCLUDED.total_session_load,
	raw_payload = EXCLUDED.raw_payload,
	last_synced_at = EXCLUDED.last_synced_at`

// UpsertWorkouts writes the batch keyed by (user_id, terra_workout_id):
// re-delivery of the same external workout overwrites instead of duplicating.
// The batch is transactional so a retried delivery never half-applies.
func (s *Store) UpsertWorkouts(ctx context.Context, records []workout.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workout upsert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx, upsertWorkoutSQL,
			r.TerraWorkoutID, r.TerraUserID, r.Provider, r.UserID,
			r.TypeOfWorkout, r.Modality, r.Source,
			r.StartedAt, r.EndedAt, r.WorkoutDate, r.DurationMinutes, r.WeekNumber,
			r.Calories, r.DistanceKm, r.DistanceMeters, r.Steps, r.BaseElevation,
			r.AvgHeartRate, r.MaxHeartRate, r.RHR, r.HRMax, r.HRAvg, r.DeltaHR, r.RPE,
			r.Zone1, r.Zone2, r.Zone3, r.Zone4, r.Zone5,
			r.AvgSpeedKmh, r.MaxSpeedKmh, r.AvgPaceMinPerKm, r.BestPaceMinPerKm,
			r.InternalLoad, r.ExternalLoad, r.TotalSessionLoad,
			[]byte(r.RawPayload), r.LastSyncedAt,
		); err != nil {
			return fmt.Errorf("upsert workout %s: %w", r.TerraWorkoutID, err)
		}
	}

	return tx.Commit()
}

// TrainingLoadWorkouts bulk-loads the projection the ACWR aggregator
// consumes for one user.
func (s *Store) TrainingLoadWorkouts(ctx context.Context, userID string) ([]acwr.Workout, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workout_date, distance_km, distance_meters, duration_minutes,
		        avg_speed_kmh, avg_heart_rate, max_heart_rate, rhr
		 FROM workouts
		 WHERE user_id = $1
		 ORDER BY workout_date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query training-load workouts: %w", err)
	}
	defer rows.Close()

	var workouts []acwr.Workout
	for rows.Next() {
		var w acwr.Workout
		var input load.Input
		if err := rows.Scan(
			&w.WorkoutDate, &input.DistanceKm, &input.DistanceMeters, &input.DurationMinutes,
			&input.AvgSpeedKmh, &input.AvgHeartRate, &input.MaxHeartRate, &input.RestingHeartRate,
		); err != nil {
			return nil, fmt.Errorf("scan training-load workout: %w", err)
		}
		w.Input = input
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}
