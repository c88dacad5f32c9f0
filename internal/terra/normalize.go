package terra

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitsync-api-go/internal/load"
	"fitsync-api-go/internal/numeric"
	"fitsync-api-go/internal/workout"
)

// Meta is the call metadata accompanying a raw payload: the provider and the
// external/local user identity already resolved by the caller.
type Meta struct {
	Provider    string
	TerraUserID string
	UserID      string
}

const zoneCount = 5

// Normalize maps one raw Terra workout payload into a canonical record.
// It is total over payload content: missing or malformed optional fields
// normalize to nil, never abort. The only error is a body that is not a JSON
// object at all. The raw bytes are retained verbatim on the record.
func Normalize(raw json.RawMessage, meta Meta) (workout.Record, error) {
	return normalizeAt(raw, meta, time.Now().UTC())
}

// normalizeAt is Normalize with an injected clock. Two calls with the same
// payload and clock yield byte-identical records, which is what makes upsert
// retries safe.
func normalizeAt(raw json.RawMessage, meta Meta, now time.Time) (workout.Record, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return workout.Record{}, fmt.Errorf("decode workout payload: %w", err)
	}

	metadata := payload.metadata()
	distanceSummary := payload.distanceSummary()
	heartSummary := payload.heartRateSummary()
	movement := payload.movementSummary()

	// Fabricating "now" for a missing start time is a deliberate policy so a
	// payload without timestamps still lands somewhere; callers treat it as
	// abnormal. A missing end time yields a zero-duration workout instead of
	// an unknown one.
	startedAt := firstText(pickText(metadata.StartTime, payload.StartTime), now.Format(time.RFC3339))
	endedAt := firstText(pickText(metadata.EndTime, payload.EndTime), startedAt)
	workoutDate := isoDateOr(startedAt, now)
	durationMinutes := numeric.Round2(numeric.MinutesBetween(startedAt, endedAt))
	weekNumber := numeric.ISOWeek(workoutDate)

	terraWorkoutID := resolveWorkoutID(payload, metadata, meta.TerraUserID, startedAt)

	calories := pickNumber(
		payload.Calories,
		caloriesField(payload.CaloriesData, func(c *CaloriesData) *FlexFloat { return c.TotalBurnedCalories }),
		caloriesField(payload.CaloriesData, func(c *CaloriesData) *FlexFloat { return c.NetActivityCalories }),
		energyField(payload.EnergyData),
		workField(payload.WorkData),
	)

	distanceMeters := pickNumber(payload.Distance, distanceSummary.DistanceMeters)
	var distanceKm *float64
	if distanceMeters != nil {
		km := *distanceMeters / 1000
		distanceKm = numeric.Round2(&km)
	}

	steps := pickNumber(payload.Steps, distanceSummary.Steps)

	avgHeartRate := pickNumber(payload.AverageHeartRate, heartSummary.AvgHRBpm)
	maxHeartRate := pickNumber(payload.MaxHeartRate, heartSummary.MaxHRBpm)
	restingHeartRate := heartSummary.RestingHRBpm.Ptr()
	hrMax := maxHeartRate
	if hrMax == nil {
		hrMax = heartSummary.UserMaxHRBpm.Ptr()
	}

	rpe := estimateRPE(avgHeartRate)

	var baseElevation *float64
	if distanceSummary.Elevation != nil {
		baseElevation = distanceSummary.Elevation.GainActualMeters.Ptr()
	}

	zones := mapHeartRateZones(heartSummary.HRZoneData)

	typeOfWorkout := pickText(metadata.Name, metadata.Type, payload.Type)
	modality := pickText(metadata.Name, metadata.Type, payload.Type)

	avgSpeedMps := movement.AvgSpeedMps.Ptr()
	if avgSpeedMps == nil && distanceMeters != nil && durationMinutes != nil && *durationMinutes > 0 {
		mps := *distanceMeters / (*durationMinutes * 60)
		avgSpeedMps = &mps
	}
	maxSpeedMps := pickNumber(
		movement.MaxSpeedMps,
		movement.MaxVelocityMps,
		movement.AdjustedMaxSpeedMps,
		movement.NormalizedSpeedMps,
	)

	avgSpeedKmh := numeric.MetersPerSecondToKmh(avgSpeedMps)
	maxSpeedKmh := numeric.MetersPerSecondToKmh(maxSpeedMps)

	avgPace := movement.AvgPaceMinPerKm.Ptr()
	if avgPace == nil {
		avgPace = numeric.MetersPerSecondToPace(avgSpeedMps)
	}
	bestPace := movement.MaxPaceMinPerKm.Ptr()
	if bestPace == nil {
		bestPace = numeric.MetersPerSecondToPace(maxSpeedMps)
	}

	source := meta.Provider
	if picked := pickText(payload.Source, metadata.Source); picked != nil {
		source = *picked
	}

	// Sex is never carried by provider payloads, so internal load always uses
	// the default (male) exponent. Known modeling gap, kept for compatibility
	// with historical rows.
	computation := load.Compute(load.Input{
		DistanceKm:       distanceKm,
		DistanceMeters:   distanceMeters,
		DurationMinutes:  durationMinutes,
		AvgSpeedKmh:      avgSpeedKmh,
		AvgHeartRate:     avgHeartRate,
		MaxHeartRate:     maxHeartRate,
		RestingHeartRate: restingHeartRate,
		Sex:              nil,
	}, load.UnitKilometers)

	totalSessionLoad := computation.TotalSessionLoad
	if totalSessionLoad == nil {
		totalSessionLoad = computation.InternalLoad
	}
	if totalSessionLoad == nil {
		totalSessionLoad = computation.ExternalLoad
	}
	if totalSessionLoad == nil {
		totalSessionLoad = calories
	}

	return workout.Record{
		TerraWorkoutID:   terraWorkoutID,
		TerraUserID:      meta.TerraUserID,
		Provider:         meta.Provider,
		UserID:           meta.UserID,
		TypeOfWorkout:    typeOfWorkout,
		Modality:         modality,
		Source:           source,
		StartedAt:        startedAt,
		EndedAt:          endedAt,
		WorkoutDate:      workoutDate,
		DurationMinutes:  durationMinutes,
		WeekNumber:       weekNumber,
		Calories:         calories,
		DistanceKm:       distanceKm,
		DistanceMeters:   distanceMeters,
		Steps:            steps,
		BaseElevation:    baseElevation,
		AvgHeartRate:     avgHeartRate,
		MaxHeartRate:     maxHeartRate,
		RHR:              restingHeartRate,
		HRMax:            hrMax,
		HRAvg:            avgHeartRate,
		DeltaHR:          computation.DeltaHR,
		RPE:              rpe,
		Zone1:            zones[0],
		Zone2:            zones[1],
		Zone3:            zones[2],
		Zone4:            zones[3],
		Zone5:            zones[4],
		AvgSpeedKmh:      avgSpeedKmh,
		MaxSpeedKmh:      maxSpeedKmh,
		AvgPaceMinPerKm:  avgPace,
		BestPaceMinPerKm: bestPace,
		InternalLoad:     computation.InternalLoad,
		ExternalLoad:     computation.ExternalLoad,
		TotalSessionLoad: totalSessionLoad,
		RawPayload:       raw,
		LastSyncedAt:     now.Format(time.RFC3339),
	}, nil
}

// resolveWorkoutID prefers the payload's own id fields and otherwise
// synthesizes "{terraUserId}-{startedAt}" so re-deliveries of the same event
// collide onto the same upsert key. The random fallback exists only for the
// degenerate case where even the synthesized key is empty.
func resolveWorkoutID(payload Payload, metadata Metadata, terraUserID, startedAt string) string {
	if id := pickText(payload.ID, metadata.SummaryID); id != nil {
		return *id
	}
	if synthesized := terraUserID + "-" + startedAt; synthesized != "-" {
		return synthesized
	}
	return uuid.NewString()
}

// estimateRPE derives a crude 1-10 perceived-exertion proxy from average
// heart rate. It stands in only when the athlete supplied no subjective RPE.
func estimateRPE(avgHeartRate *float64) *float64 {
	if avgHeartRate == nil {
		return nil
	}
	estimate := numeric.Clamp(math.Round(*avgHeartRate/20), 1, 10)
	return &estimate
}

// mapHeartRateZones buckets up to five vendor zone entries into the fixed
// zone1..zone5 minute slots. An entry's own 1-indexed zone number wins over
// its array position; minutes resolve through minutes, duration_minutes,
// seconds, then time fields.
func mapHeartRateZones(entries []map[string]interface{}) [zoneCount]*float64 {
	var zones [zoneCount]*float64
	for index, entry := range entries {
		if index >= zoneCount {
			break
		}
		slot := index
		if number := looseNumber(entry["zone"]); number != nil && *number >= 1 && *number <= zoneCount {
			slot = int(*number) - 1
		}
		minutes := looseNumber(entry["minutes"])
		if minutes == nil {
			minutes = looseNumber(entry["duration_minutes"])
		}
		if minutes == nil {
			if seconds := looseNumber(entry["seconds"]); seconds != nil {
				converted := *seconds / 60
				minutes = &converted
			}
		}
		if minutes == nil {
			minutes = looseNumber(entry["time"])
		}
		zones[slot] = numeric.Round2(minutes)
	}
	return zones
}

// looseNumber coerces an untyped zone-entry value into a float, accepting
// numbers and numeric strings the way FlexFloat does for typed fields.
func looseNumber(value interface{}) *float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	case json.Number:
		if parsed, err := v.Float64(); err == nil {
			return &parsed
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &parsed
		}
	}
	return nil
}

func firstText(value *string, fallback string) string {
	if value != nil {
		return *value
	}
	return fallback
}

func isoDateOr(timestamp string, now time.Time) string {
	if parsed := numeric.ParseTimestamp(timestamp); parsed != nil {
		return numeric.ISODate(*parsed)
	}
	return numeric.ISODate(now)
}

func caloriesField(data *CaloriesData, pick func(*CaloriesData) *FlexFloat) *FlexFloat {
	if data == nil {
		return nil
	}
	return pick(data)
}

func energyField(data *EnergyData) *FlexFloat {
	if data == nil {
		return nil
	}
	return data.EnergyKilojoules
}

func workField(data *WorkData) *FlexFloat {
	if data == nil {
		return nil
	}
	return data.WorkKilojoules
}
