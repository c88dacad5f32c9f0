// Package terra integrates the Terra aggregation API: webhook signature
// verification, the two coexisting workout payload shapes (legacy flat and
// structured nested), normalization into canonical records, and the REST
// client used by the background poll job.
package terra

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexFloat decodes a JSON number or a numeric string. Anything else decodes
// to a "not present" value instead of failing the surrounding payload.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*f = FlexFloat(number)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			*f = FlexFloat(parsed)
			return nil
		}
	}
	*f = FlexFloat(math.NaN())
	return nil
}

// Ptr returns the decoded value, or nil when the field was absent, null, or
// not numeric.
func (f *FlexFloat) Ptr() *float64 {
	if f == nil || math.IsNaN(float64(*f)) || math.IsInf(float64(*f), 0) {
		return nil
	}
	value := float64(*f)
	return &value
}

// FlexString decodes a JSON string or number; vendors send workout type ids
// both ways. Anything else decodes to empty.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = FlexString(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		*s = FlexString(number.String())
		return nil
	}
	*s = ""
	return nil
}

// Ptr returns the trimmed text, or nil when absent or blank.
func (s *FlexString) Ptr() *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(string(*s))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// pickText returns the first present, non-blank candidate.
func pickText(candidates ...*FlexString) *string {
	for _, candidate := range candidates {
		if text := candidate.Ptr(); text != nil {
			return text
		}
	}
	return nil
}

// pickNumber returns the first present numeric candidate.
func pickNumber(candidates ...*FlexFloat) *float64 {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if value := candidate.Ptr(); value != nil {
			return value
		}
	}
	return nil
}

// Metadata is the structured-shape header block.
type Metadata struct {
	SummaryID   *FlexString `json:"summary_id"`
	StartTime   *FlexString `json:"start_time"`
	EndTime     *FlexString `json:"end_time"`
	Name        *FlexString `json:"name"`
	Type        *FlexString `json:"type"`
	SportTypeID *FlexString `json:"sport_type_id"`
	Source      *FlexString `json:"source"`
}

type Elevation struct {
	GainActualMeters *FlexFloat `json:"gain_actual_meters"`
	LossActualMeters *FlexFloat `json:"loss_actual_meters"`
	AvgMeters        *FlexFloat `json:"avg_meters"`
}

type DistanceSummary struct {
	DistanceMeters *FlexFloat `json:"distance_meters"`
	Steps          *FlexFloat `json:"steps"`
	Elevation      *Elevation `json:"elevation"`
}

type DistanceData struct {
	Summary *DistanceSummary `json:"summary"`
}

// HeartRateSummary carries the HR triad plus the vendor zone array. Zone
// entries have no stable schema, so they stay as loose maps and are probed
// key by key.
type HeartRateSummary struct {
	AvgHRBpm     *FlexFloat               `json:"avg_hr_bpm"`
	MaxHRBpm     *FlexFloat               `json:"max_hr_bpm"`
	RestingHRBpm *FlexFloat               `json:"resting_hr_bpm"`
	UserMaxHRBpm *FlexFloat               `json:"user_max_hr_bpm"`
	HRZoneData   []map[string]interface{} `json:"hr_zone_data"`
}

type HeartRateData struct {
	Summary *HeartRateSummary `json:"summary"`
}

type MovementSummary struct {
	AvgSpeedMps         *FlexFloat `json:"avg_speed_meters_per_second"`
	MaxSpeedMps         *FlexFloat `json:"max_speed_meters_per_second"`
	MaxVelocityMps      *FlexFloat `json:"max_velocity_meters_per_second"`
	NormalizedSpeedMps  *FlexFloat `json:"normalized_speed_meters_per_second"`
	AdjustedMaxSpeedMps *FlexFloat `json:"adjusted_max_speed_meters_per_second"`
	AvgPaceMinPerKm     *FlexFloat `json:"avg_pace_minutes_per_kilometer"`
	MaxPaceMinPerKm     *FlexFloat `json:"max_pace_minutes_per_kilometer"`
}

type CaloriesData struct {
	TotalBurnedCalories *FlexFloat `json:"total_burned_calories"`
	NetActivityCalories *FlexFloat `json:"net_activity_calories"`
}

type EnergyData struct {
	EnergyKilojoules *FlexFloat `json:"energy_kilojoules"`
}

type WorkData struct {
	WorkKilojoules *FlexFloat `json:"work_kilojoules"`
}

// Payload is one workout event as delivered by Terra. The flat top-level
// fields are the legacy shape; the *_data blocks are the structured shape.
// Both can appear in the same payload and each field resolves independently.
type Payload struct {
	ID               *FlexString      `json:"id"`
	StartTime        *FlexString      `json:"start_time"`
	EndTime          *FlexString      `json:"end_time"`
	Calories         *FlexFloat       `json:"calories"`
	Distance         *FlexFloat       `json:"distance"`
	Steps            *FlexFloat       `json:"steps"`
	AverageHeartRate *FlexFloat       `json:"average_heart_rate"`
	MaxHeartRate     *FlexFloat       `json:"max_heart_rate"`
	Type             *FlexString      `json:"type"`
	Source           *FlexString      `json:"source"`
	Metadata         *Metadata        `json:"metadata"`
	DistanceData     *DistanceData    `json:"distance_data"`
	HeartRateData    *HeartRateData   `json:"heart_rate_data"`
	CaloriesData     *CaloriesData    `json:"calories_data"`
	EnergyData       *EnergyData      `json:"energy_data"`
	WorkData         *WorkData        `json:"work_data"`
	MovementData     *MovementSummary `json:"movement_data"`
}

func (p *Payload) metadata() Metadata {
	if p.Metadata == nil {
		return Metadata{}
	}
	return *p.Metadata
}

func (p *Payload) distanceSummary() DistanceSummary {
	if p.DistanceData == nil || p.DistanceData.Summary == nil {
		return DistanceSummary{}
	}
	return *p.DistanceData.Summary
}

func (p *Payload) heartRateSummary() HeartRateSummary {
	if p.HeartRateData == nil || p.HeartRateData.Summary == nil {
		return HeartRateSummary{}
	}
	return *p.HeartRateData.Summary
}

func (p *Payload) movementSummary() MovementSummary {
	if p.MovementData == nil {
		return MovementSummary{}
	}
	return *p.MovementData
}
