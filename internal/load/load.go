// Package load implements the per-workout training-load model: an internal
// (physiological) load derived from heart-rate reserve, an external
// (mechanical) load derived from distance and speed, and their combination.
package load

import (
	"math"
	"strings"

	"fitsync-api-go/internal/numeric"
)

// DistanceUnit selects the unit both distance and speed are scaled to before
// the load products are taken.
type DistanceUnit string

const (
	UnitKilometers DistanceUnit = "km"
	UnitMiles      DistanceUnit = "mi"

	// Banister TRIMP exponents. The dose-response exponent depends on
	// biological sex; unknown falls back to the male value.
	femaleBeta = 1.67
	maleBeta   = 1.92
)

// Input is the projection of a workout the load model consumes. All metric
// fields are optional; the model degrades to nil outputs rather than guessing.
type Input struct {
	DistanceKm       *float64
	DistanceMeters   *float64
	DurationMinutes  *float64
	AvgSpeedKmh      *float64
	AvgHeartRate     *float64
	MaxHeartRate     *float64
	RestingHeartRate *float64
	Sex              *string
}

// Computation is the resolved output of the load model.
type Computation struct {
	DistanceKm       *float64
	AvgSpeedKmh      *float64
	DeltaHR          *float64
	InternalLoad     *float64
	ExternalLoad     *float64
	TotalSessionLoad *float64
	Beta             float64
}

// BetaForSex resolves the TRIMP exponent from a free-text sex value using a
// case-insensitive prefix match; anything unrecognized gets the male exponent.
func BetaForSex(sex *string) float64 {
	if sex == nil {
		return maleBeta
	}
	normalized := strings.ToLower(strings.TrimSpace(*sex))
	if strings.HasPrefix(normalized, "f") {
		return femaleBeta
	}
	return maleBeta
}

// DeltaHR computes the heart-rate reserve fraction
// (avg - resting) / (max - resting), clamped to [0, 1]. Nil when any input is
// missing or the reserve denominator is not positive.
func DeltaHR(avg, resting, max *float64) *float64 {
	if avg == nil || resting == nil || max == nil {
		return nil
	}
	denominator := *max - *resting
	if denominator <= 0 {
		return nil
	}
	ratio := (*avg - *resting) / denominator
	if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil
	}
	clamped := numeric.Clamp(ratio, 0, 1)
	return &clamped
}

func resolveDistanceKm(distanceKm, distanceMeters *float64) *float64 {
	if distanceKm != nil {
		return distanceKm
	}
	if distanceMeters != nil {
		km := *distanceMeters / 1000
		return &km
	}
	return nil
}

func resolveAvgSpeed(distanceKm, durationMinutes, avgSpeedKmh *float64) *float64 {
	if avgSpeedKmh != nil {
		return avgSpeedKmh
	}
	if distanceKm == nil || durationMinutes == nil || *durationMinutes <= 0 {
		return nil
	}
	speed := *distanceKm / (*durationMinutes / 60)
	return &speed
}

func convert(value float64, unit DistanceUnit) float64 {
	if unit == UnitMiles {
		return numeric.KmToMi(value)
	}
	return value
}

// InternalLoad is distance * deltaHR * e^(beta * deltaHR), the exponential
// dose-response term scaled by work performed. Nil when distance or deltaHR
// is missing.
func InternalLoad(distanceKm, deltaHR *float64, sex *string, unit DistanceUnit) *float64 {
	if distanceKm == nil || deltaHR == nil {
		return nil
	}
	beta := BetaForSex(sex)
	value := convert(*distanceKm, unit) * *deltaHR * math.Exp(beta**deltaHR)
	return numeric.Round2(&value)
}

// ExternalLoad is distance * average speed, a plain work-rate proxy. Both
// factors are converted to the same unit before multiplying.
func ExternalLoad(distanceKm, avgSpeedKmh *float64, unit DistanceUnit) *float64 {
	if distanceKm == nil || avgSpeedKmh == nil {
		return nil
	}
	value := convert(*distanceKm, unit) * convert(*avgSpeedKmh, unit)
	return numeric.Round2(&value)
}

// TotalSessionLoad sums internal and external load, treating a missing
// component as 0. A non-positive sum falls back to whichever component is
// present so absent data is never reported as a genuine zero-load session.
func TotalSessionLoad(internal, external *float64) *float64 {
	if internal == nil && external == nil {
		return nil
	}
	total := 0.0
	if internal != nil {
		total += *internal
	}
	if external != nil {
		total += *external
	}
	if total <= 0 {
		if internal != nil {
			return internal
		}
		return external
	}
	return numeric.Round2(&total)
}

// Compute resolves distance and speed from the input, derives the heart-rate
// reserve fraction and the three load figures. Load outputs are rounded to
// two decimals; DeltaHR is reported unrounded.
func Compute(input Input, unit DistanceUnit) Computation {
	if unit == "" {
		unit = UnitKilometers
	}
	distanceKm := resolveDistanceKm(input.DistanceKm, input.DistanceMeters)
	avgSpeedKmh := resolveAvgSpeed(distanceKm, input.DurationMinutes, input.AvgSpeedKmh)
	deltaHR := DeltaHR(input.AvgHeartRate, input.RestingHeartRate, input.MaxHeartRate)
	internal := InternalLoad(distanceKm, deltaHR, input.Sex, unit)
	external := ExternalLoad(distanceKm, avgSpeedKmh, unit)

	return Computation{
		DistanceKm:       distanceKm,
		AvgSpeedKmh:      avgSpeedKmh,
		DeltaHR:          deltaHR,
		InternalLoad:     internal,
		ExternalLoad:     external,
		TotalSessionLoad: TotalSessionLoad(internal, external),
		Beta:             BetaForSex(input.Sex),
	}
}
