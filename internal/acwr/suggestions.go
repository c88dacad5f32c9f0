package acwr

// Suggestion is one example workout prompt surfaced alongside the summary.
type Suggestion struct {
	Title       string `json:"title"`
	WorkoutType string `json:"workoutType"`
	Duration    string `json:"duration"`
	Distance    string `json:"distance"`
	Description string `json:"description"`
}

// buildSuggestions is a static lookup keyed by the same ratio bands as the
// status classification, with the over-threshold band split on whether any
// headroom remains below the upper guidance line.
func buildSuggestions(ratio, remainingCapacity *float64) []Suggestion {
	if ratio == nil {
		return []Suggestion{
			{
				Title:       "Consistency First",
				WorkoutType: "Easy Run",
				Duration:    "30-40 min",
				Distance:    "4-6 km",
				Description: "Log a few conversational runs this week so the dashboard can learn your baseline.",
			},
			{
				Title:       "Add Strides",
				WorkoutType: "Speed Development",
				Duration:    "20 min + strides",
				Distance:    "3-4 km",
				Description: "Short pickups at 5k pace prime the legs without adding much stress.",
			},
			{
				Title:       "Recovery Support",
				WorkoutType: "Mobility & Walk",
				Duration:    "15-20 min",
				Distance:    "Flexible",
				Description: "Include light strength or walking to reinforce the habit loop.",
			},
		}
	}

	if *ratio < targetRangeLo {
		return []Suggestion{
			{
				Title:       "Easy Volume Run",
				WorkoutType: "Aerobic Base",
				Duration:    "45-55 min",
				Distance:    "7-9 km",
				Description: "Use the remaining capacity to add smooth mileage. Focus on nose-breathing effort.",
			},
			{
				Title:       "Light Tempo Finish",
				WorkoutType: "Steady Finish",
				Duration:    "35-45 min",
				Distance:    "6-7 km",
				Description: "Close the run with a 10 min tempo to gently raise heart rate stimulus.",
			},
			{
				Title:       "Form Drills",
				WorkoutType: "Strides + Mobility",
				Duration:    "25 min",
				Distance:    "Short",
				Description: "Add 4-6 relaxed strides to recruit fast-twitch fibers without heavy stress.",
			},
		}
	}

	if *ratio <= targetRangeHi {
		return []Suggestion{
			{
				Title:       "Maintain the Groove",
				WorkoutType: "Progression Run",
				Duration:    "45-50 min",
				Distance:    "7-8 km",
				Description: "Hold the current rhythm and finish a touch quicker but keep RPE under 6.",
			},
			{
				Title:       "Reload Session",
				WorkoutType: "Threshold Intervals",
				Duration:    "40-45 min",
				Distance:    "6-7 km",
				Description: "2 x 8-10 min at threshold maintains VO2 without spiking stress.",
			},
			{
				Title:       "Recovery Run",
				WorkoutType: "Soft Surface",
				Duration:    "30-35 min",
				Distance:    "4-5 km",
				Description: "Keep at least one super-easy day to defend that optimal ACWR window.",
			},
		}
	}

	if remainingCapacity != nil && *remainingCapacity > 0 {
		return []Suggestion{
			{
				Title:       "Cap Load Early",
				WorkoutType: "Recovery Run",
				Duration:    "25-30 min",
				Distance:    "3-4 km",
				Description: "Use short, gentle running to keep blood flow without stacking load.",
			},
			{
				Title:       "Non-Impact Session",
				WorkoutType: "Bike / Swim",
				Duration:    "35-40 min",
				Distance:    "N/A",
				Description: "Cross-train to maintain aerobic work while letting tissues recover.",
			},
			{
				Title:       "Mobility & Sleep",
				WorkoutType: "Restorative",
				Duration:    "20 min",
				Distance:    "N/A",
				Description: "Prioritize fascia release and sleep to absorb the chronic load already banked.",
			},
		}
	}

	return []Suggestion{
		{
			Title:       "Micro Deload",
			WorkoutType: "Walk + Mobility",
			Duration:    "15-20 min",
			Distance:    "N/A",
			Description: "Hold off on intensity until the ACWR drops closer to 1.3.",
		},
		{
			Title:       "Technique Drills",
			WorkoutType: "Stride Mechanics",
			Duration:    "20 min",
			Distance:    "Short",
			Description: "Keep neuromuscular sharpness with 4 strides and basic drills.",
		},
		{
			Title:       "Breathing Reset",
			WorkoutType: "Box Breathing",
			Duration:    "10 min",
			Distance:    "N/A",
			Description: "Parasympathetic work accelerates recovery between harder training weeks.",
		},
	}
}
