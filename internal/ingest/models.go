// Package ingest defines the published event contracts and the API response
// shapes of the ingestion surface.
package ingest

import "time"

// EventTypeWorkoutIngested is the event_type value for WorkoutIngestedV1Event.
const EventTypeWorkoutIngested = "workout.ingested"

// WorkoutIngestedV1Event is published after a batch of workouts is upserted,
// keyed by the local user so downstream consumers see one user's workouts in
// order.
type WorkoutIngestedV1Event struct {
	EventVersion  string                `json:"event_version"`
	EventType     string                `json:"event_type"`
	EventID       string                `json:"event_id"`
	OccurredAt    time.Time             `json:"occurred_at"`
	CorrelationID string                `json:"correlation_id"`
	Source        string                `json:"source"`
	Provider      string                `json:"provider"`
	UserID        string                `json:"user_id"`
	TerraUserID   string                `json:"terra_user_id"`
	WorkoutIDs    []string              `json:"workout_ids"`
	RawObject     *WorkoutIngestedV1Raw `json:"raw_object,omitempty"`
}

// WorkoutIngestedV1Raw points at the archived raw webhook body backing the
// batch. Nil for poll-path ingests, which have no single delivery body.
type WorkoutIngestedV1Raw struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// WebhookReceived acknowledges a webhook delivery. Vendors retry on non-2xx,
// so unresolvable-but-authentic events still acknowledge with Received true.
type WebhookReceived struct {
	Received bool   `json:"received"`
	Workouts int    `json:"workouts,omitempty"`
	Note     string `json:"note,omitempty"`
}

// DeviceConnected is the connect/resync response.
type DeviceConnected struct {
	DeviceID     string     `json:"device_id"`
	Provider     string     `json:"provider"`
	Synced       int        `json:"synced"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}
