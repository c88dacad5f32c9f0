package terra

import (
	"encoding/json"
	"strings"
)

// WebhookEvent is the envelope Terra posts to the webhook endpoint. Field
// placement varies across event types and vendor versions, so identity,
// provider, and the embedded workout payloads are all resolved by probing
// candidate locations in priority order.
type WebhookEvent struct {
	Type      *FlexString `json:"type"`
	EventType *FlexString `json:"event_type"`

	UserID      *FlexString       `json:"user_id"`
	TerraUserID *FlexString       `json:"terra_user_id"`
	User        *WebhookEventUser `json:"user"`
	Provider    *FlexString       `json:"provider"`

	Payload map[string]json.RawMessage `json:"payload"`
	Data    json.RawMessage            `json:"data"`
	Workout json.RawMessage            `json:"workout"`
	Session json.RawMessage            `json:"session"`
}

type WebhookEventUser struct {
	UserID        *FlexString `json:"user_id"`
	ReferenceID   *FlexString `json:"reference_id"`
	UserReference *FlexString `json:"user_reference"`
	Provider      *FlexString `json:"provider"`
}

// ParseWebhookEvent decodes the envelope. Workout payload buckets stay as raw
// bytes so each workout's original JSON can be archived verbatim.
func ParseWebhookEvent(raw []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return WebhookEvent{}, err
	}
	return event, nil
}

// Kind names the event type for logging, "unknown" when absent.
func (e WebhookEvent) Kind() string {
	if kind := pickText(e.Type, e.EventType); kind != nil {
		return *kind
	}
	return "unknown"
}

// ResolveTerraUserID probes the envelope for the external user id. Empty when
// no location carries one.
func (e WebhookEvent) ResolveTerraUserID() string {
	var user *FlexString
	if e.User != nil {
		user = e.User.UserID
	}
	if id := pickText(user, e.TerraUserID, e.UserID, e.payloadString("terra_user_id")); id != nil {
		return *id
	}
	return ""
}

// ResolveUserReference probes for the local user reference carried by auth
// and re-auth events, used when the terra user id matches no stored device.
func (e WebhookEvent) ResolveUserReference() string {
	var refID, userRef *FlexString
	if e.User != nil {
		refID = e.User.ReferenceID
		userRef = e.User.UserReference
	}
	if ref := pickText(refID, userRef, e.payloadString("reference_id"), e.payloadString("user_reference")); ref != nil {
		return *ref
	}
	return ""
}

// WorkoutPayloads extracts the embedded workout payload(s). Buckets are
// probed in priority order and the first one yielding workouts wins; a bucket
// may hold a single object or an array.
func (e WebhookEvent) WorkoutPayloads() []json.RawMessage {
	buckets := []json.RawMessage{
		e.Data,
		e.Workout,
		e.Session,
		e.Payload["workout"],
		e.Payload["session"],
		e.Payload["data"],
		e.Payload["workouts"],
	}

	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		if workouts := splitBucket(bucket); len(workouts) > 0 {
			return workouts
		}
	}
	return nil
}

// ProviderHint resolves the provider, lowercased: envelope and payload fields
// first, then the workout payloads' own source/metadata fields.
func (e WebhookEvent) ProviderHint(workouts []json.RawMessage) string {
	if direct := pickText(e.Provider, e.payloadString("provider"), e.payloadString("source")); direct != nil {
		return strings.ToLower(*direct)
	}

	for _, raw := range workouts {
		var probe struct {
			Source   *FlexString `json:"source"`
			Metadata *struct {
				Provider *FlexString `json:"provider"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		var metaProvider *FlexString
		if probe.Metadata != nil {
			metaProvider = probe.Metadata.Provider
		}
		if candidate := pickText(probe.Source, metaProvider); candidate != nil {
			return strings.ToLower(*candidate)
		}
	}
	return ""
}

func (e WebhookEvent) payloadString(key string) *FlexString {
	raw, ok := e.Payload[key]
	if !ok {
		return nil
	}
	var value FlexString
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return &value
}

func splitBucket(bucket json.RawMessage) []json.RawMessage {
	trimmed := strings.TrimSpace(string(bucket))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(bucket, &items); err != nil {
			return nil
		}
		return items
	}
	if strings.HasPrefix(trimmed, "{") {
		return []json.RawMessage{bucket}
	}
	return nil
}
