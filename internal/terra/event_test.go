package terra

import "testing"

func TestParseWebhookEventActivity(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{
		"type": "activity",
		"user": {"user_id": "terra-user-1", "provider": "GARMIN"},
		"data": [{"metadata": {"summary_id": "w-1"}}, {"metadata": {"summary_id": "w-2"}}]
	}`))
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if event.Kind() != "activity" {
		t.Fatalf("kind: got %q", event.Kind())
	}
	if got := event.ResolveTerraUserID(); got != "terra-user-1" {
		t.Fatalf("terra user id: got %q", got)
	}
	workouts := event.WorkoutPayloads()
	if len(workouts) != 2 {
		t.Fatalf("workouts: got %d, want 2", len(workouts))
	}
}

func TestWorkoutPayloadsBucketPriority(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"data beats payload", `{"data": [{"id": "a"}], "payload": {"workout": {"id": "b"}}}`, 1},
		{"single workout object", `{"workout": {"id": "a"}}`, 1},
		{"payload.workouts array", `{"payload": {"workouts": [{"id": "a"}, {"id": "b"}, {"id": "c"}]}}`, 3},
		{"empty data falls through", `{"data": [], "session": {"id": "a"}}`, 1},
		{"no workouts", `{"type": "auth"}`, 0},
		{"scalar bucket ignored", `{"data": "nope"}`, 0},
	}
	for _, tc := range cases {
		event, err := ParseWebhookEvent([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := event.WorkoutPayloads(); len(got) != tc.want {
			t.Fatalf("%s: got %d workouts, want %d", tc.name, len(got), tc.want)
		}
	}
}

func TestResolveTerraUserIDLocations(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"user object", `{"user": {"user_id": "u1"}}`, "u1"},
		{"flat terra_user_id", `{"terra_user_id": "u2"}`, "u2"},
		{"flat user_id", `{"user_id": "u3"}`, "u3"},
		{"payload field", `{"payload": {"terra_user_id": "u4"}}`, "u4"},
		{"none", `{"type": "activity"}`, ""},
	}
	for _, tc := range cases {
		event, err := ParseWebhookEvent([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := event.ResolveTerraUserID(); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestResolveUserReference(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{"user": {"reference_id": "local-7"}}`))
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if got := event.ResolveUserReference(); got != "local-7" {
		t.Fatalf("got %q", got)
	}
}

func TestProviderHint(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{"provider": "GARMIN"}`))
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if got := event.ProviderHint(nil); got != "garmin" {
		t.Fatalf("envelope provider: got %q", got)
	}

	event, err = ParseWebhookEvent([]byte(`{"data": [{"metadata": {"provider": "Polar"}}]}`))
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if got := event.ProviderHint(event.WorkoutPayloads()); got != "polar" {
		t.Fatalf("workout metadata provider: got %q", got)
	}

	event, err = ParseWebhookEvent([]byte(`{"data": [{"id": "a"}]}`))
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	if got := event.ProviderHint(event.WorkoutPayloads()); got != "" {
		t.Fatalf("no provider anywhere: got %q", got)
	}
}
