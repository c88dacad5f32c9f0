package poller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"fitsync-api-go/internal/store"
	"fitsync-api-go/internal/workout"
)

type fakeStore struct {
	devices  []store.Device
	upserted [][]workout.Record
	advanced map[string]time.Time
	logs     []store.IngestionLog
}

func newFakeStore(devices ...store.Device) *fakeStore {
	return &fakeStore{devices: devices, advanced: map[string]time.Time{}}
}

func (f *fakeStore) ListLinkedDevices(_ context.Context) ([]store.Device, error) {
	return f.devices, nil
}

func (f *fakeStore) UpsertWorkouts(_ context.Context, records []workout.Record) error {
	f.upserted = append(f.upserted, records)
	return nil
}

func (f *fakeStore) AdvanceLastSyncedAt(_ context.Context, deviceID string, syncedAt time.Time) error {
	f.advanced[deviceID] = syncedAt
	return nil
}

func (f *fakeStore) InsertIngestionLog(_ context.Context, entry store.IngestionLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

type fakeFetcher struct {
	payloads map[string][]json.RawMessage
	err      error
	since    map[string]time.Time
}

func (f *fakeFetcher) FetchSince(_ context.Context, terraUserID, _ string, since time.Time) ([]json.RawMessage, error) {
	if f.since == nil {
		f.since = map[string]time.Time{}
	}
	f.since[terraUserID] = since
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads[terraUserID], nil
}

func testDevice(id, terraUserID string, lastSynced *time.Time) store.Device {
	return store.Device{
		ID:           id,
		UserID:       "user-" + id,
		TerraUserID:  &terraUserID,
		Provider:     "garmin",
		Status:       "linked",
		LastSyncedAt: lastSynced,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepSyncsLinkedDevices(t *testing.T) {
	lastSynced := time.Now().UTC().Add(-2 * time.Hour)
	st := newFakeStore(testDevice("dev-1", "terra-1", &lastSynced))
	fetcher := &fakeFetcher{payloads: map[string][]json.RawMessage{
		"terra-1": {
			json.RawMessage(`{"id": "w-1", "start_time": "2025-01-01T10:00:00Z"}`),
			json.RawMessage(`{"id": "w-2", "start_time": "2025-01-02T10:00:00Z"}`),
		},
	}}

	p := New(st, fetcher, testLogger(), time.Minute, nil)
	if err := p.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if !fetcher.since["terra-1"].Equal(lastSynced) {
		t.Fatalf("since: got %v want %v", fetcher.since["terra-1"], lastSynced)
	}
	if len(st.upserted) != 1 || len(st.upserted[0]) != 2 {
		t.Fatalf("upserted: %+v", st.upserted)
	}
	if st.upserted[0][0].TerraWorkoutID != "w-1" || st.upserted[0][0].UserID != "user-dev-1" {
		t.Fatalf("record: %+v", st.upserted[0][0])
	}
	if _, ok := st.advanced["dev-1"]; !ok {
		t.Fatal("last_synced_at not advanced")
	}
	if len(st.logs) != 1 || st.logs[0].Status != store.LogStatusSuccess {
		t.Fatalf("logs: %+v", st.logs)
	}
}

func TestSweepNeverSyncedUsesDefaultWindow(t *testing.T) {
	st := newFakeStore(testDevice("dev-1", "terra-1", nil))
	fetcher := &fakeFetcher{}

	p := New(st, fetcher, testLogger(), time.Minute, nil)
	if err := p.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	since := fetcher.since["terra-1"]
	wantAround := time.Now().AddDate(0, 0, -defaultWindowDays)
	if d := since.Sub(wantAround); d < -time.Minute || d > time.Minute {
		t.Fatalf("default window: got %v, want about %v", since, wantAround)
	}
	// An empty fetch is recorded but advances nothing.
	if len(st.advanced) != 0 {
		t.Fatalf("advanced: %+v", st.advanced)
	}
	if len(st.logs) != 1 || st.logs[0].Status != store.LogStatusIgnored {
		t.Fatalf("logs: %+v", st.logs)
	}
}

func TestSweepContinuesPastFailingDevice(t *testing.T) {
	st := newFakeStore(
		testDevice("dev-1", "terra-1", nil),
		testDevice("dev-2", "terra-2", nil),
	)
	fetcher := &failFirstFetcher{
		failFor: "terra-1",
		inner: &fakeFetcher{payloads: map[string][]json.RawMessage{
			"terra-2": {json.RawMessage(`{"id": "w-3"}`)},
		}},
	}

	failures := 0
	p := New(st, fetcher, testLogger(), time.Minute, func() { failures++ })
	if err := p.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if failures != 1 {
		t.Fatalf("failure callback: got %d", failures)
	}
	if len(st.upserted) != 1 || st.upserted[0][0].TerraWorkoutID != "w-3" {
		t.Fatalf("healthy device not synced: %+v", st.upserted)
	}
	var sawError bool
	for _, entry := range st.logs {
		if entry.Status == store.LogStatusError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("no error log recorded: %+v", st.logs)
	}
}

func TestSweepSkipsDevicesWithoutTerraUserID(t *testing.T) {
	device := testDevice("dev-1", "unused", nil)
	device.TerraUserID = nil
	st := newFakeStore(device)
	fetcher := &fakeFetcher{}

	p := New(st, fetcher, testLogger(), time.Minute, nil)
	if err := p.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(fetcher.since) != 0 {
		t.Fatalf("fetch should not run without a terra user id: %+v", fetcher.since)
	}
}

type failFirstFetcher struct {
	failFor string
	inner   *fakeFetcher
}

func (f *failFirstFetcher) FetchSince(ctx context.Context, terraUserID, provider string, since time.Time) ([]json.RawMessage, error) {
	if terraUserID == f.failFor {
		return nil, errors.New("vendor timeout")
	}
	return f.inner.FetchSince(ctx, terraUserID, provider, since)
}
