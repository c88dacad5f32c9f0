package terra

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientFetchSince(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "w-1"}, {"id": "w-2"}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:     server.URL,
		APIKey:      "api-key",
		DeveloperID: "dev-1",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	since := time.Now().Add(-24 * time.Hour)
	payloads, err := client.FetchSince(context.Background(), "terra-user-1", "garmin", since)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("payloads: got %d", len(payloads))
	}

	if gotPath != "/activity" {
		t.Fatalf("path: got %q", gotPath)
	}
	if gotQuery["user_id"] != "terra-user-1" || gotQuery["providers"] != "garmin" || gotQuery["to_webhook"] != "false" {
		t.Fatalf("query: %v", gotQuery)
	}
	if gotQuery["start_date"] == "" || gotQuery["end_date"] == "" {
		t.Fatalf("window params missing: %v", gotQuery)
	}
	if gotHeaders.Get("x-api-key") != "api-key" || gotHeaders.Get("dev-id") != "dev-1" || gotHeaders.Get("x-user-id") != "terra-user-1" {
		t.Fatalf("headers: %v", gotHeaders)
	}
}

func TestClientFetchSinceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such user", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:     server.URL,
		APIKey:      "api-key",
		DeveloperID: "dev-1",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := client.FetchSince(context.Background(), "terra-user-1", "garmin", time.Now()); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestClientDisabledWithoutCredentials(t *testing.T) {
	client := NewClient(ClientConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if client.Enabled() {
		t.Fatal("client without credentials must report disabled")
	}
	payloads, err := client.FetchSince(context.Background(), "terra-user-1", "garmin", time.Now())
	if err != nil || payloads != nil {
		t.Fatalf("disabled fetch: payloads %v err %v", payloads, err)
	}
}
