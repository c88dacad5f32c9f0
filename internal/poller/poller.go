// Package poller implements the background device sync: a periodic sweep over
// linked devices that pulls each device's workout window from the vendor API,
// normalizes it, and upserts the canonical records.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fitsync-api-go/internal/store"
	"fitsync-api-go/internal/terra"
	"fitsync-api-go/internal/workout"
)

const (
	sweepDBTimeout = 5 * time.Second

	// A device that has never synced pulls this far back.
	defaultWindowDays = 30
)

// Store is the persistence surface the poller needs.
type Store interface {
	ListLinkedDevices(ctx context.Context) ([]store.Device, error)
	UpsertWorkouts(ctx context.Context, records []workout.Record) error
	AdvanceLastSyncedAt(ctx context.Context, deviceID string, syncedAt time.Time) error
	InsertIngestionLog(ctx context.Context, entry store.IngestionLog) error
}

// Fetcher pulls raw payloads for one device's window.
type Fetcher interface {
	FetchSince(ctx context.Context, terraUserID, provider string, since time.Time) ([]json.RawMessage, error)
}

type Poller struct {
	store         Store
	fetcher       Fetcher
	logger        *slog.Logger
	interval      time.Duration
	onSyncFailure func()
}

func New(st Store, fetcher Fetcher, logger *slog.Logger, interval time.Duration, onSyncFailure func()) *Poller {
	return &Poller{
		store:         st,
		fetcher:       fetcher,
		logger:        logger,
		interval:      interval,
		onSyncFailure: onSyncFailure,
	}
}

// Run sweeps immediately and then on every tick until the context is
// cancelled. A failing device never aborts the sweep.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Sweep(ctx); err != nil {
			p.logger.Error("device poll sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep syncs every linked device once.
func (p *Poller) Sweep(ctx context.Context) error {
	listCtx, cancel := context.WithTimeout(ctx, sweepDBTimeout)
	devices, err := p.store.ListLinkedDevices(listCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("list linked devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	synced := 0
	for _, device := range devices {
		count, err := p.syncDevice(ctx, device)
		if err != nil {
			p.logger.Error("device sync failed", "error", err, "device_id", device.ID, "provider", device.Provider)
			if p.onSyncFailure != nil {
				p.onSyncFailure()
			}
			p.insertLog(ctx, store.IngestionLog{
				UserID:  &device.UserID,
				Source:  "poll",
				Status:  store.LogStatusError,
				Message: err.Error(),
			})
			continue
		}
		synced += count
	}

	p.logger.Info("device poll sweep complete", "devices", len(devices), "workouts", synced)
	return nil
}

func (p *Poller) syncDevice(ctx context.Context, device store.Device) (int, error) {
	if device.TerraUserID == nil {
		return 0, nil
	}

	since := time.Now().AddDate(0, 0, -defaultWindowDays)
	if device.LastSyncedAt != nil {
		since = *device.LastSyncedAt
	}

	payloads, err := p.fetcher.FetchSince(ctx, *device.TerraUserID, device.Provider, since)
	if err != nil {
		return 0, fmt.Errorf("fetch workouts: %w", err)
	}
	if len(payloads) == 0 {
		p.insertLog(ctx, store.IngestionLog{
			UserID:  &device.UserID,
			Source:  "poll",
			Status:  store.LogStatusIgnored,
			Message: fmt.Sprintf("Device %s returned no workouts", device.ID),
		})
		return 0, nil
	}

	meta := terra.Meta{
		Provider:    device.Provider,
		TerraUserID: *device.TerraUserID,
		UserID:      device.UserID,
	}
	records := make([]workout.Record, 0, len(payloads))
	for _, raw := range payloads {
		record, err := terra.Normalize(raw, meta)
		if err != nil {
			p.logger.Warn("skipping malformed workout payload", "error", err, "device_id", device.ID)
			continue
		}
		records = append(records, record)
	}

	upsertCtx, cancel := context.WithTimeout(ctx, sweepDBTimeout)
	err = p.store.UpsertWorkouts(upsertCtx, records)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("upsert workouts: %w", err)
	}

	advanceCtx, cancel := context.WithTimeout(ctx, sweepDBTimeout)
	err = p.store.AdvanceLastSyncedAt(advanceCtx, device.ID, time.Now().UTC())
	cancel()
	if err != nil {
		return 0, fmt.Errorf("advance last_synced_at: %w", err)
	}

	p.insertLog(ctx, store.IngestionLog{
		UserID:  &device.UserID,
		Source:  "poll",
		Status:  store.LogStatusSuccess,
		Message: fmt.Sprintf("Upserted %d workout(s) via poll", len(records)),
	})
	return len(records), nil
}

func (p *Poller) insertLog(ctx context.Context, entry store.IngestionLog) {
	logCtx, cancel := context.WithTimeout(ctx, sweepDBTimeout)
	defer cancel()
	if err := p.store.InsertIngestionLog(logCtx, entry); err != nil {
		p.logger.Warn("failed to insert ingestion log", "error", err, "source", entry.Source)
	}
}
