package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitsync-api-go/internal/acwr"
	"fitsync-api-go/internal/config"
	"fitsync-api-go/internal/ingest"
	"fitsync-api-go/internal/load"
	"fitsync-api-go/internal/metrics"
	"fitsync-api-go/internal/store"
	"fitsync-api-go/internal/terra"
	"fitsync-api-go/internal/workout"
)

const (
	maxBodyBytes int64 = 10 << 20

	dbTimeout      = 5 * time.Second
	storageTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second

	connectSyncDays = 28
	resyncDays      = 7
)

// Store is the persistence surface the handlers need.
type Store interface {
	UpsertWorkouts(ctx context.Context, records []workout.Record) error
	TrainingLoadWorkouts(ctx context.Context, userID string) ([]acwr.Workout, error)
	DeviceByTerraUserID(ctx context.Context, terraUserID string) (*store.Device, error)
	DeviceByUserReference(ctx context.Context, userID, providerHint string) (*store.Device, error)
	BackfillTerraUserID(ctx context.Context, deviceID, terraUserID string) error
	UpsertDevice(ctx context.Context, userID, terraUserID, provider string, resetLastSynced bool) (store.Device, error)
	AdvanceLastSyncedAt(ctx context.Context, deviceID string, syncedAt time.Time) error
	InsertIngestionLog(ctx context.Context, entry store.IngestionLog) error
}

// RawArchive persists the exact bytes of a webhook delivery next to its
// canonical derivative.
type RawArchive interface {
	Archive(ctx context.Context, key string, body []byte) (ingest.WorkoutIngestedV1Raw, error)
}

// EventPublisher emits workout.ingested events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte, at time.Time) error
}

// WorkoutFetcher pulls raw payloads from the vendor API on demand.
type WorkoutFetcher interface {
	FetchRecent(ctx context.Context, terraUserID, provider string, days int) ([]json.RawMessage, error)
}

type Handler struct {
	cfg       config.Config
	logger    *slog.Logger
	store     Store
	archive   RawArchive
	publisher EventPublisher
	terra     WorkoutFetcher
}

func New(cfg config.Config, logger *slog.Logger, st Store, archive RawArchive, publisher EventPublisher, fetcher WorkoutFetcher) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		archive:   archive,
		publisher: publisher,
		terra:     fetcher,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// TerraWebhook receives vendor push deliveries. The signature is verified
// over the exact body bytes before anything is parsed; authentic events that
// cannot be matched to a device still acknowledge with 200 so the vendor
// does not retry them forever.
func (h *Handler) TerraWebhook(w http.ResponseWriter, r *http.Request) {
	bodyReader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer bodyReader.Close()
	rawBody, err := io.ReadAll(bodyReader)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues("bad_body").Inc()
		h.respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	check := terra.VerifySignature(r.Header, rawBody, h.cfg.TerraWebhookSecret)
	if !check.Valid {
		h.logger.Warn("terra webhook signature mismatch",
			"has_header", r.Header.Get(terra.SignatureHeader) != "",
			"body_length", len(rawBody),
			"computed", check.Computed,
			"payload_preview", check.PayloadPreview,
		)
		metrics.WebhookRequests.WithLabelValues("invalid_signature").Inc()
		h.respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := terra.ParseWebhookEvent(rawBody)
	if err != nil {
		h.logger.Error("failed to parse terra webhook body", "error", err)
		metrics.WebhookRequests.WithLabelValues("bad_json").Inc()
		h.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	terraUserID := event.ResolveTerraUserID()
	eventType := event.Kind()
	if terraUserID == "" {
		h.logger.Warn("terra webhook missing terra_user_id", "event_type", eventType)
		metrics.WebhookRequests.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, ingest.WebhookReceived{Received: true, Note: "no terra_user_id"})
		return
	}

	response := h.processWebhookEvent(r.Context(), event, terraUserID, eventType, rawBody)
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) processWebhookEvent(ctx context.Context, event terra.WebhookEvent, terraUserID, eventType string, rawBody []byte) ingest.WebhookReceived {
	h.insertLog(ctx, store.IngestionLog{
		Source:  "webhook_debug",
		Status:  store.LogStatusDebug,
		Message: fmt.Sprintf("Event type: %s", eventType),
		Payload: rawBody,
	})

	workouts := event.WorkoutPayloads()
	providerHint := event.ProviderHint(workouts)

	device := h.resolveDevice(ctx, event, terraUserID, providerHint)
	if device == nil {
		h.logger.Warn("no matching device for terra webhook",
			"terra_user_id", terraUserID,
			"user_reference", event.ResolveUserReference(),
			"provider_hint", providerHint,
		)
		h.insertLog(ctx, store.IngestionLog{
			Source:  "webhook",
			Status:  store.LogStatusIgnored,
			Message: fmt.Sprintf("No device matched for terra_user_id=%s", terraUserID),
		})
		metrics.WebhookRequests.WithLabelValues("ignored").Inc()
		return ingest.WebhookReceived{Received: true, Note: "no matching device"}
	}

	if len(workouts) == 0 {
		h.logger.Warn("no workout payloads in terra webhook", "event_type", eventType)
		h.insertLog(ctx, store.IngestionLog{
			UserID:  &device.UserID,
			Source:  "webhook",
			Status:  store.LogStatusIgnored,
			Message: fmt.Sprintf("Webhook %s contained no workouts", eventType),
		})
		metrics.WebhookRequests.WithLabelValues("ignored").Inc()
		return ingest.WebhookReceived{Received: true, Note: "no workouts"}
	}

	provider := providerHint
	if provider == "" {
		provider = device.Provider
	}

	records := h.normalizeBatch(workouts, terra.Meta{
		Provider:    provider,
		TerraUserID: terraUserID,
		UserID:      device.UserID,
	}, "webhook")

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	err := h.store.UpsertWorkouts(dbCtx, records)
	cancel()
	if err != nil {
		h.logger.Error("failed to upsert workouts", "error", err, "terra_user_id", terraUserID)
		h.insertLog(ctx, store.IngestionLog{
			UserID:  &device.UserID,
			Source:  "webhook",
			Status:  store.LogStatusError,
			Message: err.Error(),
		})
		metrics.WebhookRequests.WithLabelValues("error").Inc()
		return ingest.WebhookReceived{Received: true, Note: "persist failed"}
	}

	rawObject := h.archiveRawBody(ctx, provider, terraUserID, rawBody)
	h.publishIngested(ctx, records, provider, terraUserID, device.UserID, "webhook", rawObject)

	h.insertLog(ctx, store.IngestionLog{
		UserID:  &device.UserID,
		Source:  "webhook",
		Status:  store.LogStatusSuccess,
		Message: fmt.Sprintf("Upserted %d workout(s) via webhook", len(records)),
	})
	metrics.WebhookRequests.WithLabelValues("ok").Inc()
	h.logger.Info("terra webhook processed",
		"event_type", eventType,
		"terra_user_id", terraUserID,
		"user_id", device.UserID,
		"workouts", len(records),
	)
	return ingest.WebhookReceived{Received: true, Workouts: len(records)}
}

// resolveDevice matches the delivery to a linked device: by terra user id
// first, then by the event's local user reference, backfilling the stored
// terra user id when the fallback path matched.
func (h *Handler) resolveDevice(ctx context.Context, event terra.WebhookEvent, terraUserID, providerHint string) *store.Device {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	device, err := h.store.DeviceByTerraUserID(dbCtx, terraUserID)
	if err != nil {
		h.logger.Warn("device lookup by terra_user_id failed", "error", err, "terra_user_id", terraUserID)
	}
	if device != nil {
		return device
	}

	userReference := event.ResolveUserReference()
	if userReference == "" {
		return nil
	}

	device, err = h.store.DeviceByUserReference(dbCtx, userReference, providerHint)
	if err != nil {
		h.logger.Warn("device lookup by user reference failed", "error", err, "user_reference", userReference)
		return nil
	}
	if device == nil {
		return nil
	}

	if device.TerraUserID != nil && *device.TerraUserID != terraUserID {
		h.logger.Warn("device terra_user_id mismatch",
			"stored", *device.TerraUserID,
			"incoming", terraUserID,
		)
	}
	if device.TerraUserID == nil || *device.TerraUserID != terraUserID {
		if err := h.store.BackfillTerraUserID(dbCtx, device.ID, terraUserID); err != nil {
			h.logger.Warn("failed to backfill terra_user_id", "error", err, "device_id", device.ID)
		} else {
			device.TerraUserID = &terraUserID
		}
	}
	return device
}

// ConnectDevice links (or re-links) a tracker for the authenticated user and
// runs an immediate sync: 28 days back on first connect, 7 on resync.
func (h *Handler) ConnectDevice(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Provider    string `json:"provider"`
		TerraUserID string `json:"terra_user_id"`
		Action      string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Provider == "" || req.TerraUserID == "" {
		h.respondError(w, http.StatusBadRequest, "missing provider or terra_user_id")
		return
	}
	action := req.Action
	if action == "" {
		action = "connect"
	}
	if action != "connect" && action != "resync" {
		h.respondError(w, http.StatusBadRequest, "invalid action")
		return
	}

	provider := normalizeProvider(req.Provider)

	dbCtx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	device, err := h.store.UpsertDevice(dbCtx, userID, req.TerraUserID, provider, action == "connect")
	cancel()
	if err != nil {
		h.logger.Error("failed to upsert device", "error", err, "user_id", userID, "provider", provider)
		h.respondError(w, http.StatusInternalServerError, "failed to link device")
		return
	}

	days := connectSyncDays
	if action == "resync" {
		days = resyncDays
	}

	payloads, err := h.terra.FetchRecent(r.Context(), req.TerraUserID, provider, days)
	if err != nil {
		h.logger.Warn("terra fetch failed during connect", "error", err, "device_id", device.ID)
		payloads = nil
	}

	synced := 0
	if len(payloads) > 0 {
		records := h.normalizeBatch(payloads, terra.Meta{
			Provider:    provider,
			TerraUserID: req.TerraUserID,
			UserID:      userID,
		}, "connect")

		dbCtx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		err := h.store.UpsertWorkouts(dbCtx, records)
		cancel()
		if err != nil {
			h.logger.Error("failed to upsert workouts during connect", "error", err, "device_id", device.ID)
		} else {
			synced = len(records)
			h.publishIngested(r.Context(), records, provider, req.TerraUserID, userID, "connect", nil)
		}
	}

	if synced > 0 || action == "resync" {
		syncedAt := time.Now().UTC()
		dbCtx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		if err := h.store.AdvanceLastSyncedAt(dbCtx, device.ID, syncedAt); err != nil {
			h.logger.Warn("failed to advance last_synced_at", "error", err, "device_id", device.ID)
		} else {
			device.LastSyncedAt = &syncedAt
		}
		cancel()
	}

	writeJSON(w, http.StatusOK, ingest.DeviceConnected{
		DeviceID:     device.ID,
		Provider:     device.Provider,
		Synced:       synced,
		LastSyncedAt: device.LastSyncedAt,
	})
}

// TrainingLoad renders the ACWR report for the authenticated user.
func (h *Handler) TrainingLoad(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	unit := load.UnitKilometers
	switch r.URL.Query().Get("unit") {
	case "", "km":
	case "mi":
		unit = load.UnitMiles
	default:
		h.respondError(w, http.StatusBadRequest, "invalid unit")
		return
	}

	dbCtx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	workouts, err := h.store.TrainingLoadWorkouts(dbCtx, userID)
	cancel()
	if err != nil {
		h.logger.Error("failed to load workouts", "error", err, "user_id", userID)
		h.respondError(w, http.StatusInternalServerError, "failed to load workouts")
		return
	}

	report := acwr.Summarize(workouts, acwr.Options{Unit: unit})
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) normalizeBatch(payloads []json.RawMessage, meta terra.Meta, path string) []workout.Record {
	records := make([]workout.Record, 0, len(payloads))
	for _, raw := range payloads {
		record, err := terra.Normalize(raw, meta)
		if err != nil {
			h.logger.Warn("skipping malformed workout payload", "error", err, "terra_user_id", meta.TerraUserID)
			continue
		}
		records = append(records, record)
	}
	metrics.WorkoutsNormalized.WithLabelValues(path).Add(float64(len(records)))
	return records
}

func (h *Handler) archiveRawBody(ctx context.Context, provider, terraUserID string, body []byte) *ingest.WorkoutIngestedV1Raw {
	key := fmt.Sprintf("%s/%s/%s.json", provider, terraUserID, uuid.NewString())
	archiveCtx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	rawObject, err := h.archive.Archive(archiveCtx, key, body)
	if err != nil {
		h.logger.Error("failed to archive raw payload", "error", err, "key", key)
		return nil
	}
	return &rawObject
}

func (h *Handler) publishIngested(ctx context.Context, records []workout.Record, provider, terraUserID, userID, source string, rawObject *ingest.WorkoutIngestedV1Raw) {
	if len(records) == 0 {
		return
	}
	workoutIDs := make([]string, 0, len(records))
	for _, record := range records {
		workoutIDs = append(workoutIDs, record.TerraWorkoutID)
	}

	event := ingest.WorkoutIngestedV1Event{
		EventVersion:  "1",
		EventType:     ingest.EventTypeWorkoutIngested,
		EventID:       uuid.NewString(),
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.NewString(),
		Source:        source,
		Provider:      provider,
		UserID:        userID,
		TerraUserID:   terraUserID,
		WorkoutIDs:    workoutIDs,
		RawObject:     rawObject,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal workout.ingested event", "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(publishCtx, userID, payload, event.OccurredAt); err != nil {
		h.logger.Error("failed to publish workout.ingested event", "error", err, "user_id", userID)
		metrics.EventPublishFailures.Inc()
	}
}

func (h *Handler) insertLog(ctx context.Context, entry store.IngestionLog) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	if err := h.store.InsertIngestionLog(dbCtx, entry); err != nil {
		h.logger.Warn("failed to insert ingestion log", "error", err, "source", entry.Source)
	}
}

func normalizeProvider(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
