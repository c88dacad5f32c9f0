package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Device is one linked tracker account for a user.
type Device struct {
	ID           string
	UserID       string
	TerraUserID  *string
	Provider     string
	Status       string
	ConnectedAt  time.Time
	LastSyncedAt *time.Time
}

const deviceColumns = "id, user_id, terra_user_id, provider, status, connected_at, last_synced_at"

// UpsertDevice links a device keyed by (user_id, provider). A fresh connect
// clears last_synced_at so the initial sync window applies.
func (s *Store) UpsertDevice(ctx context.Context, userID, terraUserID, provider string, resetLastSynced bool) (Device, error) {
	query := `
		INSERT INTO user_devices (user_id, terra_user_id, provider, status, connected_at)
		VALUES ($1, $2, $3, 'linked', now())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			terra_user_id = EXCLUDED.terra_user_id,
			status = 'linked'`
	if resetLastSynced {
		query += `,
			last_synced_at = NULL`
	}
	query += `
		RETURNING ` + deviceColumns

	var device Device
	err := s.db.QueryRowContext(ctx, query, userID, terraUserID, provider).Scan(
		&device.ID, &device.UserID, &device.TerraUserID, &device.Provider,
		&device.Status, &device.ConnectedAt, &device.LastSyncedAt,
	)
	if err != nil {
		return Device{}, fmt.Errorf("upsert device: %w", err)
	}
	return device, nil
}

// DeviceByTerraUserID looks a device up by its external user id. Nil, nil
// when no device matches.
func (s *Store) DeviceByTerraUserID(ctx context.Context, terraUserID string) (*Device, error) {
	return s.scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM user_devices WHERE terra_user_id = $1`,
		terraUserID,
	))
}

// DeviceByUserReference is the fallback lookup for events that only carry the
// local user reference: the user's most recently connected device, narrowed
// by provider when the event hints at one.
func (s *Store) DeviceByUserReference(ctx context.Context, userID, providerHint string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM user_devices WHERE user_id = $1`
	args := []interface{}{userID}
	if providerHint != "" {
		query += ` AND provider = $2`
		args = append(args, providerHint)
	}
	query += ` ORDER BY connected_at DESC LIMIT 1`

	return s.scanDevice(s.db.QueryRowContext(ctx, query, args...))
}

// BackfillTerraUserID records the external user id on a device matched via
// the user-reference fallback, so the next delivery resolves directly.
func (s *Store) BackfillTerraUserID(ctx context.Context, deviceID, terraUserID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_devices SET terra_user_id = $1 WHERE id = $2`,
		terraUserID, deviceID,
	)
	if err != nil {
		return fmt.Errorf("backfill terra_user_id: %w", err)
	}
	return nil
}

// ListLinkedDevices returns every device eligible for the background poll.
func (s *Store) ListLinkedDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM user_devices WHERE status = 'linked' AND terra_user_id IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("list linked devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var device Device
		if err := rows.Scan(
			&device.ID, &device.UserID, &device.TerraUserID, &device.Provider,
			&device.Status, &device.ConnectedAt, &device.LastSyncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// AdvanceLastSyncedAt marks a device synced. Only called after a successful
// upsert so a failed sync window is retried next sweep.
func (s *Store) AdvanceLastSyncedAt(ctx context.Context, deviceID string, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_devices SET last_synced_at = $1 WHERE id = $2`,
		syncedAt.UTC(), deviceID,
	)
	if err != nil {
		return fmt.Errorf("advance last_synced_at: %w", err)
	}
	return nil
}

func (s *Store) scanDevice(row *sql.Row) (*Device, error) {
	var device Device
	err := row.Scan(
		&device.ID, &device.UserID, &device.TerraUserID, &device.Provider,
		&device.Status, &device.ConnectedAt, &device.LastSyncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query device: %w", err)
	}
	return &device, nil
}
