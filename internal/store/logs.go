package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// IngestionLog is one audit row per inbound event or poll outcome.
type IngestionLog struct {
	UserID  *string
	Source  string
	Status  string
	Message string
	Payload json.RawMessage
}

// Ingestion log statuses.
const (
	LogStatusSuccess = "success"
	LogStatusIgnored = "ignored"
	LogStatusError   = "error"
	LogStatusDebug   = "debug"
)

// InsertIngestionLog appends an audit row. Logging failures are the caller's
// to tolerate; ingestion must not fail because its audit trail did.
func (s *Store) InsertIngestionLog(ctx context.Context, entry IngestionLog) error {
	var payload interface{}
	if len(entry.Payload) > 0 {
		payload = []byte(entry.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_logs (user_id, source, status, message, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		entry.UserID, entry.Source, entry.Status, entry.Message, payload,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion log: %w", err)
	}
	return nil
}
