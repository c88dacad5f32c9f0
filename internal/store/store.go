// Package store is the Postgres persistence layer: canonical workouts,
// linked devices, and ingestion logs. Concurrency control lives here as
// upsert semantics; the pipeline above it is pure computation.
package store

import "database/sql"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
