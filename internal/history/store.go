// Package history keeps a log of past extraction attempts in SQLite so
// operators can see what the service has been asked to resolve and how each
// attempt ended.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/rhuertas/streamproxy/internal/logging"
)

//go:embed schema.sql
var schemaFS embed.FS

// Record is one extraction attempt, successful or not.
type Record struct {
	ID         string    `json:"id"`
	PageURL    string    `json:"page_url"`
	VideoURL   string    `json:"video_url,omitempty"`
	Source     string    `json:"source,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists extraction records.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// NewStore returns a Store and runs migrations from schema.sql.
// db should typically be the SQLite DB at <storage root>/history.db.
func NewStore(db *sql.DB, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Record inserts one extraction attempt.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	timestamp := time.Now().Unix()
	if !rec.CreatedAt.IsZero() {
		timestamp = rec.CreatedAt.Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extractions (id, page_url, video_url, source, success, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PageURL, rec.VideoURL, rec.Source, rec.Success, rec.Error, rec.DurationMS, timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting extraction record %s: %w", rec.ID, err)
	}

	if s.logger != nil {
		s.logger.Debug("recorded extraction",
			logging.Field{Key: "id", Value: rec.ID},
			logging.Field{Key: "success", Value: rec.Success})
	}
	return nil
}

// Recent returns the newest records, newest first. limit <= 0 means 50.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, page_url, video_url, source, success, error, duration_ms, created_at
		 FROM extractions
		 ORDER BY created_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying extraction history: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var timestamp int64
		if err := rows.Scan(&r.ID, &r.PageURL, &r.VideoURL, &r.Source, &r.Success, &r.Error, &r.DurationMS, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning extraction record: %w", err)
		}
		r.CreatedAt = time.Unix(timestamp, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating extraction records: %w", err)
	}
	return out, nil
}
