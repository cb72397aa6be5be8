package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/use-agent/pricewatch/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at      TEXT    NOT NULL,
	success_count INTEGER NOT NULL,
	total         INTEGER NOT NULL,
	payload       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots (taken_at DESC, id DESC);
`

// takenAtLayout has fixed-width fractions so the column sorts as text.
const takenAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite keeps every snapshot in a table; Load returns the newest.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and migrates it.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeHistory, "open sqlite", err)
	}
	// One writer; keeps ":memory:" databases on a single connection too.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, models.NewScrapeError(models.ErrCodeHistory, "apply "+pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, models.NewScrapeError(models.ErrCodeHistory, "migrate", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (*models.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeHistory, "query latest snapshot", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeHistory, "decode snapshot", err)
	}
	return &snap, nil
}

func (s *SQLite) Save(ctx context.Context, snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeHistory, "encode snapshot", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (taken_at, success_count, total, payload) VALUES (?, ?, ?, ?)`,
		snap.Timestamp.UTC().Format(takenAtLayout), snap.SuccessCount, len(snap.Results), string(payload),
	)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeHistory, "insert snapshot", err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count snapshots: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
