package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS series_progress (
  user_id    TEXT    NOT NULL,
  series_id  TEXT    NOT NULL,
  episode    INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, series_id)
);
CREATE TABLE IF NOT EXISTS episode_positions (
  user_id    TEXT    NOT NULL,
  series_id  TEXT    NOT NULL,
  episode    INTEGER NOT NULL,
  seconds    REAL    NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, series_id, episode)
);`

// SQLite keeps progress in a local file for single-user installs.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("progress: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("progress: data dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("progress: open: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("progress: migrate: %w", err)
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) GetProgress(ctx context.Context, userID, seriesID string) (int, bool, error) {
	var ep int
	err := s.db.QueryRowContext(ctx,
		`SELECT episode FROM series_progress WHERE user_id=? AND series_id=?`,
		userID, seriesID).Scan(&ep)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("progress: get: %w", err)
	}
	return ep, true, nil
}

func (s *SQLite) SetProgress(ctx context.Context, userID, seriesID string, episode int) error {
	q := `
INSERT INTO series_progress (user_id, series_id, episode, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, series_id)
DO UPDATE SET episode = excluded.episode, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, userID, seriesID, episode, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("progress: set: %w", err)
	}
	return nil
}

func (s *SQLite) GetPosition(ctx context.Context, userID, seriesID string, episode int) (float64, bool, error) {
	var sec float64
	err := s.db.QueryRowContext(ctx,
		`SELECT seconds FROM episode_positions WHERE user_id=? AND series_id=? AND episode=?`,
		userID, seriesID, episode).Scan(&sec)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("progress: get position: %w", err)
	}
	return sec, true, nil
}

func (s *SQLite) SavePosition(ctx context.Context, userID, seriesID string, episode int, seconds float64) error {
	if seconds < minPosition {
		return nil
	}
	q := `
INSERT INTO episode_positions (user_id, series_id, episode, seconds, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, series_id, episode)
DO UPDATE SET seconds = excluded.seconds, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, userID, seriesID, episode, seconds, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("progress: save position: %w", err)
	}
	return nil
}

func (s *SQLite) ClearPosition(ctx context.Context, userID, seriesID string, episode int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM episode_positions WHERE user_id=? AND series_id=? AND episode=?`,
		userID, seriesID, episode)
	if err != nil {
		return fmt.Errorf("progress: clear position: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
