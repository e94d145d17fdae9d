package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaditx/vibeanime/internal/platform/db"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS series_progress (
  user_id    TEXT        NOT NULL,
  series_id  TEXT        NOT NULL,
  episode    INTEGER     NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, series_id)
);
CREATE TABLE IF NOT EXISTS episode_positions (
  user_id    TEXT             NOT NULL,
  series_id  TEXT             NOT NULL,
  episode    INTEGER          NOT NULL,
  seconds    DOUBLE PRECISION NOT NULL,
  updated_at TIMESTAMPTZ      NOT NULL,
  PRIMARY KEY (user_id, series_id, episode)
);`

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres { return &Postgres{db: pool} }

// OpenPostgres connects and creates the tables when missing.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := db.Open(ctx, dsn, db.WithMaxConns(2), db.WithConnectTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("progress: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress: migrate: %w", err)
	}
	return NewPostgres(pool), nil
}

func (p *Postgres) GetProgress(ctx context.Context, userID, seriesID string) (int, bool, error) {
	var ep int
	err := p.db.QueryRow(ctx,
		`SELECT episode FROM series_progress WHERE user_id=$1 AND series_id=$2`,
		userID, seriesID).Scan(&ep)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("progress: get: %w", err)
	}
	return ep, true, nil
}

func (p *Postgres) SetProgress(ctx context.Context, userID, seriesID string, episode int) error {
	q := `
INSERT INTO series_progress (user_id, series_id, episode, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, series_id)
DO UPDATE SET episode = EXCLUDED.episode, updated_at = EXCLUDED.updated_at`
	if _, err := p.db.Exec(ctx, q, userID, seriesID, episode, time.Now().UTC()); err != nil {
		return fmt.Errorf("progress: set: %w", err)
	}
	return nil
}

func (p *Postgres) GetPosition(ctx context.Context, userID, seriesID string, episode int) (float64, bool, error) {
	var sec float64
	err := p.db.QueryRow(ctx,
		`SELECT seconds FROM episode_positions WHERE user_id=$1 AND series_id=$2 AND episode=$3`,
		userID, seriesID, episode).Scan(&sec)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("progress: get position: %w", err)
	}
	return sec, true, nil
}

func (p *Postgres) SavePosition(ctx context.Context, userID, seriesID string, episode int, seconds float64) error {
	if seconds < minPosition {
		return nil
	}
	q := `
INSERT INTO episode_positions (user_id, series_id, episode, seconds, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, series_id, episode)
DO UPDATE SET seconds = EXCLUDED.seconds, updated_at = EXCLUDED.updated_at`
	if _, err := p.db.Exec(ctx, q, userID, seriesID, episode, seconds, time.Now().UTC()); err != nil {
		return fmt.Errorf("progress: save position: %w", err)
	}
	return nil
}

func (p *Postgres) ClearPosition(ctx context.Context, userID, seriesID string, episode int) error {
	_, err := p.db.Exec(ctx,
		`DELETE FROM episode_positions WHERE user_id=$1 AND series_id=$2 AND episode=$3`,
		userID, seriesID, episode)
	if err != nil {
		return fmt.Errorf("progress: clear position: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
