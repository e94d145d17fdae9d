// Package progress persists which episode a viewer is on and where in it
// they stopped.
package progress

import (
	"context"
	"strings"

	"github.com/aaditx/vibeanime/services/player/internal/playback"
)

type Store interface {
	playback.ProgressStore
	playback.PositionStore
	Close() error
}

// Open picks the backend from dsn: postgres:// and postgresql:// URLs use
// Postgres, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// Positions within this many seconds of zero are not worth keeping.
const minPosition = 1.0
