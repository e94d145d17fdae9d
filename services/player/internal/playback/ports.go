package playback

import (
	"context"
	"time"
)

type SourceResolver interface {
	Resolve(ctx context.Context, episodeID string, opt Option) (Resolved, error)
}

// Engine opens stream sessions; one session plays one URL.
type Engine interface {
	Open(ctx context.Context, url string) (StreamSession, error)
}

type StreamSession interface {
	// Events is closed when the session ends.
	Events() <-chan EngineEvent
	// Position reports playback time and total duration in seconds.
	Position(ctx context.Context) (pos, dur float64, err error)
	Seek(ctx context.Context, seconds float64) error
	Close() error
}

type EngineEventKind int

const (
	EngineLoaded EngineEventKind = iota + 1
	EngineEnded
	EngineFailed
	// EngineClosed means the viewer closed the player.
	EngineClosed
)

type EngineEvent struct {
	Kind EngineEventKind
	Err  string
}

// Embedder shows the fallback embed player or, when even that is
// unavailable, an error.
type Embedder interface {
	ShowEmbed(url, reason string)
	ShowError(msg string)
}

// Navigator owns episode navigation. Next is expected to Open the episode
// after from, if any.
type Navigator interface {
	OfferNext(from Episode, countdown time.Duration)
	WithdrawNext()
	Next(ctx context.Context, from Episode)
}

// ProgressStore remembers the last episode a user started per series.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID, seriesID string) (episode int, ok bool, err error)
	SetProgress(ctx context.Context, userID, seriesID string, episode int) error
}

// PositionStore remembers where in an episode a user stopped.
type PositionStore interface {
	GetPosition(ctx context.Context, userID, seriesID string, episode int) (seconds float64, ok bool, err error)
	SavePosition(ctx context.Context, userID, seriesID string, episode int, seconds float64) error
	ClearPosition(ctx context.Context, userID, seriesID string, episode int) error
}
