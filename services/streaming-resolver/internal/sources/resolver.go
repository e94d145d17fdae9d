// Package sources turns an episode id into playable stream URLs, walking a
// fixed cascade of (backend, server) legs and always attaching an embed URL
// the client can fall back to.
package sources

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/internal/platform/analytics"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

const DefaultLegTimeout = 15 * time.Second

// Resolved is the body of GET /sources. GuaranteedEmbedURL is never empty.
type Resolved struct {
	Sources            []provider.StreamSource `json:"sources"`
	Subtitles          []provider.Subtitle     `json:"subtitles"`
	UpstreamHeaders    map[string]string       `json:"upstreamHeaders"`
	GuaranteedEmbedURL string                  `json:"guaranteedEmbedUrl"`
	AltEmbedURL        string                  `json:"altEmbedUrl,omitempty"`
	Intro              *provider.TimeRange     `json:"intro,omitempty"`
	Outro              *provider.TimeRange     `json:"outro,omitempty"`
}

type Request struct {
	EpisodeID string
	Server    provider.Server
	Category  provider.Category
	// UserID attributes the analytics event; empty for anonymous callers.
	UserID string
}

// Leg is one (backend, server) attempt.
type Leg struct {
	Backend provider.Backend
	Server  provider.Server
}

type Resolver struct {
	backends     []provider.Backend
	embedBase    string
	altEmbedBase string
	legTimeout   time.Duration

	metrics   *Metrics
	analytics *analytics.Publisher
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Resolver)

func WithLogger(log *zap.Logger) Option           { return func(r *Resolver) { r.log = log } }
func WithMetrics(m *Metrics) Option               { return func(r *Resolver) { r.metrics = m } }
func WithAnalytics(p *analytics.Publisher) Option { return func(r *Resolver) { r.analytics = p } }
func WithLegTimeout(d time.Duration) Option       { return func(r *Resolver) { r.legTimeout = d } }

// WithAltEmbedBase sets the second embed host; empty disables it.
func WithAltEmbedBase(base string) Option { return func(r *Resolver) { r.altEmbedBase = base } }

// New builds a resolver over backends in priority order.
func New(backends []provider.Backend, embedBase string, opts ...Option) *Resolver {
	r := &Resolver{
		backends:     backends,
		embedBase:    embedBase,
		altEmbedBase: DefaultAltEmbedBase,
		legTimeout:   DefaultLegTimeout,
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Legs lists the cascade for a requested server: each backend on the
// requested server and then the other one.
func (r *Resolver) Legs(server provider.Server) []Leg {
	legs := make([]Leg, 0, 2*len(r.backends))
	for _, b := range r.backends {
		legs = append(legs, Leg{b, server}, Leg{b, server.Other()})
	}
	return legs
}

// Resolve never fails. Backend errors are absorbed per leg and an exhausted
// cascade yields empty sources next to the embed URL.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolved {
	start := r.now()
	out := Resolved{
		Sources:            []provider.StreamSource{},
		Subtitles:          []provider.Subtitle{},
		UpstreamHeaders:    map[string]string{},
		GuaranteedEmbedURL: EmbedURL(r.embedBase, req.EpisodeID, req.Category),
		AltEmbedURL:        AltEmbedURL(r.altEmbedBase, r.embedBase, req.EpisodeID, req.Category),
	}

	payload, winner, ok := r.cascade(ctx, req)
	if !ok {
		r.log.Info("source cascade exhausted",
			zap.String("episode_id", req.EpisodeID),
			zap.String("server", string(req.Server)),
			zap.String("category", string(req.Category)))
		r.metrics.resolved("embed", r.now().Sub(start).Seconds())
		r.analytics.Publish(analytics.SubjectEmbedFallback, "embed_fallback", req.UserID, map[string]any{
			"episode_id": req.EpisodeID,
			"server":     string(req.Server),
			"category":   string(req.Category),
			"embed_url":  out.GuaranteedEmbedURL,
		})
		return out
	}

	out.Sources = payload.Sources
	out.Subtitles = captions(payload.Subtitles)
	if payload.Headers != nil {
		out.UpstreamHeaders = payload.Headers
	}
	out.Intro, out.Outro = payload.Intro, payload.Outro

	if req.Category == provider.CategoryDub {
		out.Subtitles = r.withSubSubtitles(ctx, winner, req.EpisodeID, out.Subtitles)
	}

	r.metrics.resolved("hls", r.now().Sub(start).Seconds())
	r.analytics.Publish(analytics.SubjectSourcesResolved, "sources_resolved", req.UserID, map[string]any{
		"episode_id": req.EpisodeID,
		"backend":    winner.Backend.Name(),
		"server":     string(winner.Server),
		"category":   string(req.Category),
		"sources":    len(out.Sources),
		"subtitles":  len(out.Subtitles),
	})
	return out
}

func (r *Resolver) cascade(ctx context.Context, req Request) (*provider.Payload, Leg, bool) {
	for i, leg := range r.Legs(req.Server) {
		if ctx.Err() != nil {
			break
		}
		payload, err := r.attempt(ctx, leg, req.EpisodeID, req.Category)
		fields := []zap.Field{
			zap.Int("leg", i+1),
			zap.String("backend", leg.Backend.Name()),
			zap.String("server", string(leg.Server)),
			zap.String("episode_id", req.EpisodeID),
		}
		switch {
		case err != nil:
			r.metrics.leg(leg.Backend.Name(), string(leg.Server), legError)
			r.log.Debug("cascade leg failed", append(fields, zap.Error(err))...)
		case payload.Empty():
			r.metrics.leg(leg.Backend.Name(), string(leg.Server), legEmpty)
			r.log.Debug("cascade leg empty", fields...)
		default:
			r.metrics.leg(leg.Backend.Name(), string(leg.Server), legHit)
			r.log.Debug("cascade leg hit", append(fields, zap.Int("sources", len(payload.Sources)))...)
			return payload, leg, true
		}
	}
	return nil, Leg{}, false
}

func (r *Resolver) attempt(ctx context.Context, leg Leg, episodeID string, category provider.Category) (payload *provider.Payload, err error) {
	if r.legTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.legTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("cascade leg panicked", zap.String("backend", leg.Backend.Name()), zap.Any("panic", p))
			payload, err = nil, provider.ErrNotFound
		}
	}()
	return leg.Backend.Sources(ctx, episodeID, leg.Server, category)
}

// withSubSubtitles adds the sub track's languages that the dub payload lacks.
// Failure to fetch them leaves dub unchanged.
func (r *Resolver) withSubSubtitles(ctx context.Context, leg Leg, episodeID string, dub []provider.Subtitle) []provider.Subtitle {
	sub, err := r.attempt(ctx, leg, episodeID, provider.CategorySub)
	if err != nil || sub == nil {
		r.log.Debug("sub subtitle fetch failed", zap.String("episode_id", episodeID), zap.Error(err))
		return dub
	}
	return MergeSubtitles(dub, captions(sub.Subtitles))
}

// MergeSubtitles returns primary followed by the secondary tracks whose
// language primary does not already cover. Languages compare case-insensitively.
func MergeSubtitles(primary, secondary []provider.Subtitle) []provider.Subtitle {
	merged := append(append([]provider.Subtitle{}, primary...), secondary...)
	return lo.UniqBy(merged, func(s provider.Subtitle) string {
		return strings.ToLower(strings.TrimSpace(s.Lang))
	})
}

func captions(tracks []provider.Subtitle) []provider.Subtitle {
	return lo.Filter(tracks, func(s provider.Subtitle, _ int) bool {
		return s.URL != "" && !s.IsThumbnails()
	})
}
