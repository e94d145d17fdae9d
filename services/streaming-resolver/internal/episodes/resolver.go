// Package episodes maps catalog titles to provider anime ids and lists their
// episodes, trying each backend in priority order.
package episodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/cache"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

// ErrNoEpisodes is returned when no backend produced a usable episode list.
var ErrNoEpisodes = errors.New("episodes: no usable episode list")

const (
	DefaultProviderIDTTL = 24 * time.Hour
	DefaultEpisodesTTL   = time.Hour
)

type Resolver struct {
	backends  []provider.Backend
	cache     cache.Cache
	overrides map[string]string

	providerIDTTL time.Duration
	episodesTTL   time.Duration

	group singleflight.Group
	log   *zap.Logger
}

type Option func(*Resolver)

func WithLogger(log *zap.Logger) Option { return func(r *Resolver) { r.log = log } }

// WithOverrides replaces the override table. Keys are normalized on load.
func WithOverrides(m map[string]string) Option {
	return func(r *Resolver) {
		r.overrides = make(map[string]string, len(m))
		for k, v := range m {
			r.overrides[Normalize(k)] = strings.TrimSpace(v)
		}
	}
}

func WithTTLs(providerID, episodes time.Duration) Option {
	return func(r *Resolver) {
		if providerID > 0 {
			r.providerIDTTL = providerID
		}
		if episodes > 0 {
			r.episodesTTL = episodes
		}
	}
}

// New builds a resolver over backends in priority order. A nil cache
// disables caching.
func New(backends []provider.Backend, c cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		backends:      backends,
		cache:         c,
		providerIDTTL: DefaultProviderIDTTL,
		episodesTTL:   DefaultEpisodesTTL,
		log:           zap.NewNop(),
	}
	WithOverrides(DefaultOverrides)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize case-folds a title and collapses whitespace.
func Normalize(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// ProviderID resolves a catalog title to a provider anime id. ok is false
// when nothing matched or the title is overridden to NoProvider.
func (r *Resolver) ProviderID(ctx context.Context, title, formatHint string) (string, bool) {
	norm := Normalize(title)
	if norm == "" {
		return "", false
	}
	if id, found := r.overrides[norm]; found {
		if id == NoProvider || id == "" {
			r.log.Debug("override skips provider", zap.String("title", norm))
			return "", false
		}
		return id, true
	}

	hint := provider.FormatFromHint(formatHint)
	key := fmt.Sprintf("pid:%s|%s", norm, hint)

	var cached string
	if r.cache != nil {
		if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok && cached != "" {
			return cached, true
		}
	}

	v, _, shared := r.group.Do(key, func() (any, error) {
		return r.searchBackends(context.WithoutCancel(ctx), title, hint), nil
	})
	if shared {
		r.log.Debug("provider id lookup coalesced", zap.String("key", key))
	}
	id := v.(string)
	if id == "" {
		return "", false
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, id, r.providerIDTTL); err != nil {
			r.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return id, true
}

func (r *Resolver) searchBackends(ctx context.Context, title string, hint provider.Format) string {
	for _, b := range r.backends {
		results, err := b.Search(ctx, title)
		if err != nil {
			r.log.Debug("search failed", zap.String("backend", b.Name()), zap.Error(err))
			continue
		}
		if id, ok := Match(results, title, hint); ok {
			r.log.Debug("search matched", zap.String("backend", b.Name()), zap.String("id", id))
			return id
		}
	}
	r.log.Info("no provider match", zap.String("title", title), zap.String("format", string(hint)))
	return ""
}

// Match picks the best search result for title. Strict formats (movies,
// OVAs, specials) only match candidates whose name contains the title.
func Match(results []provider.SearchResult, title string, hint provider.Format) (string, bool) {
	results = lo.Filter(results, func(c provider.SearchResult, _ int) bool { return c.ID != "" })
	if len(results) == 0 {
		return "", false
	}
	want := Normalize(title)

	if c, ok := lo.Find(results, func(c provider.SearchResult) bool {
		return Normalize(c.Name) == want || (c.JName != "" && Normalize(c.JName) == want)
	}); ok {
		return c.ID, true
	}

	if hint.Strict() {
		containing := lo.Filter(results, func(c provider.SearchResult, _ int) bool {
			return strings.Contains(Normalize(c.Name), want) || (c.JName != "" && strings.Contains(Normalize(c.JName), want))
		})
		if c, ok := lo.Find(containing, func(c provider.SearchResult) bool { return c.Format == hint }); ok {
			return c.ID, true
		}
		if len(containing) > 0 {
			return containing[0].ID, true
		}
		return "", false
	}

	if hint != provider.FormatUnknown {
		if c, ok := lo.Find(results, func(c provider.SearchResult) bool { return c.Format == hint }); ok {
			return c.ID, true
		}
	}
	if c, ok := lo.Find(results, func(c provider.SearchResult) bool { return c.Format == provider.FormatTV }); ok {
		return c.ID, true
	}
	return results[0].ID, true
}

// Episodes lists episodes for a provider anime id. A backend's answer is
// used only when it is non-empty and every entry carries an id.
func (r *Resolver) Episodes(ctx context.Context, animeID string) ([]provider.Episode, error) {
	animeID = strings.TrimSpace(animeID)
	if animeID == "" {
		return nil, ErrNoEpisodes
	}
	key := "eps:" + animeID

	var cached []provider.Episode
	if r.cache != nil {
		if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok && len(cached) > 0 {
			return cached, nil
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.listBackends(context.WithoutCancel(ctx), animeID)
	})
	if err != nil {
		return nil, err
	}
	eps := v.([]provider.Episode)
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, eps, r.episodesTTL); err != nil {
			r.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return eps, nil
}

func (r *Resolver) listBackends(ctx context.Context, animeID string) ([]provider.Episode, error) {
	for _, b := range r.backends {
		eps, err := b.Episodes(ctx, animeID)
		if err != nil {
			r.log.Debug("episode list failed", zap.String("backend", b.Name()), zap.Error(err))
			continue
		}
		if !usable(eps) {
			r.log.Debug("episode list rejected", zap.String("backend", b.Name()), zap.Int("count", len(eps)))
			continue
		}
		return eps, nil
	}
	return nil, ErrNoEpisodes
}

func usable(eps []provider.Episode) bool {
	return len(eps) > 0 && lo.EveryBy(eps, func(e provider.Episode) bool { return strings.TrimSpace(e.ID) != "" })
}
