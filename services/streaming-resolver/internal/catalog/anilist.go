// Package catalog looks up series metadata in AniList, the external catalog
// that owns titles and episode counts.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/cache"
)

const DefaultURL = "https://graphql.anilist.co"

var ErrNotFound = errors.New("catalog: media not found")

// Entry is the slice of catalog metadata the resolver consumes.
type Entry struct {
	Title        string `json:"title"`
	Format       string `json:"format"`
	EpisodeCount int    `json:"episodeCount"`
}

const mediaQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    title { english romaji native }
    format
    episodes
  }
}`

type AniList struct {
	URL        string
	HTTPClient *http.Client
	Cache      cache.Cache
	TTL        time.Duration
	Log        *zap.Logger
}

type Option func(*AniList)

func WithHTTPClient(hc *http.Client) Option { return func(a *AniList) { a.HTTPClient = hc } }
func WithLogger(log *zap.Logger) Option     { return func(a *AniList) { a.Log = log } }

// WithCache stores successful lookups for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(a *AniList) { a.Cache, a.TTL = c, ttl }
}

func New(url string, timeout time.Duration, opts ...Option) *AniList {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &AniList{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
		TTL:        24 * time.Hour,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type mediaResponse struct {
	Data struct {
		Media *struct {
			Title struct {
				English string `json:"english"`
				Romaji  string `json:"romaji"`
				Native  string `json:"native"`
			} `json:"title"`
			Format   string `json:"format"`
			Episodes *int   `json:"episodes"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// Lookup returns the catalog entry for an AniList media id.
func (a *AniList) Lookup(ctx context.Context, id int) (Entry, error) {
	key := fmt.Sprintf("catalog:%d", id)
	if a.Cache != nil {
		var cached Entry
		if ok, err := a.Cache.Get(ctx, key, &cached); err == nil && ok && cached.Title != "" {
			return cached, nil
		}
	}

	body, err := json.Marshal(map[string]any{
		"query":     mediaQuery,
		"variables": map[string]any{"id": id},
	})
	if err != nil {
		return Entry{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return Entry{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Entry{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return Entry{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > 200 {
			raw = raw[:200]
		}
		return Entry{}, fmt.Errorf("anilist: status %d body=%q", resp.StatusCode, string(raw))
	}

	var out mediaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Entry{}, fmt.Errorf("anilist: decode: %w", err)
	}
	if out.Data.Media == nil {
		if len(out.Errors) > 0 && out.Errors[0].Status != http.StatusNotFound {
			return Entry{}, fmt.Errorf("anilist: %s", out.Errors[0].Message)
		}
		return Entry{}, ErrNotFound
	}

	m := out.Data.Media
	entry := Entry{
		Title:  preferredTitle(m.Title.English, m.Title.Romaji, m.Title.Native),
		Format: m.Format,
	}
	if m.Episodes != nil {
		entry.EpisodeCount = *m.Episodes
	}
	if entry.Title == "" {
		return Entry{}, ErrNotFound
	}

	if a.Cache != nil {
		if err := a.Cache.Set(ctx, key, entry, a.TTL); err != nil {
			a.Log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return entry, nil
}

func preferredTitle(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}
