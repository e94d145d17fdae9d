// Package aniwatch is the REST mirror backend: a hosted aniwatch-api
// deployment answering search, episode list and source queries as JSON.
package aniwatch

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

const DefaultBaseURL = "https://aniwatch-api.vercel.app/api/v2"

type ClientConfig struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:146.0) Gecko/20100101 Firefox/146.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 300 * time.Millisecond
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewBreaker builds the breaker the client trips after consecutive failures.
func NewBreaker(name string, maxRequests uint32, interval, timeout time.Duration, failureThreshold uint32, log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		// Empty answers are a normal outcome, not a sign of an unhealthy API.
		IsSuccessful: func(err error) bool {
			return err == nil || err == provider.ErrNotFound
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			}
		},
	})
}

func (c *Client) Name() string { return "aniwatch" }

type searchResponse struct {
	Status int `json:"status"`
	Data   struct {
		Animes []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			JName string `json:"jname"`
			Type  string `json:"type"`
		} `json:"animes"`
	} `json:"data"`
}

type episodesResponse struct {
	Status int `json:"status"`
	Data   struct {
		TotalEpisodes int `json:"totalEpisodes"`
		Episodes      []struct {
			Title     string `json:"title"`
			EpisodeID string `json:"episodeId"`
			Number    int    `json:"number"`
			IsFiller  bool   `json:"isFiller"`
		} `json:"episodes"`
	} `json:"data"`
}

type sourcesResponse struct {
	Status int `json:"status"`
	Data   struct {
		Headers map[string]string `json:"headers"`
		Tracks  []struct {
			URL  string `json:"url"`
			Lang string `json:"lang"`
		} `json:"tracks"`
		Intro struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"intro"`
		Outro struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"outro"`
		Sources []struct {
			URL    string `json:"url"`
			IsM3U8 bool   `json:"isM3U8"`
			Type   string `json:"type"`
		} `json:"sources"`
	} `json:"data"`
}

func (c *Client) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	endpoint := c.BaseURL + "/hianime/search?q=" + url.QueryEscape(query) + "&page=1"
	res, err := doWithBreaker[searchResponse](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}
	out := make([]provider.SearchResult, 0, len(res.Data.Animes))
	for _, a := range res.Data.Animes {
		if a.ID == "" {
			continue
		}
		out = append(out, provider.SearchResult{ID: a.ID, Name: a.Name, JName: a.JName, Format: provider.ParseFormat(a.Type)})
	}
	return out, nil
}

func (c *Client) Episodes(ctx context.Context, animeID string) ([]provider.Episode, error) {
	endpoint := c.BaseURL + "/hianime/anime/" + url.PathEscape(animeID) + "/episodes"
	res, err := doWithBreaker[episodesResponse](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Episode, 0, len(res.Data.Episodes))
	for _, ep := range res.Data.Episodes {
		out = append(out, provider.Episode{ID: ep.EpisodeID, Number: ep.Number, Title: ep.Title, IsFiller: ep.IsFiller})
	}
	return out, nil
}

func (c *Client) Sources(ctx context.Context, episodeID string, server provider.Server, category provider.Category) (*provider.Payload, error) {
	q := url.Values{}
	q.Set("animeEpisodeId", episodeID)
	q.Set("server", string(server))
	q.Set("category", string(category))
	res, err := doWithBreaker[sourcesResponse](ctx, c, c.BaseURL+"/hianime/episode/sources?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return toPayload(res), nil
}

func toPayload(res *sourcesResponse) *provider.Payload {
	p := &provider.Payload{Headers: res.Data.Headers}
	for _, src := range res.Data.Sources {
		if src.URL == "" {
			continue
		}
		isHLS := src.IsM3U8 || strings.EqualFold(src.Type, "hls") || strings.Contains(strings.ToLower(src.URL), ".m3u8")
		p.Sources = append(p.Sources, provider.StreamSource{URL: src.URL, Quality: src.Type, IsHLS: isHLS})
	}
	for _, tr := range res.Data.Tracks {
		if tr.URL == "" {
			continue
		}
		kind := "captions"
		if strings.EqualFold(tr.Lang, "thumbnails") {
			kind = "thumbnails"
		}
		p.Subtitles = append(p.Subtitles, provider.Subtitle{URL: tr.URL, Lang: tr.Lang, Kind: kind})
	}
	if res.Data.Intro.End > 0 {
		p.Intro = &provider.TimeRange{Start: res.Data.Intro.Start, End: res.Data.Intro.End}
	}
	if res.Data.Outro.End > 0 {
		p.Outro = &provider.TimeRange{Start: res.Data.Outro.Start, End: res.Data.Outro.End}
	}
	return p
}

func doWithBreaker[T any](ctx context.Context, c *Client, u string) (*T, error) {
	if c.CB == nil {
		return doJSONWithRetry[T](ctx, c, u)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return doJSONWithRetry[T](ctx, c, u)
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

func doJSONWithRetry[T any](ctx context.Context, c *Client, u string) (*T, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying request", zap.String("url", u), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err := doJSON[T](ctx, c, u)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if err == provider.ErrNotFound {
			return nil, err
		}
		c.Log.Warn("request failed", zap.String("url", u), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

func doJSON[T any](ctx context.Context, c *Client, u string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", c.Config.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader := resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	b, err := io.ReadAll(io.LimitReader(reader, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, provider.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aniwatch: status %d body=%q", resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("aniwatch: decode error: %w body=%q", err, string(b[:min(len(b), 200)]))
	}
	return &out, nil
}
