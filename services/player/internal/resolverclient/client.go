// Package resolverclient talks to the streaming resolver over HTTP and
// builds proxy URLs for the streams it returns.
package resolverclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/services/player/internal/playback"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	Log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.HTTPClient = hc } }

func WithLogger(log *zap.Logger) Option { return func(c *Client) { c.Log = log } }

// WithToken attaches a bearer token so resolutions are attributed to the
// viewer.
func WithToken(token string) Option { return func(c *Client) { c.Token = token } }

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Resolve implements playback.SourceResolver.
func (c *Client) Resolve(ctx context.Context, episodeID string, opt playback.Option) (playback.Resolved, error) {
	q := url.Values{}
	q.Set("episodeId", episodeID)
	q.Set("server", string(opt.Server))
	q.Set("category", string(opt.Track))
	var out playback.Resolved
	if err := c.get(ctx, "/sources?"+q.Encode(), &out); err != nil {
		return playback.Resolved{}, err
	}
	return out, nil
}

type Episode struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Title    string `json:"title,omitempty"`
	IsFiller bool   `json:"isFiller"`
}

type Listing struct {
	Episodes        []Episode `json:"episodes"`
	ProviderAnimeID *string   `json:"providerAnimeId"`
	Title           string    `json:"title,omitempty"`
	EpisodeCount    int       `json:"episodeCount,omitempty"`
}

// Find returns the episode numbered n.
func (l Listing) Find(n int) (Episode, bool) {
	for _, ep := range l.Episodes {
		if ep.Number == n {
			return ep, true
		}
	}
	return Episode{}, false
}

// Episodes lists a catalog entry's episodes. An unknown title yields an
// empty listing, not an error.
func (c *Client) Episodes(ctx context.Context, catalogID int) (Listing, error) {
	var out Listing
	if err := c.get(ctx, "/episodes?id="+strconv.Itoa(catalogID), &out); err != nil {
		return Listing{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resolver: status %d body=%q", resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("resolver: decode error: %w body=%q", err, string(b[:min(len(b), 200)]))
	}
	c.Log.Debug("resolver response", zap.String("path", path), zap.Int("bytes", len(b)))
	return nil
}

// ProxyURL wraps target in the streaming proxy's /proxy endpoint. An empty
// proxyBase returns target unchanged.
func ProxyURL(proxyBase, target, referer string) string {
	if proxyBase == "" {
		return target
	}
	q := url.Values{}
	q.Set("url", target)
	if referer != "" {
		q.Set("referer", referer)
	}
	return strings.TrimRight(proxyBase, "/") + "/proxy?" + q.Encode()
}
