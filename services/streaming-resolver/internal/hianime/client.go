// Package hianime scrapes the hianime site directly: the search page and the
// ajax fragments behind its episode list and server picker, then the embed
// host's getSources endpoint.
package hianime

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://hianime.to"

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.HTTPClient = hc } }
func WithLogger(log *zap.Logger) Option     { return func(c *Client) { c.Log = log } }
func WithUserAgent(ua string) Option        { return func(c *Client) { c.UserAgent = ua } }

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string { return "hianime" }

// get fetches u and returns the decoded body. ajax marks XHR requests, which
// the site answers with JSON envelopes around HTML fragments.
func (c *Client) get(ctx context.Context, u, referer string, ajax bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if ajax {
		req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

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
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hianime: status %d body=%q", resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	return b, nil
}

// ajaxHTML unwraps the {"status":true,"html":"..."} envelope.
func (c *Client) ajaxHTML(ctx context.Context, u string) (string, error) {
	b, err := c.get(ctx, u, c.BaseURL+"/", true)
	if err != nil {
		return "", err
	}
	var env struct {
		Status bool   `json:"status"`
		HTML   string `json:"html"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return "", fmt.Errorf("hianime: decode error: %w body=%q", err, string(b[:min(len(b), 200)]))
	}
	return env.HTML, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	if len(q) == 0 {
		return c.BaseURL + path
	}
	return c.BaseURL + path + "?" + q.Encode()
}
