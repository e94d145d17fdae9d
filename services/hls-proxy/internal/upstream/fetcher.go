// Package upstream performs the outbound request for the proxy: browser-like
// headers, the session cookie, a bounded number of attempts and transparent
// gzip/brotli decoding.
package upstream

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
	DefaultReferer   = "https://megacloud.blog/"
)

var ErrExhausted = errors.New("upstream: attempts exhausted")

// Error describes a fetch that failed on every attempt. Status is the last
// upstream status, or 0 when the last attempt failed at the transport level.
type Error struct {
	Status   int
	Attempts int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream: status %d after %d attempts body=%q", e.Status, e.Attempts, e.Body)
	}
	return fmt.Sprintf("upstream: %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExhausted}
	}
	return []error{ErrExhausted, e.Err}
}

// Request is one logical fetch.
type Request struct {
	URL     *url.URL
	Referer string
	Cookie  string
}

// Response is a successful upstream reply. Body is already decoded and must
// be closed by the caller.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        io.ReadCloser
	// SetCookie is the first name=value segment of the first Set-Cookie
	// header, or empty.
	SetCookie string
	Attempts  int
}

// AttemptFunc observes each attempt; status is 0 on transport errors.
type AttemptFunc func(attempt, status int, err error)

type Fetcher struct {
	client         *http.Client
	log            *zap.Logger
	maxAttempts    int
	attemptTimeout time.Duration
	retryDelay     time.Duration
	userAgent      string
	onAttempt      AttemptFunc
	redirectOK     func(hostname string) bool
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }
func WithLogger(l *zap.Logger) Option      { return func(f *Fetcher) { f.log = l } }
func WithMaxAttempts(n int) Option         { return func(f *Fetcher) { f.maxAttempts = n } }
func WithAttemptTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.attemptTimeout = d }
}
func WithRetryDelay(d time.Duration) Option     { return func(f *Fetcher) { f.retryDelay = d } }
func WithUserAgent(ua string) Option            { return func(f *Fetcher) { f.userAgent = ua } }
func WithAttemptObserver(fn AttemptFunc) Option { return func(f *Fetcher) { f.onAttempt = fn } }

// WithRedirectGuard follows redirects whose target host passes allowed.
// Without it no redirect is followed.
func WithRedirectGuard(allowed func(hostname string) bool) Option {
	return func(f *Fetcher) { f.redirectOK = allowed }
}

const maxRedirects = 5

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		log:            zap.NewNop(),
		maxAttempts:    3,
		attemptTimeout: 12 * time.Second,
		userAgent:      DefaultUserAgent,
	}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = &http.Client{CheckRedirect: f.checkRedirect}
	}
	if f.maxAttempts < 1 {
		f.maxAttempts = 1
	}
	return f
}

// checkRedirect stops at the redirect itself unless every hop stays on an
// allowed http(s) host. The original Referer is carried to each hop.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if f.redirectOK == nil || len(via) > maxRedirects {
		return http.ErrUseLastResponse
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return http.ErrUseLastResponse
	}
	if !f.redirectOK(req.URL.Hostname()) {
		f.log.Warn("upstream redirect rejected", zap.String("host", req.URL.Hostname()))
		return http.ErrUseLastResponse
	}
	if ref := via[0].Header.Get("Referer"); ref != "" {
		req.Header.Set("Referer", ref)
	}
	return nil
}

// Fetch tries the request up to maxAttempts times, sequentially. Non-2xx
// replies and transport errors both count as failed attempts.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	if req.URL == nil {
		return nil, errors.New("upstream: nil url")
	}
	last := &Error{}
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 && f.retryDelay > 0 {
			select {
			case <-ctx.Done():
				last.Err = ctx.Err()
				return nil, last
			case <-time.After(f.retryDelay):
			}
		}

		resp, err := f.attempt(ctx, req)
		last.Attempts = attempt
		if err != nil {
			last.Status, last.Body, last.Err = 0, "", err
			f.observe(attempt, 0, err)
			f.log.Warn("upstream attempt failed",
				zap.String("host", req.URL.Host),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if ctx.Err() != nil {
				return nil, last
			}
			continue
		}
		f.observe(attempt, resp.Status, nil)
		if resp.Status >= 200 && resp.Status < 300 {
			resp.Attempts = attempt
			return resp, nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		_ = resp.Body.Close()
		last.Status, last.Body = resp.Status, string(snippet)
		last.Err = fmt.Errorf("status %d", resp.Status)
		f.log.Warn("upstream attempt non-2xx",
			zap.String("host", req.URL.Host),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.Status))
	}
	return nil, last
}

func (f *Fetcher) observe(attempt, status int, err error) {
	if f.onAttempt != nil {
		f.onAttempt(attempt, status, err)
	}
}

func (f *Fetcher) attempt(parent context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithCancel(parent)
	// The attempt timeout bounds the wait for response headers. Once they
	// arrive the body is streamed and the context lives until Close.
	timer := time.AfterFunc(f.attemptTimeout, cancel)

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, err
	}
	f.applyHeaders(hreq, req)

	resp, err := f.client.Do(hreq)
	if !timer.Stop() && err == nil {
		// Timer fired while headers were being returned.
		_ = resp.Body.Close()
		err = context.DeadlineExceeded
	}
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) && parent.Err() == nil {
			err = fmt.Errorf("attempt timed out after %s: %w", f.attemptTimeout, context.DeadlineExceeded)
		}
		return nil, err
	}

	body, err := decodeBody(resp)
	if err != nil {
		_ = resp.Body.Close()
		cancel()
		return nil, err
	}

	var raw io.Closer
	if body != resp.Body {
		raw = resp.Body
	}
	header := resp.Header.Clone()
	if header.Get("Content-Encoding") != "" {
		header.Del("Content-Encoding")
		header.Del("Content-Length")
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      header,
		Body:        &cancelBody{ReadCloser: body, raw: raw, cancel: cancel},
		SetCookie:   FirstCookie(resp.Header),
	}, nil
}

func (f *Fetcher) applyHeaders(hreq *http.Request, req Request) {
	referer := strings.TrimSpace(req.Referer)
	if referer == "" {
		referer = DefaultReferer
	}
	hreq.Header.Set("Accept", "*/*")
	hreq.Header.Set("Accept-Encoding", "gzip, br")
	hreq.Header.Set("Accept-Language", "en-US,en;q=0.5")
	hreq.Header.Set("User-Agent", f.userAgent)
	hreq.Header.Set("Referer", referer)
	if origin := OriginOf(referer); origin != "" {
		hreq.Header.Set("Origin", origin)
	}
	hreq.Header.Set("Sec-Fetch-Dest", "empty")
	hreq.Header.Set("Sec-Fetch-Mode", "cors")
	hreq.Header.Set("Sec-Fetch-Site", "cross-site")
	if req.Cookie != "" {
		hreq.Header.Set("Cookie", req.Cookie)
	}
}

// OriginOf returns scheme://host of a referer URL.
func OriginOf(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// FirstCookie returns the name=value part of the first Set-Cookie header.
func FirstCookie(h http.Header) string {
	raw := h.Get("Set-Cookie")
	if raw == "" {
		return ""
	}
	first, _, _ := strings.Cut(raw, ";")
	return strings.TrimSpace(first)
}

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return resp.Body, nil
	}
}

type cancelBody struct {
	io.ReadCloser
	raw    io.Closer
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	if b.raw != nil {
		if cerr := b.raw.Close(); err == nil {
			err = cerr
		}
	}
	b.cancel()
	return err
}
