// Package proxy is the HTTP relay for HLS playlists and segments.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/internal/platform/analytics"
	"github.com/aaditx/vibeanime/internal/platform/api"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/rewriter"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/upstream"
)

const defaultMaxPlaylistBytes = 8 << 20

var errPlaylistTooLarge = errors.New("playlist exceeds size limit")

type HostGuard interface {
	Allowed(hostname string) bool
}

type CookieJar interface {
	Get(key string) (string, bool)
	Set(key, cookie string)
}

type Fetcher interface {
	Fetch(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

type Config struct {
	// PublicBaseURL is the externally visible origin of this service. When
	// empty it is derived from each request.
	PublicBaseURL  string
	DefaultReferer string
	SegmentMaxAge  int
	// MaxPlaylistBytes caps a playlist body; larger ones are a 502.
	MaxPlaylistBytes int64
}

type Handler struct {
	guard     HostGuard
	cookies   CookieJar
	fetcher   Fetcher
	cfg       Config
	log       *zap.Logger
	metrics   *Metrics
	analytics *analytics.Publisher
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option             { return func(h *Handler) { h.log = l } }
func WithMetrics(m *Metrics) Option               { return func(h *Handler) { h.metrics = m } }
func WithAnalytics(p *analytics.Publisher) Option { return func(h *Handler) { h.analytics = p } }

func NewHandler(guard HostGuard, cookies CookieJar, fetcher Fetcher, cfg Config, opts ...Option) *Handler {
	if cfg.DefaultReferer == "" {
		cfg.DefaultReferer = upstream.DefaultReferer
	}
	if cfg.SegmentMaxAge <= 0 {
		cfg.SegmentMaxAge = 86400
	}
	if cfg.MaxPlaylistBytes <= 0 {
		cfg.MaxPlaylistBytes = defaultMaxPlaylistBytes
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	h := &Handler{guard: guard, cookies: cookies, fetcher: fetcher, cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// ServeHTTP handles GET /proxy?url=&referer= and its preflight.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		h.metrics.request(outcomeBadRequest)
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Hostname() == "" {
		h.metrics.request(outcomeBadRequest)
		http.Error(w, "Invalid url parameter", http.StatusBadRequest)
		return
	}

	clientIP := httpserver.ClientIP(r)
	if !h.guard.Allowed(target.Hostname()) {
		h.metrics.request(outcomeForbidden)
		h.log.Warn("proxy target rejected",
			zap.String("host", target.Hostname()),
			zap.String("client_ip", clientIP),
			zap.String("request_id", httpserver.RequestIDFromContext(r.Context())))
		h.analytics.Publish(analytics.SubjectProxyRejected, "proxy_rejected", "", map[string]any{
			"host": target.Hostname(),
		})
		http.Error(w, "Forbidden host", http.StatusForbidden)
		return
	}

	referer := strings.TrimSpace(r.URL.Query().Get("referer"))
	if referer == "" {
		referer = h.cfg.DefaultReferer
	}

	key := SessionKey(target, clientIP)
	cookie, _ := h.cookies.Get(key)

	resp, err := h.fetcher.Fetch(r.Context(), upstream.Request{URL: target, Referer: referer, Cookie: cookie})
	if err != nil {
		h.writeUpstreamError(w, target, err)
		return
	}
	defer resp.Body.Close()

	if resp.SetCookie != "" {
		h.cookies.Set(key, resp.SetCookie)
	}

	if rewriter.IsPlaylist(resp.ContentType, target.Path) {
		h.servePlaylist(w, r, target, referer, resp)
		return
	}
	h.serveSegment(w, resp)
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, target *url.URL, err error) {
	h.metrics.request(outcomeUpstream)
	status := http.StatusBadGateway
	var uerr *upstream.Error
	if errors.As(err, &uerr) && uerr.Status >= 400 {
		status = uerr.Status
	}
	h.log.Info("proxy upstream failed",
		zap.String("host", target.Hostname()),
		zap.Int("status", status),
		zap.Error(err))
	http.Error(w, fmt.Sprintf("Upstream error: %d", status), status)
}

func (h *Handler) servePlaylist(w http.ResponseWriter, r *http.Request, target *url.URL, referer string, resp *upstream.Response) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxPlaylistBytes+1))
	if err == nil && int64(len(data)) > h.cfg.MaxPlaylistBytes {
		err = errPlaylistTooLarge
	}
	if err != nil {
		h.writeUpstreamError(w, target, err)
		return
	}
	body := rewriter.Rewrite(string(data), target.String(), h.proxyBase(r), referer)

	h.metrics.request(outcomePlaylist)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	if resp.SetCookie != "" {
		w.Header().Add("Set-Cookie", resp.SetCookie+"; Path=/; SameSite=None; Secure")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (h *Handler) serveSegment(w http.ResponseWriter, resp *upstream.Response) {
	ct := resp.ContentType
	if ct == "" {
		ct = "video/mp2t"
	}
	h.metrics.request(outcomeSegment)
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.cfg.SegmentMaxAge)+", immutable")
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}

// RejectRateLimited answers a throttled /proxy request: the JSON error
// envelope with the proxy's CORS headers, so browsers can read the 429.
func RejectRateLimited(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Retry-After", "1")
	api.RateLimited(w, "RATE_LIMITED", "Too many requests", httpserver.RequestIDFromContext(r.Context()), nil)
}

// proxyBase is the absolute URL of this endpoint as seen by the player.
func (h *Handler) proxyBase(r *http.Request) string {
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL + r.URL.Path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); p != "" {
		scheme, _, _ = strings.Cut(p, ",")
		scheme = strings.TrimSpace(scheme)
	}
	host := r.Host
	if fh := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); fh != "" {
		host, _, _ = strings.Cut(fh, ",")
		host = strings.TrimSpace(host)
	}
	return scheme + "://" + host + r.URL.Path
}
