package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/internal/platform/analytics"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
	"github.com/aaditx/vibeanime/internal/platform/logging"
	"github.com/aaditx/vibeanime/internal/platform/natsconn"
	"github.com/aaditx/vibeanime/internal/platform/ratelimit"
	"github.com/aaditx/vibeanime/internal/platform/run"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/allowlist"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/config"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/cookiestore"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/proxy"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	var publisher *analytics.Publisher
	if natsconn.Enabled(natsconn.Options{}) {
		nc, err := natsconn.Connect(natsconn.Options{Name: cfg.App.ServiceName, Logger: log})
		if err != nil {
			log.Warn("nats unavailable, analytics disabled", zap.Error(err))
		} else {
			defer nc.Close()
			publisher = analytics.New(nc, log)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	guard := allowlist.New(cfg.AllowedHosts...)
	cookies := cookiestore.New(cfg.CookieCapacity)
	metrics := proxy.NewMetrics(reg, cookies.Len)
	fetcher := upstream.New(
		upstream.WithLogger(log),
		upstream.WithMaxAttempts(cfg.MaxAttempts),
		upstream.WithAttemptTimeout(cfg.AttemptTimeout),
		upstream.WithRetryDelay(cfg.RetryDelay),
		upstream.WithAttemptObserver(metrics.Attempt),
		upstream.WithRedirectGuard(guard.Allowed),
	)
	handler := proxy.NewHandler(guard, cookies, fetcher, proxy.Config{
		PublicBaseURL:    cfg.PublicBaseURL,
		DefaultReferer:   cfg.DefaultReferer,
		SegmentMaxAge:    cfg.SegmentMaxAge,
		MaxPlaylistBytes: int64(cfg.MaxPlaylistBytes),
	}, proxy.WithLogger(log), proxy.WithMetrics(metrics), proxy.WithAnalytics(publisher))

	limiter := ratelimit.New(cfg.RateRPS, cfg.RateBurst)
	limiter.OnReject = proxy.RejectRateLimited

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, Gatherer: reg})
	r.With(limiter.Middleware).Method(http.MethodGet, "/proxy", handler)
	r.Method(http.MethodOptions, "/proxy", handler)

	log.Info("proxy allowlist", zap.Strings("hosts", guard.Hosts()))
	srv := httpserver.New(httpserver.Options{Addr: cfg.App.HTTP.Addr, ServiceName: cfg.App.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go runner.Graceful(ctx, "http", srv.Shutdown)
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
