package main

import (
	"context"
	"net"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/aaditx/vibeanime/internal/platform/analytics"
	"github.com/aaditx/vibeanime/internal/platform/auth"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
	"github.com/aaditx/vibeanime/internal/platform/logging"
	"github.com/aaditx/vibeanime/internal/platform/natsconn"
	"github.com/aaditx/vibeanime/internal/platform/run"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/aniwatch"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/cache"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/catalog"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/config"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/episodes"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/handlers"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/hianime"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/sources"
)

const healthService = "vibeanime.streaming.resolver"

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

	var (
		store cache.Cache
		ready func() error
	)
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Error("redis", zap.Error(err))
			run.Exit(1)
		}
		defer func() { _ = rc.Close() }()
		store = rc
		ready = func() error { return rc.Ping(context.Background()) }
	} else {
		store = cache.NewMemoryCache(cfg.MemCacheSize, cfg.MaxCacheTTL())
		log.Info("REDIS_URL not set, caching in memory")
	}

	var (
		nc        *nats.Conn
		publisher *analytics.Publisher
	)
	if natsconn.Enabled(natsconn.Options{}) {
		conn, err := natsconn.Connect(natsconn.Options{Name: cfg.App.ServiceName, Logger: log})
		if err != nil {
			log.Warn("nats unavailable, analytics and cache invalidation are local only", zap.Error(err))
		} else {
			nc = conn
			defer nc.Close()
			publisher = analytics.New(nc, log)
			if _, err := cache.Subscribe(nc, store, log); err != nil {
				log.Warn("cache invalidation subscribe failed", zap.Error(err))
			}
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scraper := hianime.New(cfg.HiAnimeBaseURL, cfg.UpstreamTimeout,
		hianime.WithLogger(log),
		hianime.WithUserAgent(cfg.UserAgent),
	)
	mirror := aniwatch.New(cfg.AniwatchURL, aniwatch.ClientConfig{
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.UpstreamTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
	},
		aniwatch.WithCircuitBreaker(aniwatch.NewBreaker("aniwatch", cfg.CBMaxRequests, cfg.CBInterval, cfg.CBTimeout, cfg.CBFailureThreshold, log)),
		aniwatch.WithLogger(log),
	)
	backends := []provider.Backend{scraper, mirror}

	episodeResolver := episodes.New(backends, store,
		episodes.WithLogger(log),
		episodes.WithTTLs(cfg.ProviderIDTTL, cfg.EpisodesTTL),
	)
	sourceResolver := sources.New(backends, cfg.EmbedBaseURL,
		sources.WithLogger(log),
		sources.WithMetrics(sources.NewMetrics(reg)),
		sources.WithAnalytics(publisher),
		sources.WithLegTimeout(cfg.LegTimeout),
		sources.WithAltEmbedBase(cfg.AltEmbedBaseURL),
	)
	anilist := catalog.New(cfg.AniListURL, cfg.UpstreamTimeout,
		catalog.WithLogger(log),
		catalog.WithCache(store, cfg.CatalogTTL),
	)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, Gatherer: reg, ReadyFunc: ready})
	handlers.Mount(r, handlers.Deps{
		Sources:     sourceResolver,
		Catalog:     anilist,
		Episodes:    episodeResolver,
		Invalidator: cache.NewInvalidator(nc, store, log),
		Verifier:    auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Log:         log,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.App.HTTP.Addr, ServiceName: cfg.App.ServiceName, Logger: log, Router: r})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	reflection.Register(grpcSrv)
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		go func() {
			<-gctx.Done()
			hs.Shutdown()
		}()
		go runner.Graceful(gctx, "http", srv.Shutdown)
		go runner.GracefulGRPC(gctx, grpcSrv)

		g.Go(func() error {
			log.Info("grpc server starting", zap.String("addr", cfg.GRPCAddr))
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error { return srv.Start(log) })
		return g.Wait()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
