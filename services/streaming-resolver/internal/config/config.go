package config

import (
	"strings"
	"time"

	"github.com/samber/lo"

	platformcfg "github.com/aaditx/vibeanime/internal/platform/config"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/aniwatch"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/catalog"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/hianime"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/sources"
)

type Config struct {
	App      platformcfg.AppConfig
	GRPCAddr string

	HiAnimeBaseURL string
	AniwatchURL    string
	AniListURL     string
	EmbedBaseURL   string
	// AltEmbedBaseURL is offered next to the primary embed; "off" disables it.
	AltEmbedBaseURL string
	// HTTP client headers for upstream requests (configurable via env).
	UserAgent string

	// RedisURL selects the shared cache; empty keeps lookups in process memory.
	RedisURL      string
	MemCacheSize  int
	ProviderIDTTL time.Duration
	EpisodesTTL   time.Duration
	CatalogTTL    time.Duration

	UpstreamTimeout time.Duration
	LegTimeout      time.Duration
	// Retry and circuit-breaker settings.
	MaxRetries         int
	RetryBaseDelay     time.Duration
	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32

	JWTSecret string
}

func Load() (Config, error) {
	app, err := platformcfg.Load(":8085")
	if err != nil {
		return Config{}, err
	}
	return Config{
		App:      app,
		GRPCAddr: platformcfg.String("GRPC_ADDR", ":9095"),

		HiAnimeBaseURL:  platformcfg.String("HIANIME_BASE_URL", hianime.DefaultBaseURL),
		AniwatchURL:     platformcfg.String("ANIWATCH_API_URL", aniwatch.DefaultBaseURL),
		AniListURL:      platformcfg.String("ANILIST_URL", catalog.DefaultURL),
		EmbedBaseURL:    platformcfg.String("EMBED_BASE_URL", sources.DefaultEmbedBase),
		AltEmbedBaseURL: altEmbedBase(platformcfg.String("ALT_EMBED_BASE_URL", sources.DefaultAltEmbedBase)),
		UserAgent:       platformcfg.String("HIANIME_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:146.0) Gecko/20100101 Firefox/146.0"),

		RedisURL:      platformcfg.String("REDIS_URL", ""),
		MemCacheSize:  platformcfg.Int("MEM_CACHE_SIZE", 4096),
		ProviderIDTTL: platformcfg.Duration("PROVIDER_ID_TTL", 24*time.Hour),
		EpisodesTTL:   platformcfg.Duration("EPISODES_TTL", time.Hour),
		CatalogTTL:    platformcfg.Duration("CATALOG_TTL", 24*time.Hour),

		UpstreamTimeout:    platformcfg.Duration("UPSTREAM_TIMEOUT", 12*time.Second),
		LegTimeout:         platformcfg.Duration("CASCADE_LEG_TIMEOUT", sources.DefaultLegTimeout),
		MaxRetries:         platformcfg.Int("HIANIME_MAX_RETRIES", 2),
		RetryBaseDelay:     platformcfg.Duration("HIANIME_RETRY_BASE_DELAY", 300*time.Millisecond),
		CBMaxRequests:      uint32(platformcfg.Int("CB_MAX_REQUESTS", 5)),
		CBInterval:         platformcfg.Duration("CB_INTERVAL", 60*time.Second),
		CBTimeout:          platformcfg.Duration("CB_TIMEOUT", 30*time.Second),
		CBFailureThreshold: uint32(platformcfg.Int("CB_FAILURE_THRESHOLD", 5)),

		JWTSecret: platformcfg.String("JWT_SECRET", ""),
	}, nil
}

func altEmbedBase(v string) string {
	if strings.EqualFold(v, "off") {
		return ""
	}
	return v
}

// MaxCacheTTL is the longest TTL any cache entry is written with, so the
// in-memory LRU never evicts an entry before its own TTL.
func (c Config) MaxCacheTTL() time.Duration {
	return lo.Max([]time.Duration{c.ProviderIDTTL, c.EpisodesTTL, c.CatalogTTL})
}
