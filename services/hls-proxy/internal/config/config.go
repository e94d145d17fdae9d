package config

import (
	"time"

	platformcfg "github.com/aaditx/vibeanime/internal/platform/config"
	"github.com/aaditx/vibeanime/services/hls-proxy/internal/upstream"
)

type Config struct {
	App platformcfg.AppConfig

	PublicBaseURL  string
	DefaultReferer string
	AllowedHosts   []string

	MaxAttempts    int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration

	CookieCapacity   int
	SegmentMaxAge    int
	MaxPlaylistBytes int

	RateRPS   float64
	RateBurst int
}

func Load() (Config, error) {
	app, err := platformcfg.Load(":8084")
	if err != nil {
		return Config{}, err
	}
	return Config{
		App:              app,
		PublicBaseURL:    platformcfg.String("PROXY_PUBLIC_BASE_URL", ""),
		DefaultReferer:   platformcfg.String("PROXY_DEFAULT_REFERER", upstream.DefaultReferer),
		AllowedHosts:     platformcfg.List("PROXY_ALLOWED_HOSTS"),
		MaxAttempts:      platformcfg.Int("PROXY_MAX_ATTEMPTS", 3),
		RetryDelay:       platformcfg.Duration("PROXY_RETRY_DELAY", 0),
		AttemptTimeout:   platformcfg.Duration("PROXY_ATTEMPT_TIMEOUT", 12*time.Second),
		CookieCapacity:   platformcfg.Int("PROXY_COOKIE_CAPACITY", 500),
		SegmentMaxAge:    platformcfg.Int("PROXY_SEGMENT_MAX_AGE", 86400),
		MaxPlaylistBytes: platformcfg.Int("PROXY_MAX_PLAYLIST_BYTES", 8<<20),
		RateRPS:          platformcfg.Float("PROXY_RATE_RPS", 50),
		RateBurst:        platformcfg.Int("PROXY_RATE_BURST", 200),
	}, nil
}
