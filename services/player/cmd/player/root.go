package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyResolverURL    = "resolver-url"
	keyProxyURL       = "proxy-url"
	keyStore          = "store"
	keyUserID         = "user-id"
	keyToken          = "token"
	keyMPV            = "mpv"
	keyMPVArgs        = "mpv-args"
	keyLogLevel       = "log-level"
	keyWatchdog       = "watchdog"
	keySampleInterval = "sample-interval"
	keyNextCountdown  = "next-countdown"
	keyTimeout        = "timeout"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "player",
		Short:         "Watch anime episodes in mpv",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			return v.ReadInConfig()
		},
	}

	v.SetEnvPrefix("VIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, toml or json)")
	pf.String(keyResolverURL, "http://localhost:8085", "Streaming resolver base URL")
	pf.String(keyProxyURL, "http://localhost:8084", "Streaming proxy base URL; empty plays upstream URLs directly")
	pf.String(keyStore, defaultStorePath(), "Progress store: a SQLite path or a postgres:// URL")
	pf.String(keyUserID, "local", "User id progress is stored under")
	pf.String(keyToken, "", "Bearer token sent to the resolver")
	pf.String(keyMPV, "mpv", "mpv binary")
	pf.StringSlice(keyMPVArgs, nil, "Extra arguments passed to mpv, comma separated")
	pf.String(keyLogLevel, "warn", "Log level")
	pf.Duration(keyWatchdog, 5*time.Second, "Fall back to the embed player when playback stays at zero this long")
	pf.Duration(keySampleInterval, 5*time.Second, "How often the playback position is sampled and saved")
	pf.Duration(keyNextCountdown, 10*time.Second, "Countdown before the next episode starts")
	pf.Duration(keyTimeout, 30*time.Second, "Resolver request timeout")
	for _, k := range []string{keyResolverURL, keyProxyURL, keyStore, keyUserID, keyToken, keyMPV, keyMPVArgs, keyLogLevel, keyWatchdog, keySampleInterval, keyNextCountdown, keyTimeout} {
		lo.Must0(v.BindPFlag(k, pf.Lookup(k)))
	}

	root.AddCommand(newWatchCmd(v))
	return root
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vibeanime", "progress.db")
}
