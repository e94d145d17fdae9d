package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaditx/vibeanime/internal/platform/logging"
	"github.com/aaditx/vibeanime/internal/platform/run"
	"github.com/aaditx/vibeanime/services/player/internal/mpv"
	"github.com/aaditx/vibeanime/services/player/internal/playback"
	"github.com/aaditx/vibeanime/services/player/internal/progress"
	"github.com/aaditx/vibeanime/services/player/internal/resolverclient"
)

type watchOptions struct {
	catalogID int
	episode   int
	server    string
	track     string
}

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var o watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Play a catalog entry, resuming where you left off",
		Example: "  player watch --catalog-id 21\n" +
			"  player watch --catalog-id 21 --episode 3 --server B --track dub",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt, err := parseOption(o.server, o.track)
			if err != nil {
				return err
			}
			log, err := logging.New(v.GetString(keyLogLevel), logging.WithConsole())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			code := run.New(log).WithSignals(func(ctx context.Context) error {
				return watch(ctx, v, o, opt, cmd.InOrStdin(), cmd.OutOrStdout(), log)
			})
			if code != 0 {
				return errors.New("playback ended with an error")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.catalogID, "catalog-id", 0, "Catalog (AniList) id of the series")
	f.IntVar(&o.episode, "episode", 0, "Episode number; defaults to the last one watched")
	f.StringVar(&o.server, "server", "A", "Server: A or B")
	f.StringVar(&o.track, "track", "sub", "Audio track: sub or dub")
	_ = cmd.MarkFlagRequired("catalog-id")
	return cmd
}

func watch(ctx context.Context, v *viper.Viper, o watchOptions, opt playback.Option, in io.Reader, out io.Writer, log *zap.Logger) error {
	if o.catalogID <= 0 {
		return fmt.Errorf("catalog id must be positive, got %d", o.catalogID)
	}
	store, err := progress.Open(ctx, v.GetString(keyStore))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rc := resolverclient.New(v.GetString(keyResolverURL), v.GetDuration(keyTimeout),
		resolverclient.WithToken(v.GetString(keyToken)),
		resolverclient.WithLogger(log),
	)
	listing, err := rc.Episodes(ctx, o.catalogID)
	if err != nil {
		return err
	}
	if len(listing.Episodes) == 0 {
		return fmt.Errorf("no episodes found for catalog id %d", o.catalogID)
	}

	userID := v.GetString(keyUserID)
	seriesID := strconv.Itoa(o.catalogID)
	number := o.episode
	if number <= 0 {
		number = 1
		if last, ok, err := store.GetProgress(ctx, userID, seriesID); err != nil {
			log.Warn("progress lookup failed", zap.Error(err))
		} else if ok {
			number = last
		}
	}

	term := newTerminal(out, seriesID, listing)
	first, ok := term.episode(number)
	if !ok {
		return fmt.Errorf("episode %d not found", number)
	}

	engine := mpv.New(
		mpv.WithBinary(v.GetString(keyMPV)),
		mpv.WithArgs(v.GetStringSlice(keyMPVArgs)...),
		mpv.WithLogger(log),
	)
	proxyBase := v.GetString(keyProxyURL)
	ctrl := playback.NewController(playback.Config{
		Watchdog:       v.GetDuration(keyWatchdog),
		SampleInterval: v.GetDuration(keySampleInterval),
		NextCountdown:  v.GetDuration(keyNextCountdown),
		UserID:         userID,
		Proxy: func(target, referer string) string {
			return resolverclient.ProxyURL(proxyBase, target, referer)
		},
	}, playback.Deps{
		Resolver:  rc,
		Engine:    engine,
		Embedder:  term,
		Navigator: term,
		Progress:  store,
		Positions: store,
	}, playback.WithLogger(log))
	term.ctrl = ctrl

	if listing.Title != "" {
		term.printf("%s\n", listing.Title)
	}
	term.printf("commands: server A|B, track sub|dub, alt, dismiss, next, quit\n")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctrl.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		readCommands(gctx, in, term, ctrl, cancel)
		return nil
	})
	ctrl.Send(playback.Open{Episode: first, Option: opt})
	return g.Wait()
}

func parseOption(server, track string) (playback.Option, error) {
	opt := playback.DefaultOption()
	s, ok := parseServer(server)
	if !ok {
		return opt, fmt.Errorf("unknown server %q, want A or B", server)
	}
	t, ok := parseTrack(track)
	if !ok {
		return opt, fmt.Errorf("unknown track %q, want sub or dub", track)
	}
	opt.Server, opt.Track = s, t
	return opt, nil
}
