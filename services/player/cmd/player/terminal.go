package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aaditx/vibeanime/services/player/internal/playback"
	"github.com/aaditx/vibeanime/services/player/internal/resolverclient"
)

// terminal reports playback to the console and owns episode navigation.
type terminal struct {
	mu  sync.Mutex
	out io.Writer

	seriesID string
	listing  resolverclient.Listing
	ctrl     interface{ Send(playback.Event) }
}

func newTerminal(out io.Writer, seriesID string, listing resolverclient.Listing) *terminal {
	return &terminal{out: out, seriesID: seriesID, listing: listing}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) episode(n int) (playback.Episode, bool) {
	ep, ok := t.listing.Find(n)
	if !ok {
		return playback.Episode{}, false
	}
	_, hasNext := t.listing.Find(n + 1)
	return playback.Episode{SeriesID: t.seriesID, Number: n, EpisodeID: ep.ID, HasNext: hasNext}, true
}

func (t *terminal) ShowEmbed(url, reason string) {
	t.printf("direct playback unavailable (%s); open the embed player instead:\n  %s\n", reason, url)
	if t.hasAltEmbed() {
		t.printf("type \"alt\" for the other embed host\n")
	}
}

func (t *terminal) hasAltEmbed() bool {
	c, ok := t.ctrl.(interface{ State() playback.State })
	if !ok {
		return false
	}
	f, ok := c.State().(playback.EmbedFallback)
	return ok && f.AltURL != ""
}

func (t *terminal) ShowError(msg string) {
	t.printf("playback failed: %s\n", msg)
}

func (t *terminal) OfferNext(from playback.Episode, countdown time.Duration) {
	t.printf("episode %d starts in %s (type \"dismiss\" to stay)\n", from.Number+1, countdown)
}

func (t *terminal) WithdrawNext() {}

func (t *terminal) Next(_ context.Context, from playback.Episode) {
	next, ok := t.episode(from.Number + 1)
	if !ok {
		t.printf("that was the last episode\n")
		return
	}
	t.printf("playing episode %d\n", next.Number)
	t.ctrl.Send(playback.Open{Episode: next, Option: t.currentOption()})
}

// currentOption keeps the viewer's server and track across episodes.
func (t *terminal) currentOption() playback.Option {
	if c, ok := t.ctrl.(interface{ State() playback.State }); ok {
		if sess, ok := playback.SessionOf(c.State()); ok {
			return sess.Option
		}
	}
	return playback.DefaultOption()
}

// command is one parsed console line.
type command struct {
	event playback.Event
	next  bool
	quit  bool
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}, nil
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "server", "s":
		s, ok := parseServer(arg)
		if !ok {
			return command{}, fmt.Errorf("unknown server %q", arg)
		}
		return command{event: playback.SwitchServer{Server: s}}, nil
	case "track", "t":
		tr, ok := parseTrack(arg)
		if !ok {
			return command{}, fmt.Errorf("unknown track %q", arg)
		}
		return command{event: playback.SwitchTrack{Track: tr}}, nil
	case "dismiss", "d":
		return command{event: playback.DismissNext{}}, nil
	case "alt", "a":
		return command{event: playback.SwitchEmbed{}}, nil
	case "next", "n":
		return command{next: true}, nil
	case "quit", "q", "exit":
		return command{quit: true}, nil
	}
	return command{}, fmt.Errorf("unknown command %q", fields[0])
}

func parseServer(raw string) (playback.Server, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "A", "HD-1":
		return playback.ServerA, true
	case "B", "HD-2":
		return playback.ServerB, true
	}
	return "", false
}

func parseTrack(raw string) (playback.Track, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sub":
		return playback.TrackSub, true
	case "dub":
		return playback.TrackDub, true
	}
	return "", false
}

// readCommands feeds console lines to the controller until quit, EOF on a
// closed input, or ctx ends.
func readCommands(ctx context.Context, in io.Reader, t *terminal, ctrl interface {
	Send(playback.Event)
	State() playback.State
}, quit func()) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return
			}
			cmd, err := parseCommand(line)
			if err != nil {
				t.printf("%v\n", err)
				continue
			}
			switch {
			case cmd.quit:
				quit()
				return
			case cmd.next:
				if sess, ok := playback.SessionOf(ctrl.State()); ok {
					t.Next(ctx, sess.Episode)
				}
			case cmd.event != nil:
				ctrl.Send(cmd.event)
			}
		}
	}
}
