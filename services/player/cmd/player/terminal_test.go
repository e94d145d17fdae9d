package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aaditx/vibeanime/services/player/internal/playback"
	"github.com/aaditx/vibeanime/services/player/internal/resolverclient"
)

type fakeCtrl struct {
	mu    sync.Mutex
	sent  []playback.Event
	state playback.State
}

func (f *fakeCtrl) Send(e playback.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
}

func (f *fakeCtrl) State() playback.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return playback.Idle{}
	}
	return f.state
}

func (f *fakeCtrl) events() []playback.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playback.Event(nil), f.sent...)
}

func listing() resolverclient.Listing {
	return resolverclient.Listing{Episodes: []resolverclient.Episode{
		{ID: "one-piece-100?ep=2142", Number: 1},
		{ID: "one-piece-100?ep=2143", Number: 2},
	}}
}

// ─── Parsing ─────────────────────────────────────────────────────────────────

func TestParseCommand(t *testing.T) {
	cases := map[string]command{
		"server b":  {event: playback.SwitchServer{Server: playback.ServerB}},
		"S hd-1":    {event: playback.SwitchServer{Server: playback.ServerA}},
		"track DUB": {event: playback.SwitchTrack{Track: playback.TrackDub}},
		"dismiss":   {event: playback.DismissNext{}},
		"alt":       {event: playback.SwitchEmbed{}},
		"n":         {next: true},
		"quit":      {quit: true},
		"   ":       {},
	}
	for in, want := range cases {
		got, err := parseCommand(in)
		if err != nil {
			t.Errorf("parseCommand(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", in, got, want)
		}
	}
	for _, bad := range []string{"server c", "track raw", "rewind"} {
		if _, err := parseCommand(bad); err == nil {
			t.Errorf("parseCommand(%q) should fail", bad)
		}
	}
}

func TestParseOption(t *testing.T) {
	opt, err := parseOption("b", "dub")
	if err != nil || opt != (playback.Option{Server: playback.ServerB, Track: playback.TrackDub}) {
		t.Fatalf("got %+v %v", opt, err)
	}
	if _, err := parseOption("c", "sub"); err == nil {
		t.Fatal("expected error for unknown server")
	}
}

// ─── Navigation ──────────────────────────────────────────────────────────────

func TestTerminal_EpisodeKnowsNext(t *testing.T) {
	term := newTerminal(&bytes.Buffer{}, "21", listing())
	ep, ok := term.episode(1)
	if !ok || !ep.HasNext || ep.EpisodeID != "one-piece-100?ep=2142" || ep.SeriesID != "21" {
		t.Fatalf("unexpected episode %+v", ep)
	}
	if ep, _ := term.episode(2); ep.HasNext {
		t.Fatal("last episode has no next")
	}
	if _, ok := term.episode(3); ok {
		t.Fatal("episode 3 does not exist")
	}
}

func TestTerminal_NextKeepsOption(t *testing.T) {
	ctrl := &fakeCtrl{}
	opt := playback.Option{Server: playback.ServerB, Track: playback.TrackDub}
	ep1, _ := newTerminal(nil, "21", listing()).episode(1)
	ctrl.state = playback.Playing{Session: playback.Session{Epoch: 1, Episode: ep1, Option: opt}}

	var out bytes.Buffer
	term := newTerminal(&out, "21", listing())
	term.ctrl = ctrl
	term.Next(context.Background(), ep1)

	sent := ctrl.events()
	if len(sent) != 1 {
		t.Fatalf("expected one event, got %v", sent)
	}
	open, ok := sent[0].(playback.Open)
	if !ok || open.Episode.Number != 2 || open.Option != opt {
		t.Fatalf("unexpected event %#v", sent[0])
	}
}

func TestTerminal_NextAfterLastEpisode(t *testing.T) {
	ctrl := &fakeCtrl{}
	var out bytes.Buffer
	term := newTerminal(&out, "21", listing())
	term.ctrl = ctrl
	term.Next(context.Background(), playback.Episode{SeriesID: "21", Number: 2})
	if len(ctrl.events()) != 0 {
		t.Fatal("no episode should be opened")
	}
	if !strings.Contains(out.String(), "last episode") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestTerminal_ShowEmbed(t *testing.T) {
	var out bytes.Buffer
	newTerminal(&out, "21", listing()).ShowEmbed("https://megaplay.buzz/stream/s-2/2142/sub", "no sources")
	if !strings.Contains(out.String(), "https://megaplay.buzz/stream/s-2/2142/sub") {
		t.Fatalf("embed url missing from %q", out.String())
	}
}

func TestTerminal_ShowEmbedOffersAlternate(t *testing.T) {
	ctrl := &fakeCtrl{state: playback.EmbedFallback{
		URL:    "https://megaplay.buzz/stream/s-2/2142/sub",
		AltURL: "https://vidwish.live/stream/s-2/2142/sub",
	}}
	var out bytes.Buffer
	term := newTerminal(&out, "21", listing())
	term.ctrl = ctrl
	term.ShowEmbed("https://megaplay.buzz/stream/s-2/2142/sub", "no sources")
	if !strings.Contains(out.String(), `"alt"`) {
		t.Fatalf("alternate hint missing from %q", out.String())
	}

	out.Reset()
	ctrl.state = playback.EmbedFallback{URL: "https://megaplay.buzz/stream/s-2/2142/sub"}
	term.ShowEmbed("https://megaplay.buzz/stream/s-2/2142/sub", "no sources")
	if strings.Contains(out.String(), `"alt"`) {
		t.Fatalf("no alternate host, got %q", out.String())
	}
}

// ─── Console ─────────────────────────────────────────────────────────────────

func TestReadCommands_ForwardsUntilQuit(t *testing.T) {
	ctrl := &fakeCtrl{}
	var out bytes.Buffer
	term := newTerminal(&out, "21", listing())
	term.ctrl = ctrl

	in := strings.NewReader("server B\nbogus\ntrack dub\nquit\nserver A\n")
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		readCommands(context.Background(), in, term, ctrl, func() { close(quit) })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("readCommands did not return on quit")
	}
	select {
	case <-quit:
	default:
		t.Fatal("quit callback not called")
	}

	sent := ctrl.events()
	want := []playback.Event{playback.SwitchServer{Server: playback.ServerB}, playback.SwitchTrack{Track: playback.TrackDub}}
	if len(sent) != len(want) || sent[0] != want[0] || sent[1] != want[1] {
		t.Fatalf("unexpected events %#v", sent)
	}
	if !strings.Contains(out.String(), `unknown command "bogus"`) {
		t.Fatalf("unexpected output %q", out.String())
	}
}
