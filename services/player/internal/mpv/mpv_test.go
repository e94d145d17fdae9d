package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aaditx/vibeanime/services/player/internal/playback"
)

// fakeMPV answers IPC commands the way mpv does.
type fakeMPV struct {
	t  *testing.T
	ln net.Listener

	mu       sync.Mutex
	conn     net.Conn
	commands [][]any
	props    map[string]any
}

func newFakeMPV(t *testing.T) (*fakeMPV, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "s.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeMPV{t: t, ln: ln, props: map[string]any{}}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f, socket
}

func (f *fakeMPV) serve() {
	c, err := f.ln.Accept()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()
	sc := bufio.NewScanner(c)
	for sc.Scan() {
		var req struct {
			Command   []any `json:"command"`
			RequestID int64 `json:"request_id"`
		}
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		f.mu.Unlock()

		reply := map[string]any{"request_id": req.RequestID, "error": "success"}
		if req.Command[0] == "get_property" {
			f.mu.Lock()
			v, ok := f.props[req.Command[1].(string)]
			f.mu.Unlock()
			if ok {
				reply["data"] = v
			} else {
				reply["error"] = "property unavailable"
			}
		}
		f.write(reply)
	}
}

func (f *fakeMPV) write(v any) {
	b, _ := json.Marshal(v)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = f.conn.Write(append(b, '\n'))
}

func (f *fakeMPV) set(prop string, v any) {
	f.mu.Lock()
	f.props[prop] = v
	f.mu.Unlock()
}

func (f *fakeMPV) sent() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.commands...)
}

func attach(t *testing.T) (*fakeMPV, *Session) {
	t.Helper()
	f, socket := newFakeMPV(t)
	s, err := dial(context.Background(), socket, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return f, s
}

func nextEvent(t *testing.T, s *Session) playback.EngineEvent {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return playback.EngineEvent{}
}

// ─── Commands ────────────────────────────────────────────────────────────────

func TestSession_LoadSendsLoadfile(t *testing.T) {
	f, s := attach(t)
	if err := s.load(context.Background(), "http://proxy/proxy?url=x"); err != nil {
		t.Fatalf("load: %v", err)
	}
	cmds := f.sent()
	if len(cmds) != 1 || cmds[0][0] != "loadfile" || cmds[0][1] != "http://proxy/proxy?url=x" {
		t.Fatalf("unexpected commands %v", cmds)
	}
}

func TestSession_PositionBeforeLoadIsZero(t *testing.T) {
	_, s := attach(t)
	pos, dur, err := s.Position(context.Background())
	if err != nil || pos != 0 || dur != 0 {
		t.Fatalf("got %v %v %v", pos, dur, err)
	}
}

func TestSession_Position(t *testing.T) {
	f, s := attach(t)
	f.set("time-pos", 12.5)
	f.set("duration", 1420.0)
	pos, dur, err := s.Position(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 12.5 || dur != 1420 {
		t.Fatalf("got pos=%v dur=%v", pos, dur)
	}
}

func TestSession_Seek(t *testing.T) {
	f, s := attach(t)
	if err := s.Seek(context.Background(), 612); err != nil {
		t.Fatalf("seek: %v", err)
	}
	cmds := f.sent()
	if len(cmds) != 1 || cmds[0][0] != "seek" || cmds[0][1] != 612.0 || cmds[0][2] != "absolute" {
		t.Fatalf("unexpected commands %v", cmds)
	}
}

func TestSession_CommandAfterCloseFails(t *testing.T) {
	_, s := attach(t)
	_ = s.Close()
	if err := s.Seek(context.Background(), 1); err == nil {
		t.Fatal("expected error after close")
	}
}

// ─── Events ──────────────────────────────────────────────────────────────────

func TestSession_TranslatesEvents(t *testing.T) {
	f, s := attach(t)
	// Force the fake to have accepted before writing events.
	if _, _, err := s.Position(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.write(map[string]any{"event": "start-file"})
	f.write(map[string]any{"event": "file-loaded"})
	if ev := nextEvent(t, s); ev.Kind != playback.EngineLoaded {
		t.Fatalf("expected loaded, got %+v", ev)
	}

	f.write(map[string]any{"event": "end-file", "reason": "stop"})
	f.write(map[string]any{"event": "end-file", "reason": "error", "file_error": "loading failed"})
	if ev := nextEvent(t, s); ev.Kind != playback.EngineFailed || ev.Err != "loading failed" {
		t.Fatalf("expected failure, got %+v", ev)
	}

	f.write(map[string]any{"event": "end-file", "reason": "eof"})
	if ev := nextEvent(t, s); ev.Kind != playback.EngineEnded {
		t.Fatalf("expected ended, got %+v", ev)
	}
}

func TestSession_UserQuitIsClosed(t *testing.T) {
	f, s := attach(t)
	if _, _, err := s.Position(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.write(map[string]any{"event": "end-file", "reason": "quit"})
	if ev := nextEvent(t, s); ev.Kind != playback.EngineClosed {
		t.Fatalf("expected closed, got %+v", ev)
	}
	f.write(map[string]any{"event": "shutdown"})
	if ev := nextEvent(t, s); ev.Kind != playback.EngineClosed {
		t.Fatalf("expected closed on shutdown, got %+v", ev)
	}
}

func TestEngine_ExtraArgs(t *testing.T) {
	e := New(WithArgs("--hwdec=auto"), WithArgs("--volume=60"))
	if len(e.ExtraArgs) != 2 || e.ExtraArgs[0] != "--hwdec=auto" || e.ExtraArgs[1] != "--volume=60" {
		t.Fatalf("unexpected args %v", e.ExtraArgs)
	}
}

func TestSession_EventsClosedWhenSocketCloses(t *testing.T) {
	f, s := attach(t)
	if _, _, err := s.Position(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	_ = f.conn.Close()
	f.mu.Unlock()
	select {
	case _, ok := <-s.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}
