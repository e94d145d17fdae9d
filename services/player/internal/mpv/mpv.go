// Package mpv plays streams in an mpv process driven over its JSON IPC
// socket.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/services/player/internal/playback"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 150 * time.Millisecond
)

type Engine struct {
	Binary    string
	ExtraArgs []string
	SocketDir string
	Log       *zap.Logger
}

type Option func(*Engine)

func WithBinary(path string) Option { return func(e *Engine) { e.Binary = path } }

// WithArgs appends arguments to every mpv invocation.
func WithArgs(args ...string) Option {
	return func(e *Engine) { e.ExtraArgs = append(e.ExtraArgs, args...) }
}

func WithLogger(log *zap.Logger) Option { return func(e *Engine) { e.Log = log } }

func New(opts ...Option) *Engine {
	e := &Engine{Binary: "mpv", SocketDir: os.TempDir(), Log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Open starts an idle mpv, connects to its socket and loads url. Loading
// after connecting guarantees file-loaded is observed.
func (e *Engine) Open(ctx context.Context, url string) (playback.StreamSession, error) {
	socket := filepath.Join(e.SocketDir, "vibeanime-"+uuid.NewString()+".sock")
	args := append([]string{
		"--idle=yes",
		"--force-window=yes",
		"--no-terminal",
		"--keep-open=no",
		"--input-ipc-server=" + socket,
	}, e.ExtraArgs...)

	cmd := exec.Command(e.Binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	nc, err := waitForSocket(ctx, socket, exited)
	if err != nil {
		select {
		case <-exited:
		default:
			e.Log.Warn("killing mpv: socket never became ready", zap.String("socket", socket))
			_ = cmd.Process.Kill()
		}
		_ = os.Remove(socket)
		return nil, fmt.Errorf("mpv socket not ready: %w", err)
	}

	s := newSession(nc, e.Log)
	s.proc, s.exited, s.socket = cmd.Process, exited, socket
	if err := s.load(ctx, url); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func waitForSocket(ctx context.Context, socket string, exited <-chan struct{}) (net.Conn, error) {
	var d net.Dialer
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, errors.New("mpv exited before socket was ready")
		case <-time.After(socketWaitDelay):
		}
		if c, err := d.DialContext(ctx, "unix", socket); err == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("socket %s not ready after %d attempts", socket, socketWaitRetries)
}

// Session is one loaded stream. It implements playback.StreamSession.
type Session struct {
	conn   *conn
	events chan playback.EngineEvent
	log    *zap.Logger

	proc   *os.Process
	exited <-chan struct{}
	socket string

	closeOnce sync.Once
	closeErr  error
}

// dial attaches to an mpv that is already listening on socket. The
// returned session does not own the process.
func dial(ctx context.Context, socket string, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, err
	}
	return newSession(nc, log), nil
}

func newSession(nc net.Conn, log *zap.Logger) *Session {
	s := &Session{conn: newConn(nc, log), events: make(chan playback.EngineEvent, 8), log: log}
	go s.translate()
	return s
}

func (s *Session) translate() {
	defer close(s.events)
	for m := range s.conn.events {
		var ev playback.EngineEvent
		switch m.Event {
		case "file-loaded":
			ev = playback.EngineEvent{Kind: playback.EngineLoaded}
		case "shutdown":
			ev = playback.EngineEvent{Kind: playback.EngineClosed}
		case "end-file":
			switch m.Reason {
			case "eof":
				ev = playback.EngineEvent{Kind: playback.EngineEnded}
			case "quit":
				ev = playback.EngineEvent{Kind: playback.EngineClosed}
			case "error":
				msg := m.FileError
				if msg == "" {
					msg = "playback error"
				}
				ev = playback.EngineEvent{Kind: playback.EngineFailed, Err: msg}
			default:
				continue
			}
		default:
			continue
		}
		s.events <- ev
	}
}

func (s *Session) load(ctx context.Context, url string) error {
	_, err := s.conn.command(ctx, "loadfile", url, "replace")
	return err
}

func (s *Session) Events() <-chan playback.EngineEvent { return s.events }

// Position reports zero while the stream is still opening.
func (s *Session) Position(ctx context.Context) (float64, float64, error) {
	pos, err := s.float(ctx, "time-pos")
	if err != nil {
		return 0, 0, err
	}
	dur, err := s.float(ctx, "duration")
	if err != nil {
		return 0, 0, err
	}
	return pos, dur, nil
}

func (s *Session) float(ctx context.Context, prop string) (float64, error) {
	raw, err := s.conn.command(ctx, "get_property", prop)
	if errors.Is(err, ErrPropertyUnavailable) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("mpv: %s: %w", prop, err)
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (s *Session) Seek(ctx context.Context, seconds float64) error {
	_, err := s.conn.command(ctx, "seek", seconds, "absolute")
	return err
}

// Close asks mpv to quit and kills it if it has not exited shortly after.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.proc != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_, _ = s.conn.command(ctx, "quit")
			cancel()
		}
		s.closeErr = s.conn.close()
		if s.proc != nil {
			select {
			case <-s.exited:
			case <-time.After(2 * time.Second):
				s.log.Warn("killing mpv after quit timeout")
				_ = s.proc.Kill()
			}
		}
		if s.socket != "" {
			_ = os.Remove(s.socket)
		}
	})
	return s.closeErr
}
