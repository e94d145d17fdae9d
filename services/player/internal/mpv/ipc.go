package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// ErrPropertyUnavailable is returned while nothing is loaded yet.
var ErrPropertyUnavailable = errors.New("mpv: property unavailable")

var errClosed = errors.New("mpv: connection closed")

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// message is any line mpv writes: a reply carries request_id, an event
// carries event.
type message struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
}

// conn multiplexes replies and events over one IPC socket.
type conn struct {
	c   net.Conn
	log *zap.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message
	closed  bool

	events chan message
	done   chan struct{}
}

func newConn(c net.Conn, log *zap.Logger) *conn {
	cn := &conn{
		c:       c,
		log:     log,
		pending: make(map[int64]chan message),
		events:  make(chan message, 16),
		done:    make(chan struct{}),
	}
	go cn.read()
	return cn
}

func (cn *conn) read() {
	defer func() {
		cn.mu.Lock()
		cn.closed = true
		for id, ch := range cn.pending {
			close(ch)
			delete(cn.pending, id)
		}
		cn.mu.Unlock()
		close(cn.events)
		close(cn.done)
	}()
	sc := bufio.NewScanner(cn.c)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		var m message
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			cn.log.Debug("mpv: undecodable line", zap.ByteString("line", sc.Bytes()), zap.Error(err))
			continue
		}
		if m.Event != "" {
			select {
			case cn.events <- m:
			default:
				cn.log.Debug("mpv: event dropped", zap.String("event", m.Event))
			}
			continue
		}
		if m.RequestID == nil {
			continue
		}
		cn.mu.Lock()
		ch, ok := cn.pending[*m.RequestID]
		delete(cn.pending, *m.RequestID)
		cn.mu.Unlock()
		if ok {
			ch <- m
		}
	}
}

// command sends args and waits for the matching reply.
func (cn *conn) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	ch := make(chan message, 1)
	cn.mu.Lock()
	if cn.closed {
		cn.mu.Unlock()
		return nil, errClosed
	}
	cn.nextID++
	id := cn.nextID
	cn.pending[id] = ch
	cn.mu.Unlock()

	b, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		cn.forget(id)
		return nil, err
	}
	cn.wmu.Lock()
	_, err = cn.c.Write(append(b, '\n'))
	cn.wmu.Unlock()
	if err != nil {
		cn.forget(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		cn.forget(id)
		return nil, ctx.Err()
	case m, ok := <-ch:
		if !ok {
			return nil, errClosed
		}
		switch m.Error {
		case "", "success":
			return m.Data, nil
		case "property unavailable":
			return nil, ErrPropertyUnavailable
		default:
			return nil, fmt.Errorf("mpv: %s", m.Error)
		}
	}
}

func (cn *conn) forget(id int64) {
	cn.mu.Lock()
	delete(cn.pending, id)
	cn.mu.Unlock()
}

func (cn *conn) close() error {
	err := cn.c.Close()
	<-cn.done
	return err
}
