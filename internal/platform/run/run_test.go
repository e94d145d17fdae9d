package run

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_ExitCodes(t *testing.T) {
	r := New(zap.NewNop())
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"server closed", http.ErrServerClosed, 0},
		{"failure", errors.New("listen tcp :80: bind: permission denied"), 1},
	}
	for _, tc := range cases {
		got := r.run(context.Background(), func(context.Context) error { return tc.err })
		if got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := New(zap.NewNop()).run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return errors.New("late")
	})
	if got != 0 {
		t.Fatalf("expected 0 on signal, got %d", got)
	}
}

func TestGraceful_WaitsForContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{})
	go New(zap.NewNop()).Graceful(ctx, "http", func(c context.Context) error {
		if _, ok := c.Deadline(); !ok {
			t.Error("shutdown context should carry a deadline")
		}
		close(called)
		return nil
	})

	select {
	case <-called:
		t.Fatal("shutdown ran before cancellation")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown not called after cancellation")
	}
}
