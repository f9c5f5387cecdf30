package background

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestRunner() (*Runner, *syncBuffer) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewRunner(context.Background(), logger), buf
}

func TestRunner_ErrorsAreLoggedNotReturned(t *testing.T) {
	r, logs := newTestRunner()
	var ran atomic.Int32

	r.Go("ok", func(context.Context) error { ran.Add(1); return nil })
	r.Go("sync", func(context.Context) error { ran.Add(1); return errors.New("remote unreachable") })
	r.Go("tag", func(context.Context) error { ran.Add(1); panic("boom") })

	if !r.Wait(context.Background()) {
		t.Fatal("Wait reported unfinished tasks")
	}
	if ran.Load() != 3 {
		t.Errorf("ran = %d", ran.Load())
	}
	out := logs.String()
	if !strings.Contains(out, "remote unreachable") || !strings.Contains(out, "panic: boom") {
		t.Errorf("failures not logged: %s", out)
	}
}

func TestRunner_WaitIsBounded(t *testing.T) {
	r, _ := newTestRunner()
	cancelled := make(chan struct{})
	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if r.Wait(ctx) {
		t.Error("Wait should report abandoned tasks")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait was not bounded by the grace period")
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("abandoned task was not cancelled")
	}
}

func TestRunner_DistinctIDs(t *testing.T) {
	r, _ := newTestRunner()
	a := r.Go("a", func(context.Context) error { return nil })
	b := r.Go("b", func(context.Context) error { return nil })
	r.Wait(context.Background())
	if a == b || a == "" {
		t.Errorf("ids %q %q", a, b)
	}
}
