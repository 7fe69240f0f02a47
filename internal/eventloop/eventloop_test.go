package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(func() {
		l.Stop()
		<-l.Done()
	})
	return l
}

func TestLoop_RunsClosuresInPostOrder(t *testing.T) {
	l := startLoop(t)
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 closures, ran %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran at position %d", v, i)
		}
	}
}

func TestLoop_ClosuresPostedFromLoopRunAfterCurrent(t *testing.T) {
	l := startLoop(t)
	var got []string
	_ = l.Do(context.Background(), func() {
		l.Post(func() { got = append(got, "inner") })
		got = append(got, "outer")
	})
	_ = l.Do(context.Background(), func() {})
	if len(got) != 2 || got[0] != "outer" || got[1] != "inner" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestLoop_StopDrainsThenRejects(t *testing.T) {
	l := New()
	ran := 0
	l.Post(func() { ran++ })
	l.Post(func() { ran++ })
	l.Stop()

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran != 2 {
		t.Fatalf("expected queued closures to run, ran %d", ran)
	}
	if l.Post(func() {}) {
		t.Fatalf("Post after stop should fail")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestLoop_RunReturnsOnContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}
	if l.Post(func() {}) {
		t.Fatalf("Post after Run returned should fail")
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := New() // never run
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
