package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"tanktally_backend/platform/logger"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(logger.Discard(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { order = append(order, i) })
	}
	if err := l.Flush(testContext(t)); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestGoContinuationRunsOnLoopAndFlushWaits(t *testing.T) {
	l, _ := startLoop(t)

	release := make(chan struct{})
	applied := false
	l.Go(func(ctx context.Context) func() {
		<-release
		return func() { applied = true }
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	if err := l.Flush(testContext(t)); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	var seen bool
	if err := l.Call(testContext(t), func() { seen = applied }); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !seen {
		t.Fatal("expected continuation to have run before Flush returned")
	}
}

func TestPanicInTaskDoesNotStopLoop(t *testing.T) {
	l, _ := startLoop(t)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Call(testContext(t), func() { ran = true }); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !ran {
		t.Fatal("loop stopped after a panicking task")
	}
}

func TestStoppedLoopRejectsWork(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Done()

	if l.Post(func() {}) {
		t.Fatal("Post should report false after the loop stopped")
	}
	if err := l.Call(testContext(t), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestWorkContextCancelledOnStop(t *testing.T) {
	l, cancel := startLoop(t)

	observed := make(chan error, 1)
	l.Go(func(ctx context.Context) func() {
		<-ctx.Done()
		observed <- ctx.Err()
		return nil
	})

	cancel()
	select {
	case err := <-observed:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("work context was not cancelled")
	}
}
