// Package eventloop runs a planner's state transitions on a single goroutine.
//
// Everything that touches planner state is submitted as a func() and executed
// in submission order by Run. Network round-trips run on their own goroutines
// through Go; only their continuations come back onto the loop, so state is
// never touched concurrently and no locks are needed around it.
package eventloop

import (
	"context"
	"sync/atomic"

	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/logger"
)

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = apperr.Unavailable("event loop stopped")

// Executor is what loop-driven components need: a way to queue state
// transitions and a way to run blocking work off the loop.
type Executor interface {
	// Post queues fn to run on the loop. It returns false if the loop has exited.
	Post(fn func()) bool
	// Go runs work on a new goroutine and queues the continuation it returns.
	Go(work func(ctx context.Context) func())
}

// Loop is a single-goroutine executor.
type Loop struct {
	ops     chan func()
	stopped chan struct{}
	workCtx context.Context
	cancel  context.CancelFunc
	pending atomic.Int64
	idle    chan struct{}
	log     *logger.Logger
}

// New creates a loop with a queue of the given capacity. Call Run to start it.
func New(log *logger.Logger, buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	workCtx, cancel := context.WithCancel(context.Background())
	return &Loop{
		ops:     make(chan func(), buffer),
		stopped: make(chan struct{}),
		workCtx: workCtx,
		cancel:  cancel,
		idle:    make(chan struct{}, 1),
		log:     log,
	}
}

// Run executes queued functions until ctx is done. In-flight work started
// through Go sees its context cancelled when Run returns.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)
	defer l.cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-l.ops:
			l.exec(op)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.stopped }

// Post queues fn. Must not be called from the loop goroutine when the queue
// may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case <-l.stopped:
		return false
	case l.ops <- fn:
		return true
	}
}

// Go runs work off the loop. The continuation it returns, if any, runs on
// the loop. Continuations of a stopped loop are dropped.
func (l *Loop) Go(work func(ctx context.Context) func()) {
	l.pending.Add(1)
	go func() {
		cont := work(l.workCtx)
		ok := l.Post(func() {
			defer l.settle()
			if cont != nil {
				cont()
			}
		})
		if !ok {
			l.settle()
		}
	}()
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	queued := make(chan bool, 1)
	go func() { queued <- l.Post(func() { defer close(done); fn() }) }()

	select {
	case ok := <-queued:
		if !ok {
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Flush waits until every queued function and every Go continuation has run,
// including work they schedule in turn. Must not be called from the loop.
func (l *Loop) Flush(ctx context.Context) error {
	for {
		if err := l.Call(ctx, func() {}); err != nil {
			return err
		}
		if l.pending.Load() == 0 {
			return nil
		}
		select {
		case <-l.idle:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopped:
			return ErrStopped
		}
	}
}

func (l *Loop) settle() {
	if l.pending.Add(-1) == 0 {
		select {
		case l.idle <- struct{}{}:
		default:
		}
	}
}

func (l *Loop) exec(op func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event loop task panicked", "panic", r)
		}
	}()
	op()
}

var _ Executor = (*Loop)(nil)
