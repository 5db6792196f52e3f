package labels

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopClosed is returned when work is handed to a loop that has stopped.
var ErrLoopClosed = errors.New("labels: loop closed")

// DefaultFrameInterval approximates one rendering frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Frames delivers a callback at the next rendering frame.
type Frames interface {
	RequestFrame(fn func())
}

// Timers runs a callback after a delay. The returned func cancels it.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Loop is a single-threaded cooperative event loop. Every callback posted to it runs on
// the goroutine that called Run, one at a time, in post order.
type Loop struct {
	frameInterval time.Duration

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
}

// NewLoop creates a loop whose frames fire every frameInterval.
func NewLoop(frameInterval time.Duration) *Loop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Loop{
		frameInterval: frameInterval,
		wake:          make(chan struct{}, 1),
	}
}

// Post queues fn. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// RequestFrame posts fn to the loop after one frame interval.
func (l *Loop) RequestFrame(fn func()) {
	l.AfterFunc(l.frameInterval, fn)
}

// AfterFunc posts fn to the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return t.Stop
}
