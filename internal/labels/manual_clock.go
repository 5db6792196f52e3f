package labels

import (
	"sort"
	"time"
)

// ManualClock is a Frames and Timers implementation driven by hand. It lets tests and
// offline tools step the engine deterministically on the calling goroutine.
type ManualClock struct {
	now    time.Duration
	frames []func()
	timers []*manualTimer
	seq    int
}

type manualTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

// NewManualClock creates a clock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// RequestFrame queues fn for the next RunFrame.
func (c *ManualClock) RequestFrame(fn func()) {
	c.frames = append(c.frames, fn)
}

// PendingFrames returns the number of queued frame callbacks.
func (c *ManualClock) PendingFrames() int {
	return len(c.frames)
}

// RunFrame fires the callbacks queued before the call. Callbacks requested while running
// wait for the next frame. It returns how many callbacks ran.
func (c *ManualClock) RunFrame() int {
	frames := c.frames
	c.frames = nil
	for _, fn := range frames {
		fn()
	}
	return len(frames)
}

// Settle runs frames until none are pending or max frames have run.
// It returns the number of frames that fired at least one callback.
func (c *ManualClock) Settle(max int) int {
	n := 0
	for n < max && len(c.frames) > 0 {
		c.RunFrame()
		n++
	}
	return n
}

// AfterFunc schedules fn at now+d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.seq++
	t := &manualTimer{at: c.now + d, seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return func() bool {
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// PendingTimers returns the number of timers that have not fired or been stopped.
func (c *ManualClock) PendingTimers() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, firing due timers in deadline order.
func (c *ManualClock) Advance(d time.Duration) {
	target := c.now + d
	for {
		due := c.nextDue(target)
		if due == nil {
			break
		}
		c.now = due.at
		due.stopped = true
		due.fn()
	}
	c.now = target
	c.compact()
}

func (c *ManualClock) nextDue(limit time.Duration) *manualTimer {
	var live []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && t.at <= limit {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].at == live[j].at {
			return live[i].seq < live[j].seq
		}
		return live[i].at < live[j].at
	})
	return live[0]
}

func (c *ManualClock) compact() {
	kept := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	c.timers = kept
}
