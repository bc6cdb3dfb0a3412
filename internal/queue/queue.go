// Package queue delivers captured frames from one producer to pull consumers
// and an optional push callback.
package queue

import (
	"sync"
	"time"

	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("queue")

// DefaultCapacity is the number of frames kept for Grab.
const DefaultCapacity = 3

// A Callback receives every pushed frame on the producer goroutine. Returning
// true consumes the frame; it is then not queued for Grab, and is released
// once the callback returns unless the callback took its own reference with
// Hold.
type Callback func(f *frame.Frame) bool

// Stats counts queue traffic since creation.
type Stats struct {
	Pushed   uint64
	Consumed uint64
	Dropped  uint64
	Grabbed  uint64
}

// Queue is a bounded FIFO of frames. When full, Push discards the oldest
// entry; producers that must not lose frames call WaitForSpace first.
type Queue struct {
	mu       sync.Mutex
	frames   []*frame.Frame
	capacity int
	started  bool
	callback Callback
	stats    Stats

	// Closed and replaced to wake waiters: arrived on new frames and end of
	// stream, drained whenever an entry leaves the queue.
	arrived chan struct{}
	drained chan struct{}
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		arrived:  make(chan struct{}),
		drained:  make(chan struct{}),
	}
}

// Push hands f to the callback or the queue. The queue takes over the
// caller's reference.
func (q *Queue) Push(f *frame.Frame) {
	q.mu.Lock()
	q.stats.Pushed++
	cb := q.callback
	q.mu.Unlock()

	if cb != nil && cb(f) {
		q.mu.Lock()
		q.stats.Consumed++
		q.mu.Unlock()
		f.Release()
		return
	}

	q.mu.Lock()
	q.frames = append(q.frames, f)
	dropped := q.trim()
	wake(&q.arrived)
	q.mu.Unlock()

	release(dropped)
}

// Grab pops the oldest frame. With a zero timeout it never blocks. Otherwise
// it waits up to timeout for a frame, except that a stopped queue returns nil
// at once. The caller must Release the returned frame.
func (q *Queue) Grab(timeout time.Duration) *frame.Frame {
	q.mu.Lock()
	if f := q.pop(); f != nil {
		q.mu.Unlock()
		return f
	}
	if timeout <= 0 {
		q.mu.Unlock()
		return nil
	}
	if !q.started {
		q.mu.Unlock()
		log.Warn("grab with timeout on a stopped session, returning immediately")
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		arrived := q.arrived
		q.mu.Unlock()

		select {
		case <-arrived:
		case <-timer.C:
			return nil
		}

		q.mu.Lock()
		if f := q.pop(); f != nil {
			q.mu.Unlock()
			return f
		}
		if !q.started {
			// Woken for end of stream.
			q.mu.Unlock()
			return nil
		}
	}
}

// WaitForSpace blocks until the queue holds fewer frames than its capacity.
// It returns false if quit is closed first.
func (q *Queue) WaitForSpace(quit <-chan struct{}) bool {
	for {
		q.mu.Lock()
		if len(q.frames) < q.capacity {
			q.mu.Unlock()
			return true
		}
		drained := q.drained
		q.mu.Unlock()

		select {
		case <-drained:
		case <-quit:
			return false
		}
	}
}

// NotifyWaiters wakes blocked Grab calls, e.g. at end of stream. A woken
// waiter returns nil if nothing is queued and the queue is stopped.
func (q *Queue) NotifyWaiters() {
	q.mu.Lock()
	wake(&q.arrived)
	q.mu.Unlock()
}

// SetCallback registers the push callback. nil removes it.
func (q *Queue) SetCallback(cb Callback) {
	q.mu.Lock()
	q.callback = cb
	q.mu.Unlock()
}

// SetStarted records whether the producing session is running. It does not
// wake blocked Grab calls.
func (q *Queue) SetStarted(started bool) {
	q.mu.Lock()
	q.started = started
	q.mu.Unlock()
}

func (q *Queue) Started() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

// SetCapacity changes the bound, dropping the oldest entries if needed.
func (q *Queue) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	q.mu.Lock()
	q.capacity = capacity
	dropped := q.trim()
	wake(&q.drained)
	q.mu.Unlock()

	release(dropped)
}

func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Clear releases every queued frame.
func (q *Queue) Clear() {
	q.mu.Lock()
	frames := q.frames
	q.frames = nil
	wake(&q.drained)
	q.mu.Unlock()

	for _, f := range frames {
		f.Release()
	}
}

// Called with q.mu held.
func (q *Queue) pop() *frame.Frame {
	if len(q.frames) == 0 {
		return nil
	}
	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	q.stats.Grabbed++
	wake(&q.drained)
	return f
}

// Called with q.mu held. Returns the entries beyond capacity, oldest first.
func (q *Queue) trim() []*frame.Frame {
	n := len(q.frames) - q.capacity
	if n <= 0 {
		return nil
	}
	dropped := make([]*frame.Frame, n)
	copy(dropped, q.frames[:n])
	for i := 0; i < n; i++ {
		q.frames[i] = nil
	}
	q.frames = q.frames[n:]
	q.stats.Dropped += uint64(n)
	return dropped
}

// Frames are released outside the queue lock; a release hook may call back
// into the backend.
func release(frames []*frame.Frame) {
	for _, f := range frames {
		log.Verbose("dropping frame %d", f.Index)
		f.Release()
	}
}

func wake(ch *chan struct{}) {
	close(*ch)
	*ch = make(chan struct{})
}
