package queue

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap/internal/frame"
)

func push(q *Queue, p *frame.Pool, index uint64) *frame.Frame {
	f := p.Get()
	f.Index = index
	q.Push(f)
	return f
}

func TestCapacityNeverExceeded(t *testing.T) {
	p := frame.NewPool(32)
	for capacity := 1; capacity <= 5; capacity++ {
		q := New(capacity)
		for i := 0; i < 20; i++ {
			push(q, p, uint64(i))
			assert.LessOrEqual(t, q.Len(), capacity)
		}
		q.Clear()
	}
}

func TestDropOldestKeepsNewest(t *testing.T) {
	p := frame.NewPool(8)
	q := New(2)
	var released []uint64
	for i := 0; i < 5; i++ {
		f := p.Get()
		f.Index = uint64(i)
		f.SetReleaseHook(func() { released = append(released, f.Index) })
		q.Push(f)
	}
	assert.Equal(t, 2, q.Len())
	assert.EqualValues(t, 3, q.Stats().Dropped)
	assert.Equal(t, []uint64{0, 1, 2}, released)

	f := q.Grab(0)
	require.NotNil(t, f)
	assert.EqualValues(t, 3, f.Index)
	f.Release()

	f = q.Grab(0)
	require.NotNil(t, f)
	assert.EqualValues(t, 4, f.Index)
	f.Release()

	assert.Nil(t, q.Grab(0))
}

func TestGrabZeroTimeoutDoesNotBlock(t *testing.T) {
	q := New(3)
	q.SetStarted(true)
	start := time.Now()
	assert.Nil(t, q.Grab(0))
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}

func TestGrabNotStartedReturnsImmediately(t *testing.T) {
	q := New(3)
	start := time.Now()
	assert.Nil(t, q.Grab(time.Second))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGrabTimesOut(t *testing.T) {
	q := New(3)
	q.SetStarted(true)
	start := time.Now()
	assert.Nil(t, q.Grab(30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestGrabWakesOnArrival(t *testing.T) {
	p := frame.NewPool(4)
	q := New(3)
	q.SetStarted(true)
	go func() {
		time.Sleep(20 * time.Millisecond)
		push(q, p, 7)
	}()
	f := q.Grab(5 * time.Second)
	require.NotNil(t, f)
	assert.EqualValues(t, 7, f.Index)
	f.Release()
}

func TestNotifyWaitersAtEndOfStream(t *testing.T) {
	q := New(3)
	q.SetStarted(true)
	done := make(chan *frame.Frame)
	go func() { done <- q.Grab(5 * time.Second) }()

	time.Sleep(20 * time.Millisecond)
	q.SetStarted(false)
	q.NotifyWaiters()

	select {
	case f := <-done:
		assert.Nil(t, f)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestCallbackConsumes(t *testing.T) {
	p := frame.NewPool(4)
	q := New(3)
	var seen []uint64
	q.SetCallback(func(f *frame.Frame) bool {
		seen = append(seen, f.Index)
		return true
	})
	f := push(q, p, 1)
	assert.Equal(t, []uint64{1}, seen)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, f.RefCount())
	assert.EqualValues(t, 1, q.Stats().Consumed)
}

func TestCallbackHoldKeepsFrame(t *testing.T) {
	p := frame.NewPool(4)
	q := New(3)
	var kept *frame.Frame
	q.SetCallback(func(f *frame.Frame) bool {
		f.Hold()
		kept = f
		return true
	})
	push(q, p, 1)
	require.NotNil(t, kept)
	assert.Equal(t, 2, kept.RefCount())
	kept.Release()
}

func TestCallbackDeclinesAndMayGrab(t *testing.T) {
	p := frame.NewPool(4)
	q := New(3)
	q.SetStarted(true)
	var grabbed *frame.Frame
	q.SetCallback(func(f *frame.Frame) bool {
		// Re-entering the queue from the callback must not deadlock.
		grabbed = q.Grab(0)
		return false
	})
	push(q, p, 1)
	push(q, p, 2)
	require.NotNil(t, grabbed)
	assert.EqualValues(t, 1, grabbed.Index)
	grabbed.Release()
	assert.Equal(t, 1, q.Len())

	q.SetCallback(nil)
	push(q, p, 3)
	assert.Equal(t, 2, q.Len())
	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestWaitForSpace(t *testing.T) {
	p := frame.NewPool(4)
	q := New(1)
	quit := make(chan struct{})
	assert.True(t, q.WaitForSpace(quit))
	push(q, p, 0)

	result := make(chan bool)
	go func() { result <- q.WaitForSpace(quit) }()
	select {
	case <-result:
		t.Fatal("WaitForSpace returned while full")
	case <-time.After(20 * time.Millisecond):
	}
	q.Grab(0).Release()
	assert.True(t, <-result)

	push(q, p, 1)
	go func() { result <- q.WaitForSpace(quit) }()
	close(quit)
	assert.False(t, <-result)
}

func TestSetCapacityDropsOldest(t *testing.T) {
	p := frame.NewPool(8)
	q := New(4)
	for i := 0; i < 4; i++ {
		push(q, p, uint64(i))
	}
	q.SetCapacity(1)
	assert.Equal(t, 1, q.Len())
	f := q.Grab(0)
	assert.EqualValues(t, 3, f.Index)
	f.Release()
}

// A producer that waits for space never loses a frame, whatever the pace of
// the consumer.
func TestBackpressureGapless(t *testing.T) {
	paces := map[string]func(i int) time.Duration{
		"fast": func(int) time.Duration { return 0 },
		"slow": func(int) time.Duration { return 2 * time.Millisecond },
		"bursty": func(i int) time.Duration {
			if i%10 == 0 {
				return 15 * time.Millisecond
			}
			return 0
		},
		"random": func(int) time.Duration { return time.Duration(rand.Intn(3)) * time.Millisecond },
	}
	for name, pace := range paces {
		t.Run(name, func(t *testing.T) {
			const n = 60
			p := frame.NewPool(frame.DefaultPoolCapacity)
			q := New(DefaultCapacity)
			q.SetStarted(true)
			quit := make(chan struct{})
			defer close(quit)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < n; i++ {
					if !q.WaitForSpace(quit) {
						return
					}
					push(q, p, uint64(i))
				}
			}()

			for i := 0; i < n; i++ {
				time.Sleep(pace(i))
				f := q.Grab(5 * time.Second)
				require.NotNil(t, f, "frame %d", i)
				assert.EqualValues(t, i, f.Index)
				f.Release()
			}
			wg.Wait()
			assert.Zero(t, q.Stats().Dropped)
			assert.Zero(t, p.Evictions())
		})
	}
}
