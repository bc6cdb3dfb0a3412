package frame

import (
	"sync"
	"sync/atomic"
)

// DefaultPoolCapacity bounds the number of frames a Pool keeps.
const DefaultPoolCapacity = 15

// A Pool recycles frames. Get never blocks: it reuses a frame nobody else
// holds, grows up to the capacity, and past that evicts its oldest entry.
type Pool struct {
	mu       sync.Mutex
	frames   []*Frame
	capacity int
	factory  AllocatorFactory

	evictions uint64
}

func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{capacity: capacity}
}

// Get returns a frame with one reference owned by the caller.
func (p *Pool) Get() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if atomic.CompareAndSwapInt32(&f.refs, 1, 2) {
			f.reset()
			return f
		}
	}

	if len(p.frames) >= p.capacity {
		// Everything is still in use. The evicted frame stays valid for its
		// holders and is reclaimed by the garbage collector after its last
		// Release.
		log.Warn("frame pool full (%d frames in use), evicting oldest entry", len(p.frames))
		copy(p.frames, p.frames[1:])
		p.frames[len(p.frames)-1] = nil
		p.frames = p.frames[:len(p.frames)-1]
		atomic.AddUint64(&p.evictions, 1)
	}

	f := newFrame(p.factory)
	f.refs = 2
	p.frames = append(p.frames, f)
	return f
}

// SetAllocatorFactory replaces the allocator factory and empties the pool.
// Frames already handed out keep their allocators until released.
func (p *Pool) SetAllocatorFactory(factory AllocatorFactory) {
	p.mu.Lock()
	p.factory = factory
	p.frames = nil
	p.mu.Unlock()
}

// SetCapacity changes the pool bound. Surplus frames are dropped from the
// pool, oldest first.
func (p *Pool) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	p.mu.Lock()
	p.capacity = capacity
	if n := len(p.frames) - capacity; n > 0 {
		p.frames = append([]*Frame(nil), p.frames[n:]...)
	}
	p.mu.Unlock()
}

// Capacity returns the pool bound.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Len returns the number of frames the pool currently tracks.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// Evictions counts frames dropped because the pool was full.
func (p *Pool) Evictions() uint64 {
	return atomic.LoadUint64(&p.evictions)
}

// Clear empties the pool, leaving outstanding frames to their holders.
func (p *Pool) Clear() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}
