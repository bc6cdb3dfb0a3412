// Package frame holds the captured image type shared between capture
// backends, the converter and consumers, together with the pool that
// recycles frames and their buffers.
package frame

import (
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("frame")

/*
A Frame is one captured image plus metadata. Frames are reference counted:
the pool that created a frame always holds one implicit reference, and a frame
may be reused exactly when that is the only reference left.

Whoever receives a frame from Grab (or retains one inside a callback with
Hold) must Release it once done:

	f := provider.Grab(time.Second)
	if f != nil {
		defer f.Release()
		process(f.Data[0])
	}

Plane data is valid only while the caller holds a reference.
*/
type Frame struct {
	Width       int
	Height      int
	Format      color.PixelFormat
	Orientation color.Orientation

	// Up to three planes. Unused planes are nil with zero stride.
	Data   [3][]byte
	Stride [3]int

	// Total bytes across all planes.
	SizeInBytes int

	// Capture time relative to the start of the stream.
	Timestamp time.Duration

	// Monotonically increasing per stream.
	Index uint64

	// Opaque backend-specific value, e.g. a native sample kept alive for the
	// lifetime of the frame.
	NativeHandle interface{}

	refs int32

	// Runs once when the last external reference is released.
	hook func()

	factory AllocatorFactory

	// Owned buffers. Raw capture data goes in one; the converter always writes
	// into the other, so it never reads and writes the same memory.
	buffers [2]Allocator
	owner   int
}

func newFrame(factory AllocatorFactory) *Frame {
	return &Frame{refs: 1, factory: factory, owner: -1}
}

// Hold adds a reference.
func (f *Frame) Hold() {
	atomic.AddInt32(&f.refs, 1)
}

// Release drops a reference. Releasing the last external reference runs the
// release hook, after which the pool may hand the frame out again.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	for {
		n := atomic.LoadInt32(&f.refs)
		switch {
		case n <= 1:
			panic("frame: Release without matching reference")
		case n == 2:
			// Only the pool can observe the frame after this, and the pool
			// only claims frames at count 1. Run the hook before publishing.
			if hook := f.hook; hook != nil {
				f.hook = nil
				hook()
			}
			atomic.AddInt32(&f.refs, -1)
			return
		default:
			if atomic.CompareAndSwapInt32(&f.refs, n, n-1) {
				return
			}
		}
	}
}

// RefCount returns the current number of references, including the pool's.
func (f *Frame) RefCount() int {
	return int(atomic.LoadInt32(&f.refs))
}

// SetReleaseHook attaches a function run when the frame returns to the pool,
// typically to release a native buffer the planes point into.
func (f *Frame) SetReleaseHook(hook func()) {
	f.hook = hook
}

// Plane returns plane i as a converter view.
func (f *Frame) Plane(i int) color.Plane {
	return color.Plane{Data: f.Data[i], Stride: f.Stride[i]}
}

// RawBuffer returns an owned buffer of at least size bytes for raw capture
// data. The previous contents are undefined.
func (f *Frame) RawBuffer(size int) []byte {
	f.owner = 0
	return f.buffer(0, size)
}

// SetPlanes points the frame at tightly packed planes inside buf, laid out
// for the frame's Format, Width and Height.
func (f *Frame) SetPlanes(buf []byte) {
	strides, sizes := f.Format.Layout(f.Width, f.Height)
	off := 0
	for i := 0; i < 3; i++ {
		if sizes[i] == 0 {
			f.Data[i], f.Stride[i] = nil, 0
			continue
		}
		f.Data[i] = buf[off : off+sizes[i]]
		f.Stride[i] = strides[i]
		off += sizes[i]
	}
	f.SizeInBytes = off
}

// Allocator returns owned buffer i, creating it from the frame's factory.
func (f *Frame) Allocator(i int) Allocator {
	if f.buffers[i] == nil {
		if f.factory != nil {
			f.buffers[i] = f.factory()
		}
		if f.buffers[i] == nil {
			f.buffers[i] = new(DefaultAllocator)
		}
	}
	return f.buffers[i]
}

func (f *Frame) buffer(i, size int) []byte {
	a := f.Allocator(i)
	a.Resize(size)
	return a.Data()[:size]
}

// Prepare the frame for reuse by a backend.
func (f *Frame) reset() {
	f.Width, f.Height = 0, 0
	f.Format = color.Unknown
	f.Orientation = color.TopToBottom
	f.Data = [3][]byte{}
	f.Stride = [3]int{}
	f.SizeInBytes = 0
	f.Timestamp = 0
	f.Index = 0
	f.NativeHandle = nil
	f.hook = nil
	f.owner = -1
}
