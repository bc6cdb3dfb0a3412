package frame

import "unsafe"

// An Allocator owns the backing memory of one frame buffer.
type Allocator interface {
	// Resize makes Data at least size bytes long. Contents are not preserved.
	Resize(size int)

	// Data returns the buffer, size bytes long.
	Data() []byte

	// Size returns the size of the last Resize.
	Size() int
}

// AllocatorFactory creates a fresh Allocator for each new frame buffer.
type AllocatorFactory func() Allocator

// Alignment of DefaultAllocator buffers, wide enough for vector loads.
const Alignment = 64

// DefaultAllocator is a grow-mostly buffer aligned to Alignment. A resize that
// fits within [capacity/2, capacity] reuses the current memory.
type DefaultAllocator struct {
	mem  []byte
	data []byte
	size int
}

func (a *DefaultAllocator) Resize(size int) {
	if size < 0 {
		size = 0
	}
	capacity := len(a.data)
	if capacity > 0 && size <= capacity && size >= capacity/2 {
		a.size = size
		return
	}

	capacity = (size + Alignment - 1) &^ (Alignment - 1)
	a.mem, a.data = nil, nil
	if capacity > 0 {
		a.mem = make([]byte, capacity+Alignment)
		off := 0
		if rem := int(uintptr(unsafe.Pointer(&a.mem[0])) % Alignment); rem != 0 {
			off = Alignment - rem
		}
		a.data = a.mem[off : off+capacity : off+capacity]
	}
	a.size = size
}

func (a *DefaultAllocator) Data() []byte {
	return a.data[:a.size]
}

func (a *DefaultAllocator) Size() int {
	return a.size
}

// Capacity returns the allocated length, a multiple of Alignment.
func (a *DefaultAllocator) Capacity() int {
	return len(a.data)
}
