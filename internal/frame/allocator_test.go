package frame

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAllocatorAlignment(t *testing.T) {
	for _, size := range []int{1, 63, 64, 65, 1000, 1920 * 1080 * 3} {
		a := new(DefaultAllocator)
		a.Resize(size)
		assert.Len(t, a.Data(), size)
		assert.Zero(t, a.Capacity()%Alignment)
		assert.Zero(t, uintptr(unsafe.Pointer(&a.Data()[0]))%Alignment, "size %d", size)
	}
}

func TestDefaultAllocatorResizeReusesWithinHalf(t *testing.T) {
	a := new(DefaultAllocator)
	a.Resize(1000)
	first := &a.data[0]
	capacity := a.Capacity()

	a.Resize(capacity / 2)
	assert.Same(t, first, &a.data[0])
	a.Resize(capacity)
	assert.Same(t, first, &a.data[0])

	// Shrinking below half reallocates.
	a.Resize(capacity/2 - 1)
	assert.NotSame(t, first, &a.data[0])
	assert.Equal(t, capacity/2-1, a.Size())

	// Growing past capacity reallocates.
	b := new(DefaultAllocator)
	b.Resize(128)
	p := &b.data[0]
	b.Resize(129)
	assert.NotSame(t, p, &b.data[0])
	assert.Equal(t, 192, b.Capacity())
}

func TestDefaultAllocatorZero(t *testing.T) {
	a := new(DefaultAllocator)
	a.Resize(0)
	assert.Empty(t, a.Data())
	assert.Zero(t, a.Size())
}
