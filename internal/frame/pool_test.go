package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReusesReleasedFrames(t *testing.T) {
	p := NewPool(4)
	for i := 0; i < 100; i++ {
		f := p.Get()
		require.Equal(t, 2, f.RefCount())
		f.Release()
		assert.Equal(t, 1, f.RefCount())
	}
	assert.Equal(t, 1, p.Len())
	assert.Zero(t, p.Evictions())
}

func TestPoolGrowsToCapacityThenEvicts(t *testing.T) {
	p := NewPool(3)
	held := []*Frame{p.Get(), p.Get(), p.Get()}
	assert.Equal(t, 3, p.Len())

	extra := p.Get()
	assert.Equal(t, 3, p.Len())
	assert.EqualValues(t, 1, p.Evictions())

	// The evicted frame is still usable by its holder.
	held[0].Width = 7
	held[0].Release()
	assert.Equal(t, 1, held[0].RefCount())

	// Nothing free yet except the evicted frame, which the pool forgot.
	for _, f := range held[1:] {
		f.Release()
	}
	extra.Release()
	again := p.Get()
	assert.NotSame(t, held[0], again)
	again.Release()
}

func TestPoolResetsReusedFrames(t *testing.T) {
	p := NewPool(1)
	f := p.Get()
	f.Width, f.Height, f.Index = 4, 2, 9
	f.NativeHandle = "native"
	f.Release()

	g := p.Get()
	require.Same(t, f, g)
	assert.Zero(t, g.Width)
	assert.Zero(t, g.Index)
	assert.Nil(t, g.NativeHandle)
	g.Release()
}

func TestReleaseHookRunsOnce(t *testing.T) {
	p := NewPool(2)
	f := p.Get()
	calls := 0
	f.SetReleaseHook(func() { calls++ })

	f.Hold()
	f.Release()
	assert.Equal(t, 0, calls)
	f.Release()
	assert.Equal(t, 1, calls)

	g := p.Get()
	require.Same(t, f, g)
	g.Release()
	assert.Equal(t, 1, calls)
}

func TestReleaseWithoutReferencePanics(t *testing.T) {
	f := NewPool(1).Get()
	f.Release()
	assert.Panics(t, func() { f.Release() })
}

func TestSetAllocatorFactoryClearsPool(t *testing.T) {
	p := NewPool(4)
	p.Get().Release()
	require.Equal(t, 1, p.Len())

	made := 0
	p.SetAllocatorFactory(func() Allocator {
		made++
		return new(DefaultAllocator)
	})
	assert.Equal(t, 0, p.Len())

	f := p.Get()
	f.RawBuffer(16)
	assert.Equal(t, 1, made)
	f.Release()
}

func TestSetCapacityTrims(t *testing.T) {
	p := NewPool(5)
	var fs []*Frame
	for i := 0; i < 5; i++ {
		fs = append(fs, p.Get())
	}
	p.SetCapacity(2)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 2, p.Capacity())
	for _, f := range fs {
		f.Release()
	}
}
