package alohacap

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap/internal/y4m"
)

func newTestProvider(t *testing.T, output PixelFormat) *Provider {
	config := DefaultConfig()
	config.OutputFormat = output
	config.Width, config.Height, config.FrameRate = 64, 8, 200
	p := NewProvider(config)
	t.Cleanup(p.Close)
	return p
}

func writeClip(t *testing.T, frames int) string {
	path := filepath.Join(t.TempDir(), "clip.y4m")
	w, err := y4m.Create(path, y4m.Header{Width: 8, Height: 4, RateNum: 10, RateDen: 1})
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		y := make([]byte, 32)
		for j := range y {
			y[j] = byte(16 + i)
		}
		u, v := make([]byte, 8), make([]byte, 8)
		for j := range u {
			u[j], v[j] = 128, 128
		}
		require.NoError(t, w.WriteFrame([3][]byte{y, u, v}, [3]int{8, 4, 4}))
	}
	require.NoError(t, w.Close())
	return path
}

func TestProviderStateMachine(t *testing.T) {
	p := newTestProvider(t, BGR24)
	assert.Equal(t, ErrNotOpened, p.Start())
	assert.False(t, p.IsOpened())
	assert.Nil(t, p.Grab(10*time.Millisecond))

	require.NoError(t, p.Open("test:bars"))
	assert.True(t, p.IsOpened())
	assert.Equal(t, ErrAlreadyOpened, p.Open("test:bars"))
	assert.False(t, p.IsStarted())

	require.NoError(t, p.Start())
	assert.True(t, p.IsStarted())
	require.NoError(t, p.Start())

	p.Stop()
	assert.False(t, p.IsStarted())
	assert.True(t, p.IsOpened())

	p.Close()
	assert.False(t, p.IsOpened())
	_, ok := p.DeviceInfo()
	assert.False(t, ok)
}

func TestProviderOpenIndex(t *testing.T) {
	p := newTestProvider(t, BGR24)
	assert.Error(t, p.OpenIndex(len(p.FindDeviceNames())))
	assert.False(t, p.IsOpened())
}

func TestGrabConvertsToOutput(t *testing.T) {
	p := newTestProvider(t, BGR24)
	require.NoError(t, p.Open("test:bars"))
	require.NoError(t, p.Start())

	f := p.Grab(time.Second)
	require.NotNil(t, f)
	defer f.Release()

	assert.Equal(t, BGR24, f.Format)
	assert.Equal(t, 64, f.Width)
	assert.Equal(t, 192, f.Stride[0])
	for _, c := range f.Data[0][:3] {
		assert.InDelta(t, 235, int(c), 3)
	}

	info, ok := p.DeviceInfo()
	require.True(t, ok)
	assert.Equal(t, "test:bars", info.Name)
	assert.False(t, p.IsFileMode())
}

func TestOrientationAndDisableConvert(t *testing.T) {
	p := newTestProvider(t, RGBA32)
	require.True(t, p.Set(PropertyFrameOrientation, float64(BottomToTop)))
	assert.False(t, p.Set(PropertyFrameOrientation, 7))
	require.NoError(t, p.Open("test:gradient"))
	require.NoError(t, p.Start())

	f := p.Grab(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, RGBA32, f.Format)
	assert.Equal(t, BottomToTop, f.Orientation)
	f.Release()

	require.True(t, p.Set(PropertyDisablePixelFormatConvert, 1))
	assert.Equal(t, 1.0, p.Get(PropertyDisablePixelFormatConvert))
	// Skip frames converted before the change.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f = p.Grab(time.Second)
		require.NotNil(t, f)
		format := f.Format
		f.Release()
		if format == YUYV {
			return
		}
	}
	t.Fatal("conversion still applied")
}

func TestUnsupportedConversionReportedOnce(t *testing.T) {
	var mu sync.Mutex
	var codes []ErrorCode
	SetErrorCallback(func(code ErrorCode, description string) {
		mu.Lock()
		codes = append(codes, code)
		mu.Unlock()
	})
	defer SetErrorCallback(nil)

	// YUYV cannot be converted to NV12.
	p := newTestProvider(t, NV12)
	require.NoError(t, p.Open("test:bars"))
	require.NoError(t, p.Start())
	for i := 0; i < 3; i++ {
		f := p.Grab(time.Second)
		require.NotNil(t, f)
		assert.Equal(t, YUYV, f.Format)
		f.Release()
	}
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ErrorCode{ErrorUnsupportedConversion}, codes)
	assert.True(t, p.Stats().ConversionFailures >= 3)
}

func TestUnknownProperty(t *testing.T) {
	p := newTestProvider(t, BGR24)
	before := map[PropertyName]float64{}
	for name := range propertyNames {
		before[name] = p.Get(name)
	}

	assert.False(t, p.Set(PropertyName(0x12345), 1))
	assert.True(t, math.IsNaN(p.Get(PropertyName(0x12345))))

	for name, v := range before {
		after := p.Get(name)
		if math.IsNaN(v) {
			assert.True(t, math.IsNaN(after), "%v", name)
		} else {
			assert.Equal(t, v, after, "%v", name)
		}
	}
}

func TestPropertyValidation(t *testing.T) {
	p := newTestProvider(t, BGR24)
	assert.False(t, p.Set(PropertyWidth, 0))
	assert.False(t, p.Set(PropertyFrameRate, -30))
	assert.False(t, p.Set(PropertyWidth, math.NaN()))
	assert.False(t, p.Set(PropertyPixelFormatOutput, 12345))
	assert.True(t, p.Set(PropertyPixelFormatOutput, float64(RGBA32)))
	assert.Equal(t, float64(RGBA32), p.Get(PropertyPixelFormatOutput))

	// File keys without a file.
	assert.True(t, math.IsNaN(p.Get(PropertyDuration)))
	assert.False(t, p.Set(PropertyCurrentTime, 1))
	assert.False(t, p.Set(PropertyPlaybackSpeed, 1))
}

func TestRenegotiateOnStart(t *testing.T) {
	p := newTestProvider(t, BGR24)
	require.NoError(t, p.Open("test:bars"))
	require.True(t, p.Set(PropertyWidth, 32))
	assert.Equal(t, 32.0, p.Get(PropertyWidth))
	require.NoError(t, p.Start())

	f := p.Grab(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, 32, f.Width)
	f.Release()
}

func TestFileMode(t *testing.T) {
	p := newTestProvider(t, I420)
	p.SetMaxAvailableFrameSize(2)
	require.NoError(t, p.Open(writeClip(t, 10)))
	require.True(t, p.IsFileMode())

	assert.Equal(t, 10.0, p.Get(PropertyFrameCount))
	assert.InDelta(t, 1.0, p.Get(PropertyDuration), 1e-9)
	assert.False(t, p.Set(PropertyDuration, 5))
	assert.False(t, p.Set(PropertyFrameCount, 5))
	assert.False(t, p.Set(PropertyPlaybackSpeed, -1))
	assert.Equal(t, 0.0, p.Get(PropertyPlaybackSpeed))

	require.True(t, p.Set(PropertyCurrentTime, 1000))
	assert.Equal(t, 10.0, p.Get(PropertyCurrentFrameIndex))
	require.True(t, p.Set(PropertyCurrentFrameIndex, 4))
	assert.InDelta(t, 0.4, p.Get(PropertyCurrentTime), 1e-9)

	// A slow consumer still sees every frame.
	require.NoError(t, p.Start())
	for i := 4; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		f := p.Grab(time.Second)
		require.NotNil(t, f, "frame %d", i)
		assert.Equal(t, uint64(i), f.Index)
		assert.Equal(t, byte(16+i), f.Data[0][0])
		f.Release()
	}
	assert.Nil(t, p.Grab(time.Second))
	assert.Eventually(t, func() bool { return !p.IsStarted() }, time.Second, time.Millisecond)
	assert.Zero(t, p.Stats().Dropped)

	// Seek back and play again.
	require.True(t, p.Set(PropertyCurrentFrameIndex, 8))
	require.NoError(t, p.Start())
	f := p.Grab(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, uint64(8), f.Index)
	f.Release()
}

func TestCallbackConsumesFrames(t *testing.T) {
	p := newTestProvider(t, BGR24)
	got := make(chan uint64, 64)
	p.SetNewFrameCallback(func(f *Frame) bool {
		select {
		case got <- f.Index:
		default:
		}
		return true
	})
	require.NoError(t, p.Open("test:bars"))
	require.NoError(t, p.Start())

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
	p.Stop()
	assert.Nil(t, p.Grab(0))
	assert.NotZero(t, p.Stats().Consumed)

	p.SetNewFrameCallback(nil)
}

func TestCallbackQueriesProviderDuringStop(t *testing.T) {
	p := newTestProvider(t, BGR24)
	entered := make(chan struct{})
	var once sync.Once
	p.SetNewFrameCallback(func(f *Frame) bool {
		once.Do(func() {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			p.IsStarted()
			p.IsOpened()
			p.Get(PropertyWidth)
			p.Set(PropertyFrameOrientation, float64(TopToBottom))
			p.DeviceInfo()
		})
		return true
	})
	require.NoError(t, p.Open("test:bars"))
	require.NoError(t, p.Start())
	<-entered

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked while the callback queried the provider")
	}
	assert.False(t, p.IsStarted())
}

func TestErrorCallbackQueriesProviderDuringStop(t *testing.T) {
	p := newTestProvider(t, NV12)
	entered := make(chan struct{})
	var once sync.Once
	SetErrorCallback(func(code ErrorCode, desc string) {
		if code != ErrorUnsupportedConversion {
			return
		}
		once.Do(func() {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			p.IsStarted()
			p.IsFileMode()
		})
	})
	t.Cleanup(func() { SetErrorCallback(nil) })

	require.NoError(t, p.Open("test:bars"))
	require.NoError(t, p.Start())
	<-entered

	stopped := make(chan struct{})
	go func() {
		p.Close()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked while the error callback queried the provider")
	}
	assert.False(t, p.IsOpened())
}

func TestFailedRenegotiationKeepsSessionOpen(t *testing.T) {
	p := newTestProvider(t, I420)
	path := writeClip(t, 4)
	clip, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, p.Open(path))
	require.NoError(t, os.Remove(path))
	require.True(t, p.Set(PropertyWidth, 16))

	assert.Error(t, p.Start())
	assert.True(t, p.IsOpened())
	assert.False(t, p.IsStarted())
	assert.Equal(t, 16.0, p.Get(PropertyWidth))

	// Once the file is back, Start retries the reopen.
	require.NoError(t, os.WriteFile(path, clip, 0644))
	require.NoError(t, p.Start())
	f := p.Grab(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, 8, f.Width)
	f.Release()

	p.Close()
	assert.False(t, p.IsOpened())
}
