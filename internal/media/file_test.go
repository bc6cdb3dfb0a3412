package media

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/y4m"
)

// writeClip writes n frames whose luma is filled with the frame index.
func writeClip(t *testing.T, name string, n int) string {
	path := filepath.Join(t.TempDir(), name)
	w, err := y4m.Create(path, y4m.Header{Width: 8, Height: 4, RateNum: 100, RateDen: 1})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		y := make([]byte, 8*4)
		for j := range y {
			y[j] = byte(i)
		}
		u, v := make([]byte, 4*2), make([]byte, 4*2)
		require.NoError(t, w.WriteFrame([3][]byte{y, u, v}, [3]int{8, 4, 4}))
	}
	require.NoError(t, w.Close())
	return path
}

func openClip(t *testing.T, path string, capacity int) (*fileSource, *recordingSink) {
	sink := newRecordingSink(capacity)
	src, err := OpenSource(path, Config{}, sink)
	require.NoError(t, err)
	fs, ok := src.(*fileSource)
	require.True(t, ok)
	return fs, sink
}

func TestDecoderForSuffix(t *testing.T) {
	open, ok := decoderFor("/videos/CLIP.Y4M.ZST")
	require.True(t, ok)
	assert.NotNil(t, open)

	if _, fallback := decoders[""]; !fallback {
		_, ok = decoderFor("clip.webm")
		assert.False(t, ok)
	}
}

func TestFileSourceDeliversEveryFrame(t *testing.T) {
	for _, name := range []string{"clip.y4m", "clip.y4m.zst"} {
		t.Run(name, func(t *testing.T) {
			src, sink := openClip(t, writeClip(t, name, 20), 2)
			defer src.Close()

			assert.Equal(t, int64(20), src.FrameCount())
			assert.Equal(t, 200*time.Millisecond, src.Duration())
			info, ok := src.DeviceInfo()
			require.True(t, ok)
			assert.Equal(t, []color.PixelFormat{color.I420}, info.PixelFormats)

			require.NoError(t, src.Start())
			for i := 0; i < 20; i++ {
				f := sink.q.Grab(time.Second)
				require.NotNil(t, f, "frame %d", i)
				assert.Equal(t, uint64(i), f.Index)
				assert.Equal(t, byte(i), f.Data[0][0])
				assert.Equal(t, time.Duration(i)*10*time.Millisecond, f.Timestamp)
				f.Release()
			}

			// End of stream wakes waiters with nothing.
			assert.Nil(t, sink.q.Grab(time.Second))
			<-sink.eos
			assert.Zero(t, sink.q.Stats().Dropped)
			assert.Empty(t, sink.reported())
		})
	}
}

func TestFileSourceSeek(t *testing.T) {
	src, sink := openClip(t, writeClip(t, "seek.y4m", 10), 1)
	defer src.Close()

	require.NoError(t, src.Seek(-time.Second))
	assert.Equal(t, int64(0), src.CurrentFrameIndex())

	require.NoError(t, src.Seek(time.Hour))
	assert.Equal(t, int64(10), src.CurrentFrameIndex())
	assert.Equal(t, src.Duration(), src.CurrentTime())

	require.NoError(t, src.Seek(30*time.Millisecond))
	assert.Equal(t, int64(3), src.CurrentFrameIndex())

	require.NoError(t, src.SeekFrame(7))
	require.NoError(t, src.Start())
	f := sink.q.Grab(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, uint64(7), f.Index)
	assert.Equal(t, byte(7), f.Data[0][0])
	f.Release()
	require.NoError(t, src.Stop())

	require.NoError(t, src.SeekFrame(-5))
	assert.Equal(t, int64(0), src.CurrentFrameIndex())
}

func TestFileSourcePlaybackSpeed(t *testing.T) {
	src, sink := openClip(t, writeClip(t, "speed.y4m", 6), 3)
	defer src.Close()

	assert.Equal(t, 0.0, src.PlaybackSpeed())
	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		err := src.SetPlaybackSpeed(bad)
		assert.Equal(t, ErrBadSpeed, errors.Cause(err))
	}
	assert.Equal(t, 0.0, src.PlaybackSpeed())

	// 100 fps at double speed: 5ms per frame.
	require.NoError(t, src.SetPlaybackSpeed(2))
	start := time.Now()
	require.NoError(t, src.Start())
	for i := 0; i < 6; i++ {
		f := sink.q.Grab(time.Second)
		require.NotNil(t, f)
		f.Release()
	}
	assert.True(t, time.Since(start) >= 20*time.Millisecond, "paced playback took %v", time.Since(start))
}

func TestFileSourceErrors(t *testing.T) {
	src := new(fileSource)
	assert.Equal(t, ErrNotOpened, src.Start())
	assert.Equal(t, ErrNotOpened, src.SeekFrame(1))

	err := src.Open(filepath.Join(t.TempDir(), "missing.y4m"), Config{}, newRecordingSink(1))
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	path := writeClip(t, "twice.y4m", 1)
	require.NoError(t, src.Open(path, Config{}, newRecordingSink(1)))
	assert.Equal(t, ErrAlreadyOpened, src.Open(path, Config{}, newRecordingSink(1)))
	require.NoError(t, src.Close())
}
