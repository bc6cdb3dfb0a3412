package color

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBackend(t *testing.T, b Backend, fn func()) {
	t.Helper()
	saved := GetBackend()
	defer SetBackend(saved)
	require.True(t, SetBackend(b))
	fn()
}

func TestParallelMatchesPortable(t *testing.T) {
	const w, h = 320, 240
	r := rand.New(rand.NewSource(7))
	y := Plane{make([]byte, w*h), w}
	uv := Plane{make([]byte, w*h/2), w}
	r.Read(y.Data)
	r.Read(uv.Data)

	flags := []ConvertFlag{BT601 | VideoRange, BT709 | VideoRange, BT601 | FullRange, BT709 | FullRange}
	for _, flag := range flags {
		for _, flip := range []bool{false, true} {
			cpu := Plane{make([]byte, w*h*4), w * 4}
			par := Plane{make([]byte, w*h*4), w * 4}

			withBackend(t, CPU, func() {
				require.NoError(t, NV12ToRGB(y, uv, cpu, BGRA32, w, h, flag, flip))
			})
			withBackend(t, Parallel, func() {
				require.NoError(t, NV12ToRGB(y, uv, par, BGRA32, w, h, flag, flip))
			})

			for i := range cpu.Data {
				d := int(cpu.Data[i]) - int(par.Data[i])
				if d < -1 || d > 1 {
					t.Fatalf("%v flip=%v: byte %d differs: %d vs %d", flag, flip, i, cpu.Data[i], par.Data[i])
				}
			}
		}
	}
}

func TestParallelShuffleAndRepack(t *testing.T) {
	const w, h = 256, 128
	src := randomPlane(w, h, 2, 9)

	out := func() ([]byte, []byte) {
		yp := Plane{make([]byte, w*h), w}
		u := Plane{make([]byte, w*h/4), w / 2}
		v := Plane{make([]byte, w*h/4), w / 2}
		require.NoError(t, YUYVToI420(src, yp, u, v, w, h))
		rgb := Plane{make([]byte, w*h*3), w * 3}
		require.NoError(t, YUYVToRGB(src, rgb, RGB24, w, h, DefaultConvertFlag, true))
		return append(append(yp.Data, u.Data...), v.Data...), rgb.Data
	}

	var cpuYUV, cpuRGB, parYUV, parRGB []byte
	withBackend(t, CPU, func() { cpuYUV, cpuRGB = out() })
	withBackend(t, Parallel, func() { parYUV, parRGB = out() })
	assert.Equal(t, cpuYUV, parYUV)
	assert.Equal(t, cpuRGB, parRGB)
}

func TestBackendSelection(t *testing.T) {
	assert.Equal(t, CPU, resolve(CPU, 4096, 4096))
	assert.Equal(t, Parallel, resolve(Parallel, 2, 2))
	assert.Equal(t, CPU, resolve(Auto, 64, 64))
	assert.False(t, SetBackend(Backend(42)))

	b, ok := ParseBackend("parallel")
	assert.True(t, ok)
	assert.Equal(t, Parallel, b)
	_, ok = ParseBackend("gpu")
	assert.False(t, ok)
}

func TestRowsCoversEveryRowOnce(t *testing.T) {
	for _, h := range []int{1, 15, 16, 33, 100, 1081} {
		seen := make([]int32, h)
		rowsWith(Parallel, h, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				seen[y]++
			}
		})
		for y, n := range seen {
			if n != 1 {
				t.Fatalf("h=%d: row %d visited %d times", h, y, n)
			}
		}
	}
}

func TestParseFormatAndLayout(t *testing.T) {
	f, ok := ParseFormat("nv12f")
	assert.True(t, ok)
	assert.Equal(t, NV12F, f)
	assert.Equal(t, NV12, f.Base())
	assert.True(t, f.IsYUV())
	assert.True(t, f.IsFullRange())

	assert.True(t, BGRA32.IsBGR())
	assert.False(t, RGBA32.IsBGR())
	assert.Equal(t, 4, BGRA32.Channels())
	assert.Equal(t, 0, YUYV.Channels())

	strides, sizes := I420.Layout(6, 4)
	assert.Equal(t, [3]int{6, 3, 3}, strides)
	assert.Equal(t, [3]int{24, 6, 6}, sizes)
	assert.Equal(t, 3, I420.Planes())
	assert.Equal(t, "Unknown", PixelFormat(12345).String())
}
