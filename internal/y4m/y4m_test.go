package y4m

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap/internal/color"
)

func TestParseHeader(t *testing.T) {
	r, err := NewReader(strings.NewReader("YUV4MPEG2 W640 H480 F30000:1001 Ip A1:1 C420jpeg XYSCSS=420JPEG\n"))
	require.NoError(t, err)
	assert.Equal(t, 640, r.Width)
	assert.Equal(t, 480, r.Height)
	assert.InDelta(t, 29.97, r.FrameRate(), 0.01)
	assert.Equal(t, color.I420, r.Format())
	assert.Equal(t, 640*480*3/2, r.FrameSize())
}

func TestParseHeaderDefaults(t *testing.T) {
	r, err := NewReader(strings.NewReader("YUV4MPEG2 W3 H3 F25:1\n"))
	require.NoError(t, err)
	assert.Equal(t, "420jpeg", r.Colorspace)
	assert.Equal(t, byte('p'), r.Interlace)
	// Odd sizes round chroma up.
	assert.Equal(t, 9+4+4, r.FrameSize())
}

func TestParseHeaderColorspaces(t *testing.T) {
	for _, cs := range []string{"C420", "C420jpeg", "C420paldv", "C420mpeg2"} {
		_, err := NewReader(strings.NewReader("YUV4MPEG2 W2 H2 F1:1 " + cs + "\n"))
		assert.NoError(t, err, cs)
	}
	for _, cs := range []string{"C422", "Cmono", "C444"} {
		_, err := NewReader(strings.NewReader("YUV4MPEG2 W2 H2 F1:1 " + cs + "\n"))
		assert.Error(t, err, cs)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	for _, h := range []string{
		"",
		"MPEG W2 H2\n",
		"YUV4MPEG2 W0 H2\n",
		"YUV4MPEG2 Wx H2\n",
		"YUV4MPEG2 W2 H2 F30\n",
	} {
		_, err := NewReader(strings.NewReader(h))
		assert.Error(t, err, "%q", h)
	}
}

func TestFullRange(t *testing.T) {
	r, err := NewReader(strings.NewReader("YUV4MPEG2 W2 H2 F1:1 XCOLORRANGE=FULL\n"))
	require.NoError(t, err)
	assert.Equal(t, color.I420F, r.Format())
	assert.Contains(t, r.Header.String(), "XCOLORRANGE=FULL")
}

func testFrame(h Header, n byte) ([3][]byte, [3]int) {
	strides, sizes := color.I420.Layout(h.Width, h.Height)
	var data [3][]byte
	for i := range data {
		data[i] = bytes.Repeat([]byte{n + byte(i)}, sizes[i])
	}
	return data, strides
}

func TestRoundTrip(t *testing.T) {
	h := Header{Width: 4, Height: 2, RateNum: 30, RateDen: 1}
	var buf bytes.Buffer
	w, err := NewWriter(&buf, h)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		data, strides := testFrame(h, byte(10*i))
		require.NoError(t, w.WriteFrame(data, strides))
	}
	require.NoError(t, w.Close())
	assert.True(t, strings.HasPrefix(buf.String(), "YUV4MPEG2 W4 H2 F30:1 Ip A1:1 C420jpeg\nFRAME\n"))

	r, err := NewReader(&buf)
	require.NoError(t, err)
	frame := make([]byte, r.FrameSize())
	for i := 0; i < 3; i++ {
		require.NoError(t, r.ReadFrame(frame))
		assert.Equal(t, byte(10*i), frame[0])
		assert.Equal(t, byte(10*i+1), frame[8])
		assert.Equal(t, byte(10*i+2), frame[10])
	}
	assert.Equal(t, io.EOF, r.ReadFrame(frame))
}

func TestWriterRepacksStrides(t *testing.T) {
	h := Header{Width: 2, Height: 2, RateNum: 1, RateDen: 1}
	var buf bytes.Buffer
	w, err := NewWriter(&buf, h)
	require.NoError(t, err)
	data := [3][]byte{{1, 2, 0, 0, 3, 4}, {5}, {6}}
	require.NoError(t, w.WriteFrame(data, [3]int{4, 1, 1}))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	frame := make([]byte, r.FrameSize())
	require.NoError(t, r.ReadFrame(frame))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, frame)
}

func TestTruncatedFrame(t *testing.T) {
	r, err := NewReader(strings.NewReader("YUV4MPEG2 W2 H2 F1:1\nFRAME\n\x01\x02"))
	require.NoError(t, err)
	assert.Equal(t, io.ErrUnexpectedEOF, r.ReadFrame(make([]byte, 6)))
}

func TestFrameParameters(t *testing.T) {
	r, err := NewReader(strings.NewReader("YUV4MPEG2 W2 H2 F1:1\nFRAME Ip\n123456FRAME\nabcdef"))
	require.NoError(t, err)
	frame := make([]byte, 6)
	require.NoError(t, r.ReadFrame(frame))
	assert.Equal(t, "123456", string(frame))
	require.NoError(t, r.ReadFrame(frame))
	assert.Equal(t, "abcdef", string(frame))
}

func writeFile(t *testing.T, path string, h Header, n int) {
	t.Helper()
	w, err := Create(path, h)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		data, strides := testFrame(h, byte(i))
		require.NoError(t, w.WriteFrame(data, strides))
	}
	assert.EqualValues(t, n, w.Frames())
	require.NoError(t, w.Close())
}

func TestFileSeek(t *testing.T) {
	for _, name := range []string{"clip.y4m", "clip.y4m.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			h := Header{Width: 4, Height: 4, RateNum: 25, RateDen: 1}
			writeFile(t, path, h, 10)

			f, err := Open(path)
			require.NoError(t, err)
			defer f.Close()

			count, err := f.FrameCount()
			require.NoError(t, err)
			assert.EqualValues(t, 10, count)

			buf := make([]byte, f.FrameSize())
			require.NoError(t, f.SeekFrame(7))
			require.NoError(t, f.ReadFrame(buf))
			assert.Equal(t, byte(7), buf[0])
			assert.EqualValues(t, 8, f.Index())

			require.NoError(t, f.SeekFrame(2))
			require.NoError(t, f.ReadFrame(buf))
			assert.Equal(t, byte(2), buf[0])

			require.NoError(t, f.SeekFrame(10))
			assert.Equal(t, io.EOF, f.ReadFrame(buf))
		})
	}
}
