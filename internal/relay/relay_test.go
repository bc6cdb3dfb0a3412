package relay

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
)

func testFrame(pool *frame.Pool) *frame.Frame {
	f := pool.Get()
	f.Width, f.Height, f.Format = 4, 2, color.I420
	f.Index = 42
	f.Timestamp = 1500 * time.Millisecond
	buf := f.RawBuffer(12)
	for i := range buf {
		buf[i] = byte(i)
	}
	f.SetPlanes(buf)
	return f
}

func TestEncodeDecode(t *testing.T) {
	pool := frame.NewPool(1)
	f := testFrame(pool)
	defer f.Release()

	for _, compress := range []bool{false, true} {
		enc, err := NewEncoder(compress)
		require.NoError(t, err)

		msg, err := enc.Encode(f)
		require.NoError(t, err)
		h, payload, err := Decode(msg)
		require.NoError(t, err)

		assert.Equal(t, Header{Width: 4, Height: 2, Format: color.I420, Index: 42, Timestamp: 1500 * time.Millisecond}, h)
		assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, payload)
		require.NoError(t, enc.Close())
	}
}

func TestEncodeStripsPadding(t *testing.T) {
	pool := frame.NewPool(1)
	f := pool.Get()
	defer f.Release()

	// 2x2 RGB24 rows padded to 8 bytes.
	f.Width, f.Height, f.Format = 2, 2, color.RGB24
	f.Data[0] = []byte{1, 2, 3, 4, 5, 6, 0, 0, 7, 8, 9, 10, 11, 12, 0, 0}
	f.Stride[0] = 8

	enc, err := NewEncoder(false)
	require.NoError(t, err)
	msg, err := enc.Encode(f)
	require.NoError(t, err)
	_, payload, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, payload)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("not a frame"))
	assert.Equal(t, ErrBadMessage, err)

	pool := frame.NewPool(1)
	f := testFrame(pool)
	defer f.Release()
	enc, err := NewEncoder(false)
	require.NoError(t, err)
	msg, err := enc.Encode(f)
	require.NoError(t, err)
	_, _, err = Decode(msg[:len(msg)-1])
	assert.Equal(t, ErrBadMessage, err)
}

func TestServerRelaysFrames(t *testing.T) {
	s, err := NewServer(true)
	require.NoError(t, err)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(l)
	defer s.Shutdown(context.Background())

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+l.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return s.Viewers() == 1 }, time.Second, time.Millisecond)

	pool := frame.NewPool(1)
	f := testFrame(pool)
	require.NoError(t, s.Publish(f))
	f.Release()

	ws.SetReadDeadline(time.Now().Add(time.Second))
	typ, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	h, payload, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), h.Index)
	assert.Len(t, payload, 12)
	assert.Equal(t, uint64(1), s.Published())
}
