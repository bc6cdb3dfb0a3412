package relay

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
)

// Message layout, big endian:
//
//	magic     [4]byte "ACF1"
//	flags     uint8   bit 0: payload is zstd compressed
//	reserved  [3]byte
//	width     uint32
//	height    uint32
//	format    uint32
//	index     uint64
//	timestamp int64   nanoseconds
//	payload   tightly packed planes in format order
const (
	magic      = "ACF1"
	headerSize = 40

	flagCompressed = 1
)

var ErrBadMessage = errors.New("relay: malformed message")

// Header describes the frame carried by a message.
type Header struct {
	Width, Height int
	Format        color.PixelFormat
	Index         uint64
	Timestamp     time.Duration
}

// Encoder packs frames into messages. It is safe for concurrent use.
type Encoder struct {
	compress bool

	mu  sync.Mutex
	enc *zstd.Encoder
	buf []byte
}

func NewEncoder(compress bool) (*Encoder, error) {
	e := &Encoder{compress: compress}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		e.enc = enc
	}
	return e, nil
}

// Encode returns a new message holding f. Plane padding is stripped.
func (e *Encoder) Encode(f *frame.Frame) ([]byte, error) {
	strides, sizes := f.Format.Layout(f.Width, f.Height)
	total := sizes[0] + sizes[1] + sizes[2]
	if total == 0 {
		return nil, errors.Errorf("relay: cannot encode %v frame", f.Format)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cap(e.buf) < total {
		e.buf = make([]byte, total)
	}
	raw := e.buf[:total]
	off := 0
	for i := 0; i < 3; i++ {
		if sizes[i] == 0 {
			continue
		}
		rows := sizes[i] / strides[i]
		err := color.CopyRows(f.Plane(i), color.Plane{Data: raw[off:], Stride: strides[i]}, strides[i], rows)
		if err != nil {
			return nil, errors.Wrapf(err, "plane %d", i)
		}
		off += sizes[i]
	}

	msg := make([]byte, headerSize, headerSize+total)
	copy(msg, magic)
	binary.BigEndian.PutUint32(msg[8:], uint32(f.Width))
	binary.BigEndian.PutUint32(msg[12:], uint32(f.Height))
	binary.BigEndian.PutUint32(msg[16:], uint32(f.Format))
	binary.BigEndian.PutUint64(msg[20:], f.Index)
	binary.BigEndian.PutUint64(msg[28:], uint64(f.Timestamp))
	if e.enc != nil {
		msg[4] |= flagCompressed
		return e.enc.EncodeAll(raw, msg), nil
	}
	return append(msg, raw...), nil
}

// Close releases the compressor.
func (e *Encoder) Close() error {
	if e.enc != nil {
		return e.enc.Close()
	}
	return nil
}

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

// Decode parses a message produced by Encode, returning the header and the
// packed planes.
func Decode(msg []byte) (Header, []byte, error) {
	if len(msg) < headerSize || string(msg[:4]) != magic {
		return Header{}, nil, ErrBadMessage
	}
	h := Header{
		Width:     int(binary.BigEndian.Uint32(msg[8:])),
		Height:    int(binary.BigEndian.Uint32(msg[12:])),
		Format:    color.PixelFormat(binary.BigEndian.Uint32(msg[16:])),
		Index:     binary.BigEndian.Uint64(msg[20:]),
		Timestamp: time.Duration(binary.BigEndian.Uint64(msg[28:])),
	}
	_, sizes := h.Format.Layout(h.Width, h.Height)
	total := sizes[0] + sizes[1] + sizes[2]

	payload := msg[headerSize:]
	if msg[4]&flagCompressed != 0 {
		decoderOnce.Do(func() {
			decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		})
		var err error
		if payload, err = decoder.DecodeAll(payload, make([]byte, 0, total)); err != nil {
			return Header{}, nil, errors.Wrap(err, "zstd")
		}
	}
	if total == 0 || len(payload) != total {
		return Header{}, nil, ErrBadMessage
	}
	return h, payload, nil
}
