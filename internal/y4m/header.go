// Package y4m reads and writes YUV4MPEG2 streams, optionally wrapped in zstd.
//
// Only 4:2:0 planar 8-bit content is supported, which maps onto I420 (or
// I420F when the stream declares XCOLORRANGE=FULL).
package y4m

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/color"
)

const (
	magic       = "YUV4MPEG2"
	frameMagic  = "FRAME"
	maxLineSize = 4096
)

var (
	ErrBadMagic       = errors.New("y4m: not a YUV4MPEG2 stream")
	ErrBadFrameHeader = errors.New("y4m: bad frame header")
)

// Header is the stream header.
type Header struct {
	Width  int
	Height int

	// Frame rate as a ratio, e.g. 30000:1001.
	RateNum int
	RateDen int

	// Interlacing mode letter, 'p' when absent.
	Interlace byte

	// Colorspace tag without the leading 'C', e.g. "420jpeg".
	Colorspace string

	FullRange bool
}

// FrameRate returns frames per second, or 0 when the rate is unknown.
func (h Header) FrameRate() float64 {
	if h.RateNum <= 0 || h.RateDen <= 0 {
		return 0
	}
	return float64(h.RateNum) / float64(h.RateDen)
}

// Format is the pixel format of decoded frames.
func (h Header) Format() color.PixelFormat {
	if h.FullRange {
		return color.I420F
	}
	return color.I420
}

// FrameSize is the number of payload bytes per frame.
func (h Header) FrameSize() int {
	_, sizes := color.I420.Layout(h.Width, h.Height)
	return sizes[0] + sizes[1] + sizes[2]
}

func (h Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s W%d H%d F%d:%d I%c A1:1 C%s", magic, h.Width, h.Height, h.RateNum, h.RateDen, h.interlace(), h.colorspace())
	if h.FullRange {
		b.WriteString(" XCOLORRANGE=FULL")
	}
	return b.String()
}

func (h Header) interlace() byte {
	if h.Interlace == 0 {
		return 'p'
	}
	return h.Interlace
}

func (h Header) colorspace() string {
	if h.Colorspace == "" {
		return "420jpeg"
	}
	return h.Colorspace
}

// RateFromFPS approximates fps as a ratio.
func RateFromFPS(fps float64) (num, den int) {
	if fps <= 0 {
		return 0, 0
	}
	if fps == float64(int(fps)) {
		return int(fps), 1
	}
	return int(fps*1000 + 0.5), 1000
}

func supportedColorspace(cs string) bool {
	switch cs {
	case "420jpeg", "420paldv", "420mpeg2", "420":
		return true
	}
	return false
}

// Read and parse the stream header line.
func readHeader(r *bufio.Reader) (Header, int, error) {
	line, err := readLine(r)
	if err != nil {
		return Header{}, 0, err
	}
	n := len(line) + 1

	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != magic {
		return Header{}, n, ErrBadMagic
	}

	h := Header{Interlace: 'p', Colorspace: "420jpeg"}
	for _, f := range fields[1:] {
		tag, val := f[0], f[1:]
		switch tag {
		case 'W':
			h.Width, err = strconv.Atoi(val)
		case 'H':
			h.Height, err = strconv.Atoi(val)
		case 'F':
			h.RateNum, h.RateDen, err = parseRatio(val)
		case 'I':
			if len(val) > 0 {
				h.Interlace = val[0]
			}
		case 'C':
			h.Colorspace = val
		case 'X':
			if strings.EqualFold(val, "COLORRANGE=FULL") {
				h.FullRange = true
			}
		}
		if err != nil {
			return Header{}, n, errors.Wrapf(err, "y4m: bad header field %q", f)
		}
	}

	if h.Width <= 0 || h.Height <= 0 {
		return Header{}, n, errors.Errorf("y4m: invalid size %dx%d", h.Width, h.Height)
	}
	if !supportedColorspace(h.Colorspace) {
		return Header{}, n, errors.Errorf("y4m: unsupported colorspace C%s", h.Colorspace)
	}
	return h, n, nil
}

func parseRatio(s string) (int, int, error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return 0, 0, errors.Errorf("missing ':' in %q", s)
	}
	num, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, 0, err
	}
	den, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return 0, 0, err
	}
	return num, den, nil
}

func readLine(r *bufio.Reader) (string, error) {
	var b []byte
	for {
		chunk, err := r.ReadSlice('\n')
		b = append(b, chunk...)
		if err == nil {
			return string(b[:len(b)-1]), nil
		}
		if err != bufio.ErrBufferFull {
			if err == io.EOF && len(b) > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if len(b) > maxLineSize {
			return "", errors.New("y4m: header line too long")
		}
	}
}
