// Copyright 2019 Lanikai Labs. All rights reserved.

package color

import "strings"

// PixelFormat describes the memory layout of a frame. The high bits classify
// the format family; the low bits identify the layout within the family.
type PixelFormat uint32

const (
	yuvBit       PixelFormat = 1 << 16
	fullRangeBit PixelFormat = 1 << 17
	rgbBit       PixelFormat = 1 << 18
	alphaBit     PixelFormat = 1 << 19
)

const (
	Unknown PixelFormat = 0

	// 4:2:0 semi-planar: Y plane followed by interleaved UV plane.
	NV12  = 1 | yuvBit
	NV12F = NV12 | fullRangeBit

	// 4:2:0 planar: Y, U and V planes.
	I420  = 1<<2 | yuvBit
	I420F = I420 | fullRangeBit

	// 4:2:2 packed.
	YUYV  = 1<<5 | yuvBit
	YUYVF = YUYV | fullRangeBit
	UYVY  = 1<<6 | yuvBit
	UYVYF = UYVY | fullRangeBit

	RGB24  = 1<<3 | rgbBit
	BGR24  = 1<<4 | rgbBit
	RGBA32 = RGB24 | alphaBit
	BGRA32 = BGR24 | alphaBit
)

var formatNames = []struct {
	f    PixelFormat
	name string
}{
	{NV12, "NV12"}, {NV12F, "NV12f"},
	{I420, "I420"}, {I420F, "I420f"},
	{YUYV, "YUYV"}, {YUYVF, "YUYVf"},
	{UYVY, "UYVY"}, {UYVYF, "UYVYf"},
	{RGB24, "RGB24"}, {BGR24, "BGR24"},
	{RGBA32, "RGBA32"}, {BGRA32, "BGRA32"},
}

func (f PixelFormat) String() string {
	for _, e := range formatNames {
		if e.f == f {
			return e.name
		}
	}
	return "Unknown"
}

// ParseFormat looks up a pixel format by name, ignoring case.
func ParseFormat(name string) (PixelFormat, bool) {
	for _, e := range formatNames {
		if strings.EqualFold(e.name, name) {
			return e.f, true
		}
	}
	return Unknown, false
}

// Formats lists every known pixel format.
func Formats() []PixelFormat {
	out := make([]PixelFormat, len(formatNames))
	for i, e := range formatNames {
		out[i] = e.f
	}
	return out
}

func (f PixelFormat) IsYUV() bool       { return f&yuvBit != 0 }
func (f PixelFormat) IsRGB() bool       { return f&rgbBit != 0 }
func (f PixelFormat) HasAlpha() bool    { return f&alphaBit != 0 }
func (f PixelFormat) IsFullRange() bool { return f&fullRangeBit != 0 }

// IsBGR reports whether an RGB-family format stores blue first.
func (f PixelFormat) IsBGR() bool {
	return f.IsRGB() && f&^alphaBit == BGR24
}

// Base strips the range bit, so NV12F.Base() == NV12.
func (f PixelFormat) Base() PixelFormat {
	return f &^ fullRangeBit
}

// Channels is the number of interleaved bytes per pixel of an RGB-family
// format, or 0 for anything else.
func (f PixelFormat) Channels() int {
	switch {
	case !f.IsRGB():
		return 0
	case f.HasAlpha():
		return 4
	default:
		return 3
	}
}

// Planes is the number of data planes the format uses.
func (f PixelFormat) Planes() int {
	switch f.Base() {
	case NV12:
		return 2
	case I420:
		return 3
	case Unknown:
		return 0
	default:
		return 1
	}
}

// Layout returns tightly packed strides and plane sizes for a w×h image.
func (f PixelFormat) Layout(w, h int) (strides [3]int, sizes [3]int) {
	cw, ch := (w+1)/2, (h+1)/2
	switch f.Base() {
	case NV12:
		strides = [3]int{w, cw * 2}
		sizes = [3]int{w * h, cw * 2 * ch}
	case I420:
		strides = [3]int{w, cw, cw}
		sizes = [3]int{w * h, cw * ch, cw * ch}
	case YUYV, UYVY:
		strides[0] = cw * 4
		sizes[0] = cw * 4 * h
	default:
		if n := f.Channels(); n > 0 {
			strides[0] = w * n
			sizes[0] = w * n * h
		}
	}
	return
}

// Orientation is the order in which rows are stored.
type Orientation int

const (
	TopToBottom Orientation = iota
	BottomToTop
)

func (o Orientation) String() string {
	if o == BottomToTop {
		return "BottomToTop"
	}
	return "TopToBottom"
}
