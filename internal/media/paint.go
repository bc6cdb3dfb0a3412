package media

import (
	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
)

// A pattern returns the color of pixel (x, y).
type pattern func(x, y int) (r, g, b byte)

// paint renders p into the frame's raw buffer in the frame's Format. Chroma of
// subsampled formats comes from the top-left pixel of each block.
func paint(f *frame.Frame, p pattern) {
	_, sizes := f.Format.Layout(f.Width, f.Height)
	f.SetPlanes(f.RawBuffer(sizes[0] + sizes[1] + sizes[2]))
	w, h := f.Width, f.Height
	full := f.Format.IsFullRange()

	switch f.Format.Base() {
	case color.I420, color.NV12:
		for y := 0; y < h; y++ {
			row := f.Data[0][y*f.Stride[0]:]
			for x := 0; x < w; x++ {
				r, g, b := p(x, y)
				yy, u, v := color.RGBToYUV(r, g, b, full)
				row[x] = yy
				if x&1 != 0 || y&1 != 0 {
					continue
				}
				if f.Format.Base() == color.I420 {
					f.Data[1][y/2*f.Stride[1]+x/2] = u
					f.Data[2][y/2*f.Stride[2]+x/2] = v
				} else {
					i := y/2*f.Stride[1] + x
					f.Data[1][i], f.Data[1][i+1] = u, v
				}
			}
		}

	case color.YUYV, color.UYVY:
		yOff, uOff, vOff := 0, 1, 3
		if f.Format.Base() == color.UYVY {
			yOff, uOff, vOff = 1, 0, 2
		}
		for y := 0; y < h; y++ {
			row := f.Data[0][y*f.Stride[0]:]
			for x := 0; x < w; x++ {
				r, g, b := p(x, y)
				yy, u, v := color.RGBToYUV(r, g, b, full)
				i := x / 2 * 4
				row[i+yOff+(x&1)*2] = yy
				if x&1 == 0 {
					row[i+uOff], row[i+vOff] = u, v
					if x == w-1 {
						// Odd width: the unused second luma sample repeats.
						row[i+yOff+2] = yy
					}
				}
			}
		}

	default:
		ch := f.Format.Channels()
		ri, bi := 0, 2
		if f.Format.IsBGR() {
			ri, bi = 2, 0
		}
		for y := 0; y < h; y++ {
			row := f.Data[0][y*f.Stride[0]:]
			for x := 0; x < w; x++ {
				r, g, b := p(x, y)
				px := row[x*ch:]
				px[ri], px[1], px[bi] = r, g, b
				if ch == 4 {
					px[3] = 0xff
				}
			}
		}
	}
}

// SMPTE-style color bars: white, yellow, cyan, green, magenta, red, blue, black.
var barColors = [8][3]byte{
	{235, 235, 235}, {235, 235, 16}, {16, 235, 235}, {16, 235, 16},
	{235, 16, 235}, {235, 16, 16}, {16, 16, 235}, {16, 16, 16},
}

func colorBars(w int) pattern {
	return func(x, y int) (r, g, b byte) {
		c := barColors[x*len(barColors)/w]
		return c[0], c[1], c[2]
	}
}

// A diagonal gradient that scrolls with the frame index.
func gradient(w, h int, index uint64) pattern {
	shift := int(index * 4)
	return func(x, y int) (r, g, b byte) {
		return byte((x + shift) * 255 / (w + 1)), byte(y * 255 / (h + 1)), byte(x + y + shift)
	}
}

func solid(c [3]byte) pattern {
	return func(x, y int) (r, g, b byte) {
		return c[0], c[1], c[2]
	}
}
