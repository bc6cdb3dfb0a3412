package color

// Plane is one image plane: row-major bytes with a fixed stride.
type Plane struct {
	Data   []byte
	Stride int
}

// row returns row y, rowBytes long.
func (p Plane) row(y, rowBytes int) []byte {
	off := y * p.Stride
	return p.Data[off : off+rowBytes]
}

// check verifies that the plane can hold rows×rowBytes.
func (p Plane) check(rows, rowBytes int) error {
	if p.Stride < rowBytes || rows <= 0 {
		return errShortPlane
	}
	if len(p.Data) < (rows-1)*p.Stride+rowBytes {
		return errShortPlane
	}
	return nil
}

// Destination layout of an interleaved RGB-family format: bytes per pixel and
// byte offsets of red and blue. Green is always at offset 1, alpha at 3.
type rgbLayout struct {
	ch   int
	r, b int
}

func layoutOf(f PixelFormat) (rgbLayout, bool) {
	n := f.Channels()
	if n == 0 {
		return rgbLayout{}, false
	}
	if f.IsBGR() {
		return rgbLayout{n, 2, 0}, true
	}
	return rgbLayout{n, 0, 2}, true
}

func (l rgbLayout) put(dst []byte, r, g, b byte) {
	dst[l.r] = r
	dst[1] = g
	dst[l.b] = b
	if l.ch == 4 {
		dst[3] = 0xff
	}
}

// Output row index for source row y of an h-row image.
func target(y, h int, flip bool) int {
	if flip {
		return h - 1 - y
	}
	return y
}
