package color

// Shuffle permutes interleaved RGB-family pixels without touching color
// values. srcCh and dstCh are 3 or 4; swapRB exchanges the first and third
// byte of each pixel. A synthesized alpha channel is opaque. With flip set,
// output rows are written in reverse order.
func Shuffle(src, dst Plane, w, h, srcCh, dstCh int, swapRB, flip bool) error {
	if w <= 0 || h <= 0 {
		return errBadSize
	}
	if (srcCh != 3 && srcCh != 4) || (dstCh != 3 && dstCh != 4) {
		return ErrUnsupportedConversion
	}
	if err := src.check(h, w*srcCh); err != nil {
		return err
	}
	if err := dst.check(h, w*dstCh); err != nil {
		return err
	}

	rows(w, h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			shuffleRow(src.row(y, w*srcCh), dst.row(target(y, h, flip), w*dstCh), w, srcCh, dstCh, swapRB)
		}
	})
	return nil
}

func shuffleRow(s, d []byte, w, srcCh, dstCh int, swapRB bool) {
	r, b := 0, 2
	if swapRB {
		r, b = 2, 0
	}
	switch {
	case srcCh == 4 && dstCh == 4:
		for x := 0; x < w; x++ {
			i := x * 4
			d[i], d[i+1], d[i+2], d[i+3] = s[i+r], s[i+1], s[i+b], s[i+3]
		}
	case srcCh == 3 && dstCh == 3:
		for x := 0; x < w; x++ {
			i := x * 3
			d[i], d[i+1], d[i+2] = s[i+r], s[i+1], s[i+b]
		}
	case srcCh == 3 && dstCh == 4:
		for x := 0; x < w; x++ {
			i, j := x*3, x*4
			d[j], d[j+1], d[j+2], d[j+3] = s[i+r], s[i+1], s[i+b], 0xff
		}
	default:
		for x := 0; x < w; x++ {
			i, j := x*4, x*3
			d[j], d[j+1], d[j+2] = s[i+r], s[i+1], s[i+b]
		}
	}
}

// ShuffleFormat converts between two RGB-family formats.
func ShuffleFormat(src Plane, from PixelFormat, dst Plane, to PixelFormat, w, h int, flip bool) error {
	if !from.IsRGB() || !to.IsRGB() {
		return Unsupported(from, to)
	}
	return Shuffle(src, dst, w, h, from.Channels(), to.Channels(), from.IsBGR() != to.IsBGR(), flip)
}

// FlipRows copies h rows of rowBytes from src to dst in reverse order.
func FlipRows(src, dst Plane, rowBytes, h int) error {
	return copyRows(src, dst, rowBytes, h, true)
}

// CopyRows copies h rows of rowBytes from src to dst, repacking strides.
func CopyRows(src, dst Plane, rowBytes, h int) error {
	return copyRows(src, dst, rowBytes, h, false)
}

func copyRows(src, dst Plane, rowBytes, h int, flip bool) error {
	if rowBytes <= 0 || h <= 0 {
		return errBadSize
	}
	if err := src.check(h, rowBytes); err != nil {
		return err
	}
	if err := dst.check(h, rowBytes); err != nil {
		return err
	}
	rows(rowBytes, h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			copy(dst.row(target(y, h, flip), rowBytes), src.row(y, rowBytes))
		}
	})
	return nil
}

// FlipInPlace reverses the row order of a plane without a second buffer.
func FlipInPlace(p Plane, rowBytes, h int) error {
	if err := p.check(h, rowBytes); err != nil {
		return err
	}
	tmp := make([]byte, rowBytes)
	for top, bottom := 0, h-1; top < bottom; top, bottom = top+1, bottom-1 {
		a, b := p.row(top, rowBytes), p.row(bottom, rowBytes)
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
	return nil
}
