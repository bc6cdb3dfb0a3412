// Copyright 2019 Lanikai Labs. All rights reserved.

package color

// YUYVToI420 repacks YUYV (i.e. YUY2) to I420 planar. Chroma is taken from
// even rows only. Width and height must be even.
func YUYVToI420(src, y, u, v Plane, w, h int) error {
	return packedToI420(src, y, u, v, w, h, 0, 1, 3)
}

// UYVYToI420 repacks UYVY to I420 planar.
func UYVYToI420(src, y, u, v Plane, w, h int) error {
	return packedToI420(src, y, u, v, w, h, 1, 0, 2)
}

func packedToI420(src, y, u, v Plane, w, h, yOff, uOff, vOff int) error {
	if w <= 0 || h <= 0 || w&1 != 0 || h&1 != 0 {
		return errBadSize
	}
	cw := w / 2
	if err := checkAll(src.check(h, w*2), y.check(h, w), u.check(h/2, cw), v.check(h/2, cw)); err != nil {
		return err
	}

	rows(w, h, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			s := src.row(row, w*2)
			ys := y.row(row, w)
			for x := 0; x < cw; x++ {
				ys[2*x] = s[4*x+yOff]
				ys[2*x+1] = s[4*x+yOff+2]
			}
			if row&1 != 0 {
				continue
			}
			us, vs := u.row(row/2, cw), v.row(row/2, cw)
			for x := 0; x < cw; x++ {
				us[x] = s[4*x+uOff]
				vs[x] = s[4*x+vOff]
			}
		}
	})
	return nil
}

// NV12ToI420 splits the interleaved chroma plane of NV12 into U and V planes.
func NV12ToI420(srcY, srcUV, y, u, v Plane, w, h int) error {
	if w <= 0 || h <= 0 {
		return errBadSize
	}
	cw, ch := (w+1)/2, (h+1)/2
	if err := checkAll(srcY.check(h, w), srcUV.check(ch, cw*2), y.check(h, w), u.check(ch, cw), v.check(ch, cw)); err != nil {
		return err
	}
	if err := CopyRows(srcY, y, w, h); err != nil {
		return err
	}
	rows(w, ch, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			s := srcUV.row(row, cw*2)
			us, vs := u.row(row, cw), v.row(row, cw)
			for x := 0; x < cw; x++ {
				us[x] = s[2*x]
				vs[x] = s[2*x+1]
			}
		}
	})
	return nil
}
