package color

// The YUV to RGB kernels below share chroma across each 2×2 (4:2:0) or 2×1
// (4:2:2) block of luma without interpolation.

// NV12ToRGB converts semi-planar 4:2:0 to an RGB-family format.
func NV12ToRGB(y, uv, dst Plane, to PixelFormat, w, h int, flag ConvertFlag, flip bool) error {
	l, ok := layoutOf(to)
	if !ok {
		return Unsupported(NV12, to)
	}
	if w <= 0 || h <= 0 {
		return errBadSize
	}
	cw := (w + 1) / 2
	if err := checkAll(y.check(h, w), uv.check((h+1)/2, cw*2), dst.check(h, w*l.ch)); err != nil {
		return err
	}

	m := matrixFor(flag)
	rows(w, h, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			ys := y.row(row, w)
			cs := uv.row(row/2, cw*2)
			d := dst.row(target(row, h, flip), w*l.ch)
			for x := 0; x < w; x++ {
				c := x &^ 1
				r, g, b := m.rgb(ys[x], cs[c], cs[c+1])
				l.put(d[x*l.ch:], r, g, b)
			}
		}
	})
	return nil
}

// I420ToRGB converts planar 4:2:0 to an RGB-family format.
func I420ToRGB(y, u, v, dst Plane, to PixelFormat, w, h int, flag ConvertFlag, flip bool) error {
	l, ok := layoutOf(to)
	if !ok {
		return Unsupported(I420, to)
	}
	if w <= 0 || h <= 0 {
		return errBadSize
	}
	cw, ch := (w+1)/2, (h+1)/2
	if err := checkAll(y.check(h, w), u.check(ch, cw), v.check(ch, cw), dst.check(h, w*l.ch)); err != nil {
		return err
	}

	m := matrixFor(flag)
	rows(w, h, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			ys := y.row(row, w)
			us := u.row(row/2, cw)
			vs := v.row(row/2, cw)
			d := dst.row(target(row, h, flip), w*l.ch)
			for x := 0; x < w; x++ {
				r, g, b := m.rgb(ys[x], us[x/2], vs[x/2])
				l.put(d[x*l.ch:], r, g, b)
			}
		}
	})
	return nil
}

// YUYVToRGB converts packed Y0 U Y1 V to an RGB-family format.
func YUYVToRGB(src, dst Plane, to PixelFormat, w, h int, flag ConvertFlag, flip bool) error {
	return packedToRGB(src, dst, YUYV, to, w, h, flag, flip, 0, 1, 3)
}

// UYVYToRGB converts packed U Y0 V Y1 to an RGB-family format.
func UYVYToRGB(src, dst Plane, to PixelFormat, w, h int, flag ConvertFlag, flip bool) error {
	return packedToRGB(src, dst, UYVY, to, w, h, flag, flip, 1, 0, 2)
}

// Packed 4:2:2 kernel. yOff is the offset of the first luma byte in each
// 4-byte macropixel (the second is yOff+2); uOff and vOff locate chroma.
func packedToRGB(src, dst Plane, from, to PixelFormat, w, h int, flag ConvertFlag, flip bool, yOff, uOff, vOff int) error {
	l, ok := layoutOf(to)
	if !ok {
		return Unsupported(from, to)
	}
	if w <= 0 || h <= 0 {
		return errBadSize
	}
	rowBytes := (w + 1) / 2 * 4
	if err := checkAll(src.check(h, rowBytes), dst.check(h, w*l.ch)); err != nil {
		return err
	}

	m := matrixFor(flag)
	rows(w, h, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			s := src.row(row, rowBytes)
			d := dst.row(target(row, h, flip), w*l.ch)
			for x := 0; x < w; x++ {
				p := x / 2 * 4
				r, g, b := m.rgb(s[p+yOff+(x&1)*2], s[p+uOff], s[p+vOff])
				l.put(d[x*l.ch:], r, g, b)
			}
		}
	})
	return nil
}

func checkAll(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
