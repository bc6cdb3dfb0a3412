package color

// ConvertFlag selects the YUV to RGB coefficient set and the value range.
type ConvertFlag int

const (
	BT601      ConvertFlag = 0x1
	BT709      ConvertFlag = 0x2
	VideoRange ConvertFlag = 0x100
	FullRange  ConvertFlag = 0x200

	DefaultConvertFlag = BT601 | VideoRange
)

func (flag ConvertFlag) String() string {
	s := "BT601"
	if flag&BT709 != 0 {
		s = "BT709"
	}
	if flag&FullRange != 0 {
		return s + "/full"
	}
	return s + "/video"
}

// ForFormat overrides the range bits with the range carried by a YUV pixel
// format. Formats without a range bit leave the flag unchanged.
func (flag ConvertFlag) ForFormat(f PixelFormat) ConvertFlag {
	if !f.IsYUV() {
		return flag
	}
	flag &^= VideoRange | FullRange
	if f.IsFullRange() {
		return flag | FullRange
	}
	return flag | VideoRange
}

// Fixed-point (8 fractional bits) YUV to RGB coefficients. Studio range folds
// the 255/219 luma and 255/224 chroma expansion into the constants.
type matrix struct {
	yBias int32
	cy    int32
	rv    int32
	gu    int32
	gv    int32
	bu    int32
}

var (
	bt601Video = matrix{yBias: 16, cy: 298, rv: 409, gu: 100, gv: 208, bu: 516}
	bt709Video = matrix{yBias: 16, cy: 298, rv: 459, gu: 55, gv: 136, bu: 541}
	bt601Full  = matrix{yBias: 0, cy: 256, rv: 359, gu: 88, gv: 183, bu: 454}
	bt709Full  = matrix{yBias: 0, cy: 256, rv: 403, gu: 48, gv: 120, bu: 475}
)

func matrixFor(flag ConvertFlag) *matrix {
	full := flag&FullRange != 0
	switch {
	case flag&BT709 != 0 && full:
		return &bt709Full
	case flag&BT709 != 0:
		return &bt709Video
	case full:
		return &bt601Full
	default:
		return &bt601Video
	}
}

func clamp(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// rgb converts one sample. Chroma is recentered at 128 for both ranges.
func (m *matrix) rgb(y, u, v byte) (r, g, b byte) {
	yy := m.cy * (int32(y) - m.yBias)
	uu := int32(u) - 128
	vv := int32(v) - 128
	r = clamp((yy + m.rv*vv + 128) >> 8)
	g = clamp((yy - m.gu*uu - m.gv*vv + 128) >> 8)
	b = clamp((yy + m.bu*uu + 128) >> 8)
	return
}
