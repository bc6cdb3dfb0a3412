package color

// RGBToYUV encodes one pixel with BT.601 coefficients, the inverse of the
// default decode matrix. It is used to synthesize test content.
func RGBToYUV(r, g, b byte, full bool) (y, u, v byte) {
	R, G, B := int32(r), int32(g), int32(b)
	if full {
		y = clamp((77*R + 150*G + 29*B + 128) >> 8)
		u = clamp(((-43*R - 85*G + 128*B + 128) >> 8) + 128)
		v = clamp(((128*R - 107*G - 21*B + 128) >> 8) + 128)
		return
	}
	y = clamp(((66*R + 129*G + 25*B + 128) >> 8) + 16)
	u = clamp(((-38*R - 74*G + 112*B + 128) >> 8) + 128)
	v = clamp(((112*R - 94*G - 18*B + 128) >> 8) + 128)
	return
}
