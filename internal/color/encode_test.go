package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRGBToYUVInvertsDecode(t *testing.T) {
	colors := [][3]byte{
		{0, 0, 0}, {255, 255, 255}, {128, 128, 128},
		{255, 0, 0}, {0, 255, 0}, {0, 0, 255},
	}
	for _, full := range []bool{false, true} {
		flag := BT601 | VideoRange
		if full {
			flag = BT601 | FullRange
		}
		m := matrixFor(flag)
		for _, c := range colors {
			y, u, v := RGBToYUV(c[0], c[1], c[2], full)
			r, g, b := m.rgb(y, u, v)
			assert.InDelta(t, c[0], r, 3, "%v full=%v", c, full)
			assert.InDelta(t, c[1], g, 3, "%v full=%v", c, full)
			assert.InDelta(t, c[2], b, 3, "%v full=%v", c, full)
		}
	}
}

func TestRGBToYUVStudioRange(t *testing.T) {
	y, u, v := RGBToYUV(0, 0, 0, false)
	assert.Equal(t, [3]byte{16, 128, 128}, [3]byte{y, u, v})
	y, u, v = RGBToYUV(255, 255, 255, false)
	assert.Equal(t, [3]byte{235, 128, 128}, [3]byte{y, u, v})
}
