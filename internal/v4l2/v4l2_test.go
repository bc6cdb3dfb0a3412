// +build linux,amd64

package v4l2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Request codes as defined by linux/videodev2.h on amd64.
func TestIoctlNumbers(t *testing.T) {
	assert.Equal(t, uint(0x80685600), vidiocQueryCap)
	assert.Equal(t, uint(0xc0405602), vidiocEnumFmt)
	assert.Equal(t, uint(0xc0d05605), vidiocSFmt)
	assert.Equal(t, uint(0xc0145608), vidiocReqBufs)
	assert.Equal(t, uint(0xc0585609), vidiocQueryBuf)
	assert.Equal(t, uint(0xc058560f), vidiocQBuf)
	assert.Equal(t, uint(0xc0585611), vidiocDQBuf)
	assert.Equal(t, uint(0x40045612), vidiocStreamOn)
	assert.Equal(t, uint(0x40045613), vidiocStreamOff)
	assert.Equal(t, uint(0xc0cc5616), vidiocSParm)
	assert.Equal(t, uint(0xc008561c), vidiocSCtrl)
	assert.Equal(t, uint(0xc02c564a), vidiocEnumFrameSizes)
}

func TestFourCC(t *testing.T) {
	assert.Equal(t, "YUYV", FourCC(PixelFormatYUYV))
	assert.Equal(t, "NV12", FourCC(PixelFormatNV12))
	assert.Equal(t, "MJPG", FourCC(PixelFormatMJPEG))
	assert.Equal(t, uint32(0x56595559), PixelFormatYUYV)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "uvcvideo", cString([]byte("uvcvideo\x00\x00junk")))
	assert.Equal(t, "full", cString([]byte("full")))
}
