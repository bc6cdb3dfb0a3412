// +build linux

package v4l2

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Pixel formats, as little-endian fourcc codes.
const (
	PixelFormatYUYV  uint32 = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	PixelFormatUYVY  uint32 = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	PixelFormatNV12  uint32 = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	PixelFormatYU12  uint32 = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24
	PixelFormatRGB24 uint32 = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24
	PixelFormatBGR24 uint32 = 'B' | 'G'<<8 | 'R'<<16 | '3'<<24
	PixelFormatMJPEG uint32 = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

const (
	capVideoCapture uint32 = 0x00000001
	capStreaming    uint32 = 0x04000000
	capDeviceCaps   uint32 = 0x80000000

	bufTypeVideoCapture uint32 = 1
	memoryMMAP          uint32 = 1
	fieldAny            uint32 = 0

	frmsizeTypeDiscrete   uint32 = 1
	frmsizeTypeContinuous uint32 = 2
	frmsizeTypeStepwise   uint32 = 3

	cidBase  uint32 = 0x00980900
	cidHFlip        = cidBase + 20
	cidVFlip        = cidBase + 21
)

// ioctl request encoding, see include/uapi/asm-generic/ioctl.h.
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uint {
	return uint(dir<<30 | size<<16 | uintptr('V')<<8 | nr)
}

var (
	vidiocQueryCap       = ioc(iocRead, 0, unsafe.Sizeof(capability{}))
	vidiocEnumFmt        = ioc(iocRead|iocWrite, 2, unsafe.Sizeof(fmtdesc{}))
	vidiocSFmt           = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(format{}))
	vidiocReqBufs        = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(requestbuffers{}))
	vidiocQueryBuf       = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(buffer{}))
	vidiocQBuf           = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(buffer{}))
	vidiocDQBuf          = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(buffer{}))
	vidiocStreamOn       = ioc(iocWrite, 18, 4)
	vidiocStreamOff      = ioc(iocWrite, 19, 4)
	vidiocGParm          = ioc(iocRead|iocWrite, 21, unsafe.Sizeof(streamparm{}))
	vidiocSParm          = ioc(iocRead|iocWrite, 22, unsafe.Sizeof(streamparm{}))
	vidiocSCtrl          = ioc(iocRead|iocWrite, 28, unsafe.Sizeof(control{}))
	vidiocEnumFrameSizes = ioc(iocRead|iocWrite, 74, unsafe.Sizeof(frmsizeenum{}))
)

var nativeEndian binary.ByteOrder = binary.LittleEndian

func init() {
	i := uint16(1)
	if (*[2]byte)(unsafe.Pointer(&i))[0] == 0 {
		nativeEndian = binary.BigEndian
	}
}

var nilPtr unsafe.Pointer

type capability struct {
	driver       [16]uint8
	card         [32]uint8
	busInfo      [32]uint8
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

type fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]uint8
	pixelformat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

type frmsizeenum struct {
	index       uint32
	pixelFormat uint32
	typ         uint32
	union       [24]uint8
	reserved    [2]uint32
}

// Union member alignment matches the kernel's pointer-aligned unions.
type formatUnion struct {
	data [200 - unsafe.Sizeof(nilPtr)]byte
	_    unsafe.Pointer
}

type format struct {
	typ   uint32
	union formatUnion
}

type pixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

type requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  timecode
	sequence  uint32
	memory    uint32
	m         [unsafe.Sizeof(nilPtr)]uint8
	length    uint32
	reserved2 uint32
	requestFd uint32
}

type fract struct {
	numerator   uint32
	denominator uint32
}

type captureparm struct {
	capability   uint32
	capturemode  uint32
	timeperframe fract
	extendedmode uint32
	readbuffers  uint32
	reserved     [4]uint32
}

type streamparm struct {
	typ  uint32
	parm [200]byte
}

type control struct {
	id    uint32
	value int32
}

func cString(c []byte) string {
	for i, b := range c {
		if b == 0 {
			return string(c[:i])
		}
	}
	return string(c)
}

// FourCC renders a pixel format code as text, e.g. "YUYV".
func FourCC(code uint32) string {
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	return string(b)
}
