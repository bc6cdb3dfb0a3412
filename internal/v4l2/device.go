// +build linux

// Package v4l2 captures raw frames from Video4Linux2 devices using memory
// mapped streaming I/O.
package v4l2

import (
	"os"
	"path/filepath"
	"sort"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultBuffers is the number of kernel buffers requested by Start.
const DefaultBuffers = 4

var (
	ErrNotCapture = errors.New("v4l2: not a streaming video capture device")
	ErrTimeout    = errors.New("v4l2: timed out waiting for frame")
)

// FrameSize is one supported resolution, or a range for stepwise devices.
type FrameSize struct {
	MinWidth, MaxWidth, StepWidth    uint32
	MinHeight, MaxHeight, StepHeight uint32
}

// Format is the negotiated capture format.
type Format struct {
	Width        int
	Height       int
	PixelFormat  uint32
	BytesPerLine int
	SizeImage    int
}

// A Device is an open V4L2 character device.
type Device struct {
	// Device path, usually "/dev/video0".
	path string

	// File descriptor of v4l2 device.
	fd int

	// Card name reported by the driver.
	card string

	// Memory-mapped kernel buffers, valid between Start and Stop.
	mmap [][]byte
}

// ListDevices returns the paths of video capture devices, in numeric order.
func ListDevices() []string {
	paths, _ := filepath.Glob("/dev/video*")
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i] < paths[j]
	})

	var out []string
	for _, p := range paths {
		dev, err := Open(p)
		if err != nil {
			continue
		}
		dev.Close()
		out = append(out, p)
	}
	return out
}

// Open opens path and checks that it supports streaming capture.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	dev := &Device{path: path, fd: fd}

	var caps capability
	if err := dev.ioctl(vidiocQueryCap, unsafe.Pointer(&caps)); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "%s: VIDIOC_QUERYCAP", path)
	}
	c := caps.capabilities
	if c&capDeviceCaps != 0 {
		c = caps.deviceCaps
	}
	if c&capVideoCapture == 0 || c&capStreaming == 0 {
		unix.Close(fd)
		return nil, errors.Wrap(ErrNotCapture, path)
	}
	dev.card = cString(caps.card[:])
	return dev, nil
}

// Path returns the device path.
func (dev *Device) Path() string {
	return dev.path
}

// Card returns the human readable device name.
func (dev *Device) Card() string {
	return dev.card
}

func (dev *Device) Close() error {
	if dev.mmap != nil {
		dev.Stop()
	}
	return unix.Close(dev.fd)
}

func (dev *Device) ioctl(request uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(
			unix.SYS_IOCTL,
			uintptr(dev.fd),
			uintptr(request),
			uintptr(arg),
		)
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

// PixelFormats enumerates the fourcc codes the device can capture.
func (dev *Device) PixelFormats() []uint32 {
	var out []uint32
	for i := uint32(0); ; i++ {
		desc := fmtdesc{index: i, typ: bufTypeVideoCapture}
		if err := dev.ioctl(vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
			return out
		}
		out = append(out, desc.pixelformat)
	}
}

// FrameSizes enumerates the resolutions supported for a pixel format.
func (dev *Device) FrameSizes(pixelFormat uint32) []FrameSize {
	var out []FrameSize
	for i := uint32(0); ; i++ {
		e := frmsizeenum{index: i, pixelFormat: pixelFormat}
		if err := dev.ioctl(vidiocEnumFrameSizes, unsafe.Pointer(&e)); err != nil {
			return out
		}
		u := e.union[:]
		switch e.typ {
		case frmsizeTypeDiscrete:
			w, h := nativeEndian.Uint32(u[0:]), nativeEndian.Uint32(u[4:])
			out = append(out, FrameSize{MinWidth: w, MaxWidth: w, MinHeight: h, MaxHeight: h})
		case frmsizeTypeContinuous, frmsizeTypeStepwise:
			out = append(out, FrameSize{
				MinWidth:   nativeEndian.Uint32(u[0:]),
				MaxWidth:   nativeEndian.Uint32(u[4:]),
				StepWidth:  nativeEndian.Uint32(u[8:]),
				MinHeight:  nativeEndian.Uint32(u[12:]),
				MaxHeight:  nativeEndian.Uint32(u[16:]),
				StepHeight: nativeEndian.Uint32(u[20:]),
			})
			// Stepwise sizes are reported as a single entry.
			return out
		}
	}
}

// SetFormat requests a capture format. The driver may adjust it; the
// negotiated format is returned.
func (dev *Device) SetFormat(width, height int, pixelFormat uint32) (Format, error) {
	f := format{typ: bufTypeVideoCapture}
	pix := (*pixFormat)(unsafe.Pointer(&f.union.data[0]))
	pix.width = uint32(width)
	pix.height = uint32(height)
	pix.pixelformat = pixelFormat
	pix.field = fieldAny

	if err := dev.ioctl(vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, errors.Wrapf(err, "%s: VIDIOC_S_FMT %dx%d %s", dev.path, width, height, FourCC(pixelFormat))
	}
	return Format{
		Width:        int(pix.width),
		Height:       int(pix.height),
		PixelFormat:  pix.pixelformat,
		BytesPerLine: int(pix.bytesperline),
		SizeImage:    int(pix.sizeimage),
	}, nil
}

// SetFrameRate requests a capture rate and returns the rate the driver chose.
func (dev *Device) SetFrameRate(fps float64) (float64, error) {
	p := streamparm{typ: bufTypeVideoCapture}
	cp := (*captureparm)(unsafe.Pointer(&p.parm[0]))
	cp.timeperframe = fract{numerator: 1000, denominator: uint32(fps*1000 + 0.5)}
	if err := dev.ioctl(vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return 0, errors.Wrapf(err, "%s: VIDIOC_S_PARM", dev.path)
	}
	return dev.FrameRate(), nil
}

// FrameRate returns the current capture rate, or 0 if unknown.
func (dev *Device) FrameRate() float64 {
	p := streamparm{typ: bufTypeVideoCapture}
	if err := dev.ioctl(vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return 0
	}
	cp := (*captureparm)(unsafe.Pointer(&p.parm[0]))
	if cp.timeperframe.numerator == 0 {
		return 0
	}
	return float64(cp.timeperframe.denominator) / float64(cp.timeperframe.numerator)
}

// SetFlip sets the hardware mirror controls, where supported.
func (dev *Device) SetFlip(horizontal, vertical bool) error {
	if err := dev.setControl(cidHFlip, horizontal); err != nil {
		return err
	}
	return dev.setControl(cidVFlip, vertical)
}

func (dev *Device) setControl(id uint32, on bool) error {
	ctrl := control{id: id}
	if on {
		ctrl.value = 1
	}
	return dev.ioctl(vidiocSCtrl, unsafe.Pointer(&ctrl))
}

// Request specified number of kernel buffers memory-mapped to user-space.
func (dev *Device) requestBuffers(n int) (int, error) {
	rb := requestbuffers{
		count:  uint32(n),
		typ:    bufTypeVideoCapture,
		memory: memoryMMAP,
	}
	err := dev.ioctl(vidiocReqBufs, unsafe.Pointer(&rb))
	return int(rb.count), err
}

// Query buffer parameters.
func (dev *Device) queryBuffer(n uint32) (length, offset uint32, err error) {
	qb := buffer{
		index:  n,
		typ:    bufTypeVideoCapture,
		memory: memoryMMAP,
	}
	if err = dev.ioctl(vidiocQueryBuf, unsafe.Pointer(&qb)); err != nil {
		return
	}
	return qb.length, nativeEndian.Uint32(qb.m[0:4]), nil
}

func (dev *Device) mapMemory(n int) error {
	count, err := dev.requestBuffers(n)
	if err != nil {
		return errors.Wrapf(err, "%s: VIDIOC_REQBUFS", dev.path)
	}
	if count < 1 {
		return errors.Errorf("%s: driver granted no buffers", dev.path)
	}

	for i := 0; i < count; i++ {
		length, offset, err := dev.queryBuffer(uint32(i))
		if err != nil {
			dev.unmapMemory()
			return errors.Wrapf(err, "%s: VIDIOC_QUERYBUF", dev.path)
		}
		mem, err := unix.Mmap(dev.fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			dev.unmapMemory()
			return errors.Wrapf(err, "%s: mmap", dev.path)
		}
		dev.mmap = append(dev.mmap, mem)
	}
	return nil
}

func (dev *Device) unmapMemory() error {
	for _, mem := range dev.mmap {
		unix.Munmap(mem)
	}
	dev.mmap = nil
	_, err := dev.requestBuffers(0)
	return err
}

func (dev *Device) enqueue(index int) error {
	qbuf := buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMMAP,
		index:  uint32(index),
	}
	return dev.ioctl(vidiocQBuf, unsafe.Pointer(&qbuf))
}

func (dev *Device) dequeue() (index, n int, err error) {
	dqbuf := buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMMAP,
	}
	err = dev.ioctl(vidiocDQBuf, unsafe.Pointer(&dqbuf))
	return int(dqbuf.index), int(dqbuf.bytesused), err
}

// Start maps numBuffers kernel buffers and enables streaming.
func (dev *Device) Start(numBuffers int) error {
	if dev.mmap != nil {
		return nil
	}
	if numBuffers < 1 {
		numBuffers = DefaultBuffers
	}
	if err := dev.mapMemory(numBuffers); err != nil {
		return err
	}

	for i := range dev.mmap {
		if err := dev.enqueue(i); err != nil {
			dev.unmapMemory()
			return errors.Wrapf(err, "%s: VIDIOC_QBUF", dev.path)
		}
	}

	typ := bufTypeVideoCapture
	if err := dev.ioctl(vidiocStreamOn, unsafe.Pointer(&typ)); err != nil {
		dev.unmapMemory()
		return errors.Wrapf(err, "%s: VIDIOC_STREAMON", dev.path)
	}
	return nil
}

// Stop disables streaming and releases the kernel buffers.
func (dev *Device) Stop() error {
	if dev.mmap == nil {
		return nil
	}
	// Disable stream (dequeues any outstanding buffers as well).
	typ := bufTypeVideoCapture
	err := dev.ioctl(vidiocStreamOff, unsafe.Pointer(&typ))
	if uerr := dev.unmapMemory(); err == nil {
		err = uerr
	}
	return err
}

// ReadFrame waits up to timeout for a filled buffer and passes its contents
// to fn. The slice is only valid during the call; the buffer is handed back
// to the driver as soon as fn returns.
func (dev *Device) ReadFrame(timeout time.Duration, fn func(data []byte)) error {
	if dev.mmap == nil {
		return errors.New("v4l2: capture not started")
	}
	if err := dev.wait(timeout); err != nil {
		return err
	}

	index, n, err := dev.dequeue()
	if err == unix.EAGAIN {
		return ErrTimeout
	}
	if err != nil {
		return errors.Wrapf(err, "%s: VIDIOC_DQBUF", dev.path)
	}
	if index < 0 || index >= len(dev.mmap) {
		return errors.Errorf("%s: driver returned buffer %d of %d", dev.path, index, len(dev.mmap))
	}
	if n > len(dev.mmap[index]) {
		n = len(dev.mmap[index])
	}

	fn(dev.mmap[index][:n])
	return dev.enqueue(index)
}

// Wait until the device is readable.
func (dev *Device) wait(timeout time.Duration) error {
	for {
		var fds unix.FdSet
		fds.Set(dev.fd)
		tv := unix.NsecToTimeval(timeout.Nanoseconds())

		n, err := unix.Select(dev.fd+1, &fds, nil, nil, &tv)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return errors.Wrapf(err, "%s: select", dev.path)
		case n == 0:
			return ErrTimeout
		}
		return nil
	}
}
