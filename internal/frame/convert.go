package frame

import (
	"github.com/lanikai/alohacap/internal/color"
)

// Convert rewrites f into the requested pixel format. When flip is set the
// row order is reversed in the same pass and Orientation toggles. Output goes
// to an owned buffer distinct from the source planes; on error f is left
// exactly as it was.
func Convert(f *Frame, to color.PixelFormat, flip bool, flag color.ConvertFlag) error {
	from := f.Format
	w, h := f.Width, f.Height

	if from == to {
		if !flip {
			return nil
		}
		if !from.IsRGB() {
			return color.Unsupported(from, to)
		}
		stride := rgbStride(w, to)
		dst, idx := f.target(stride * h)
		if err := color.FlipRows(f.Plane(0), color.Plane{Data: dst, Stride: stride}, w*from.Channels(), h); err != nil {
			return err
		}
		f.commit(idx, to, [3][]byte{dst}, [3]int{stride}, flip)
		return nil
	}

	switch {
	case from.IsYUV() && to.IsRGB():
		return f.yuvToRGB(to, flip, flag.ForFormat(from))
	case from.IsYUV() && to.Base() == color.I420:
		if flip || from.IsFullRange() != to.IsFullRange() {
			return color.Unsupported(from, to)
		}
		return f.repackI420(to)
	case from.IsRGB() && to.IsRGB():
		stride := rgbStride(w, to)
		dst, idx := f.target(stride * h)
		if err := color.ShuffleFormat(f.Plane(0), from, color.Plane{Data: dst, Stride: stride}, to, w, h, flip); err != nil {
			return err
		}
		f.commit(idx, to, [3][]byte{dst}, [3]int{stride}, flip)
		return nil
	}
	return color.Unsupported(from, to)
}

// Row stride used for converted RGB-family output: 4-byte pixels are packed,
// 3-byte rows are padded to 32 bytes.
func rgbStride(w int, f color.PixelFormat) int {
	if f.Channels() == 4 {
		return w * 4
	}
	return (w*3 + 31) &^ 31
}

func (f *Frame) yuvToRGB(to color.PixelFormat, flip bool, flag color.ConvertFlag) error {
	w, h := f.Width, f.Height
	stride := rgbStride(w, to)
	dst, idx := f.target(stride * h)
	out := color.Plane{Data: dst, Stride: stride}

	var err error
	switch f.Format.Base() {
	case color.NV12:
		err = color.NV12ToRGB(f.Plane(0), f.Plane(1), out, to, w, h, flag, flip)
	case color.I420:
		err = color.I420ToRGB(f.Plane(0), f.Plane(1), f.Plane(2), out, to, w, h, flag, flip)
	case color.YUYV:
		err = color.YUYVToRGB(f.Plane(0), out, to, w, h, flag, flip)
	case color.UYVY:
		err = color.UYVYToRGB(f.Plane(0), out, to, w, h, flag, flip)
	default:
		err = color.Unsupported(f.Format, to)
	}
	if err != nil {
		return err
	}
	f.commit(idx, to, [3][]byte{dst}, [3]int{stride}, flip)
	return nil
}

func (f *Frame) repackI420(to color.PixelFormat) error {
	w, h := f.Width, f.Height
	strides, sizes := to.Layout(w, h)
	buf, idx := f.target(sizes[0] + sizes[1] + sizes[2])
	y := color.Plane{Data: buf[:sizes[0]], Stride: strides[0]}
	u := color.Plane{Data: buf[sizes[0] : sizes[0]+sizes[1]], Stride: strides[1]}
	v := color.Plane{Data: buf[sizes[0]+sizes[1]:], Stride: strides[2]}

	var err error
	switch f.Format.Base() {
	case color.YUYV:
		err = color.YUYVToI420(f.Plane(0), y, u, v, w, h)
	case color.UYVY:
		err = color.UYVYToI420(f.Plane(0), y, u, v, w, h)
	case color.NV12:
		err = color.NV12ToI420(f.Plane(0), f.Plane(1), y, u, v, w, h)
	default:
		err = color.Unsupported(f.Format, to)
	}
	if err != nil {
		return err
	}
	f.commit(idx, to, [3][]byte{y.Data, u.Data, v.Data}, strides, false)
	return nil
}

// target returns an owned buffer that does not hold the current planes.
func (f *Frame) target(size int) ([]byte, int) {
	idx := 1
	if f.owner == 1 {
		idx = 0
	}
	return f.buffer(idx, size), idx
}

func (f *Frame) commit(owner int, format color.PixelFormat, data [3][]byte, stride [3]int, flipped bool) {
	f.owner = owner
	f.Format = format
	f.Data = data
	f.Stride = stride
	f.SizeInBytes = 0
	for i := range data {
		f.SizeInBytes += len(data[i])
	}
	if flipped {
		if f.Orientation == color.TopToBottom {
			f.Orientation = color.BottomToTop
		} else {
			f.Orientation = color.TopToBottom
		}
	}
}
