package y4m

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Writer encodes I420 frames as a YUV4MPEG2 stream.
type Writer struct {
	Header

	w      *bufio.Writer
	zw     *zstd.Encoder
	file   *os.File
	frames int64
}

// NewWriter writes the stream header for h to w.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if h.Width <= 0 || h.Height <= 0 {
		return nil, errors.Errorf("y4m: invalid size %dx%d", h.Width, h.Height)
	}
	if h.Colorspace != "" && !supportedColorspace(h.Colorspace) {
		return nil, errors.Errorf("y4m: unsupported colorspace C%s", h.Colorspace)
	}
	bw := bufio.NewWriterSize(w, readBufferSize)
	if _, err := bw.WriteString(h.String() + "\n"); err != nil {
		return nil, err
	}
	return &Writer{Header: h, w: bw}, nil
}

// Create creates path and writes the stream header. A .zst suffix selects
// zstd compression.
func Create(path string, h Header) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var dst io.Writer = file
	var zw *zstd.Encoder
	if IsCompressed(path) {
		zw, err = zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			file.Close()
			return nil, errors.Wrap(err, "zstd")
		}
		dst = zw
	}

	w, err := NewWriter(dst, h)
	if err != nil {
		if zw != nil {
			zw.Close()
		}
		file.Close()
		return nil, err
	}
	w.zw, w.file = zw, file
	return w, nil
}

// WriteFrame writes one frame from I420 planes with the given strides.
func (w *Writer) WriteFrame(data [3][]byte, stride [3]int) error {
	cw, ch := (w.Width+1)/2, (w.Height+1)/2
	widths := [3]int{w.Width, cw, cw}
	heights := [3]int{w.Height, ch, ch}

	for i := 0; i < 3; i++ {
		need := (heights[i]-1)*stride[i] + widths[i]
		if stride[i] < widths[i] || len(data[i]) < need {
			return errors.Errorf("y4m: plane %d too small for %dx%d", i, w.Width, w.Height)
		}
	}

	if _, err := w.w.WriteString(frameMagic + "\n"); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		for y := 0; y < heights[i]; y++ {
			off := y * stride[i]
			if _, err := w.w.Write(data[i][off : off+widths[i]]); err != nil {
				return err
			}
		}
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int64 {
	return w.frames
}

// Close flushes buffered data and closes the file, if Create opened one.
func (w *Writer) Close() error {
	err := w.w.Flush()
	if w.zw != nil {
		if cerr := w.zw.Close(); err == nil {
			err = cerr
		}
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
