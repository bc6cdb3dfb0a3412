package y4m

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const readBufferSize = 64 * 1024

// Reader decodes frames from a YUV4MPEG2 stream.
type Reader struct {
	Header

	r *bufio.Reader

	// Length of the stream header line, including the newline.
	headerSize int64

	// Index of the next frame to be read.
	index int64
}

// NewReader parses the stream header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	h, n, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{Header: h, r: br, headerSize: int64(n)}, nil
}

// ReadFrame reads the next frame payload into buf, which must hold at least
// FrameSize bytes. It returns io.EOF at the end of the stream and
// io.ErrUnexpectedEOF for a truncated frame.
func (r *Reader) ReadFrame(buf []byte) error {
	size := r.FrameSize()
	if len(buf) < size {
		return io.ErrShortBuffer
	}
	if err := r.frameHeader(); err != nil {
		return err
	}
	if _, err := io.ReadFull(r.r, buf[:size]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	r.index++
	return nil
}

// Skip discards the next n frames.
func (r *Reader) Skip(n int64) error {
	size := r.FrameSize()
	for i := int64(0); i < n; i++ {
		if err := r.frameHeader(); err != nil {
			return err
		}
		if _, err := r.r.Discard(size); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		r.index++
	}
	return nil
}

// Index returns the index of the next frame to be read.
func (r *Reader) Index() int64 {
	return r.index
}

func (r *Reader) frameHeader() error {
	line, err := readLine(r.r)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, frameMagic) {
		return ErrBadFrameHeader
	}
	return nil
}

// IsCompressed reports whether path names a zstd-wrapped stream.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

// File is a Reader over a file on disk that can also count and seek frames.
type File struct {
	*Reader

	path string
	file *os.File
	zr   *zstd.Decoder

	// Bytes per frame including the frame header, when every frame header is
	// the bare "FRAME\n". Zero otherwise.
	stride int64
	frames int64
}

// Open opens a .y4m or .y4m.zst file.
func Open(path string) (*File, error) {
	f := &File{path: path, frames: -1}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) open() error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}

	var src io.Reader = file
	var zr *zstd.Decoder
	if IsCompressed(f.path) {
		if zr, err = zstd.NewReader(file); err != nil {
			file.Close()
			return errors.Wrap(err, "zstd")
		}
		src = zr
	}

	r, err := NewReader(src)
	if err != nil {
		if zr != nil {
			zr.Close()
		}
		file.Close()
		return errors.Wrapf(err, "%s", f.path)
	}

	f.close()
	f.Reader, f.file, f.zr = r, file, zr
	return nil
}

// FrameCount returns the number of complete frames in the file.
func (f *File) FrameCount() (int64, error) {
	if f.frames >= 0 {
		return f.frames, nil
	}

	if f.zr == nil {
		info, err := f.file.Stat()
		if err != nil {
			return 0, err
		}
		stride := int64(len(frameMagic)+1) + int64(f.FrameSize())
		if payload := info.Size() - f.headerSize; payload%stride == 0 {
			f.stride = stride
			f.frames = payload / stride
			return f.frames, nil
		}
	}

	// Frame headers carry parameters or the stream is compressed: scan.
	scan, err := Open(f.path)
	if err != nil {
		return 0, err
	}
	defer scan.Close()
	var n int64
	for {
		if err := scan.Skip(1); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return 0, err
		}
		n++
	}
	f.frames = n
	return n, nil
}

// SeekFrame positions the reader so the next frame read is frame i.
func (f *File) SeekFrame(i int64) error {
	if i < 0 {
		return errors.Errorf("y4m: negative frame index %d", i)
	}
	if _, err := f.FrameCount(); err != nil {
		return err
	}

	if f.stride > 0 {
		if _, err := f.file.Seek(f.headerSize+i*f.stride, io.SeekStart); err != nil {
			return err
		}
		f.r.Reset(f.file)
		f.index = i
		return nil
	}

	if i < f.index {
		if err := f.open(); err != nil {
			return err
		}
	}
	return f.Skip(i - f.index)
}

func (f *File) Close() error {
	return f.close()
}

func (f *File) close() error {
	if f.zr != nil {
		f.zr.Close()
		f.zr = nil
	}
	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}
