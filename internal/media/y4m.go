package media

import (
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/y4m"
)

func init() {
	registerDecoder(openY4M, ".y4m", ".y4m.zst")
}

// y4mDecoder reads raw frames straight out of a YUV4MPEG2 stream.
type y4mDecoder struct {
	file *y4m.File
	si   streamInfo
}

func openY4M(path string) (decoder, error) {
	file, err := y4m.Open(path)
	if err != nil {
		return nil, err
	}
	frames, err := file.FrameCount()
	if err != nil {
		file.Close()
		return nil, err
	}
	h := file.Header
	return &y4mDecoder{
		file: file,
		si: streamInfo{
			Width:     h.Width,
			Height:    h.Height,
			Format:    h.Format(),
			FrameRate: h.FrameRate(),
			Frames:    frames,
		},
	}, nil
}

func (d *y4mDecoder) info() streamInfo { return d.si }

func (d *y4mDecoder) decode(f *frame.Frame) error {
	f.Width, f.Height, f.Format = d.si.Width, d.si.Height, d.si.Format
	buf := f.RawBuffer(d.file.FrameSize())
	if err := d.file.ReadFrame(buf); err != nil {
		return err
	}
	f.SetPlanes(buf)
	return nil
}

func (d *y4mDecoder) seekFrame(i int64) error { return d.file.SeekFrame(i) }
func (d *y4mDecoder) position() int64         { return d.file.Index() }
func (d *y4mDecoder) close() error            { return d.file.Close() }
