//go:build ffmpeg
// +build ffmpeg

package media

import (
	"image"
	"io"
	"os"
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/nareix/joy4/cgo/ffmpeg"
	"github.com/nareix/joy4/format/mp4"
	"github.com/pkg/errors"
)

func init() {
	registerDecoder(openMP4, ".mp4", ".mov", ".m4v")
}

// mp4Decoder demuxes with joy4 and decodes with libavcodec. Decoded pictures
// are not copied: the frame planes point into the AVFrame, which is freed
// when the frame returns to the pool.
type mp4Decoder struct {
	file    *os.File
	demuxer *mp4.Demuxer
	dec     *ffmpeg.VideoDecoder

	probe mp4Info
	si    streamInfo
	pos   int64

	// After a seek, pictures before this time are decoded and discarded.
	skipUntil time.Duration
}

func openMP4(path string) (decoder, error) {
	probe, err := probeMP4(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	demuxer := mp4.NewDemuxer(file)
	streams, err := demuxer.Streams()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "mp4")
	}
	dec, err := ffmpeg.NewVideoDecoder(streams[probe.stream])
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "ffmpeg %s decoder", probe.Codec)
	}

	return &mp4Decoder{
		file:    file,
		demuxer: demuxer,
		dec:     dec,
		probe:   probe,
		si: streamInfo{
			Width:     probe.Width,
			Height:    probe.Height,
			Format:    color.I420,
			FrameRate: probe.FrameRate,
			Frames:    probe.Frames,
		},
	}, nil
}

func (d *mp4Decoder) info() streamInfo { return d.si }

func (d *mp4Decoder) decode(f *frame.Frame) error {
	for {
		pkt, err := d.demuxer.ReadPacket()
		if err != nil {
			return err
		}
		if pkt.Idx != d.probe.stream {
			continue
		}

		img, err := d.dec.Decode(pkt.Data)
		if err != nil {
			return errors.Wrap(err, "ffmpeg")
		}
		if img == nil {
			// Decoder delay.
			continue
		}
		if pkt.Time < d.skipUntil {
			img.Free()
			continue
		}
		d.skipUntil = 0

		if err := attachPicture(f, &img.Image); err != nil {
			img.Free()
			return err
		}
		f.SetReleaseHook(img.Free)
		d.pos++
		return nil
	}
}

// attachPicture points f at the planes of a decoded 4:2:0 picture.
func attachPicture(f *frame.Frame, img *image.YCbCr) error {
	if img.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		return errors.Wrapf(ErrNotSupported, "chroma subsampling %v", img.SubsampleRatio)
	}
	f.Width, f.Height = img.Rect.Dx(), img.Rect.Dy()
	f.Format = color.I420
	f.Data = [3][]byte{img.Y, img.Cb, img.Cr}
	f.Stride = [3]int{img.YStride, img.CStride, img.CStride}
	f.SizeInBytes = len(img.Y) + len(img.Cb) + len(img.Cr)
	return nil
}

// The demuxer seeks to the nearest preceding key frame; the pictures in
// between are decoded so the reference chain stays intact.
func (d *mp4Decoder) seekFrame(i int64) error {
	t := time.Duration(float64(i) / d.si.FrameRate * float64(time.Second))
	if err := d.demuxer.SeekToTime(t); err != nil && err != io.EOF {
		return err
	}
	d.skipUntil = t
	d.pos = i
	return nil
}

func (d *mp4Decoder) position() int64 { return d.pos }

func (d *mp4Decoder) close() error {
	d.dec.Close()
	return d.file.Close()
}
