package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/mp4"
	"github.com/pkg/errors"
)

// mp4Info describes the first video stream of an MP4 container.
type mp4Info struct {
	Codec         string
	Width, Height int
	Frames        int64
	FrameRate     float64
	Duration      time.Duration

	// Demuxer stream index of the video stream.
	stream int8
}

func isMP4(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v":
		return true
	}
	return false
}

// probeMP4 scans the container's packets to count video frames. MP4 headers
// carry a duration but no reliable frame count, so the scan is cached.
func probeMP4(path string) (mp4Info, error) {
	v, err := cached("mp4:"+path, func() (interface{}, error) {
		return scanMP4(path)
	})
	if err != nil {
		return mp4Info{}, err
	}
	return v.(mp4Info), nil
}

func scanMP4(path string) (mp4Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return mp4Info{}, err
	}
	defer file.Close()

	demuxer := mp4.NewDemuxer(file)
	streams, err := demuxer.Streams()
	if err != nil {
		return mp4Info{}, errors.Wrap(err, "mp4")
	}

	info := mp4Info{stream: -1}
	for i, s := range streams {
		if !s.Type().IsVideo() {
			log.Verbose("%s: skipping %v stream", path, s.Type())
			continue
		}
		vc, ok := s.(av.VideoCodecData)
		if !ok {
			continue
		}
		info.stream = int8(i)
		info.Codec = s.Type().String()
		info.Width, info.Height = vc.Width(), vc.Height()
		break
	}
	if info.stream < 0 {
		return mp4Info{}, errors.Wrapf(ErrNotSupported, "%s: no video stream", path)
	}

	var last time.Duration
	for {
		pkt, err := demuxer.ReadPacket()
		if err == io.EOF {
			break
		} else if err != nil {
			return mp4Info{}, errors.Wrap(err, "mp4")
		}
		if pkt.Idx != info.stream {
			continue
		}
		info.Frames++
		if pkt.Time > last {
			last = pkt.Time
		}
	}

	// Packet times are start times; the last frame lasts one frame period.
	if info.Frames > 1 && last > 0 {
		info.FrameRate = float64(info.Frames-1) / last.Seconds()
		info.Duration = last + time.Duration(float64(time.Second)/info.FrameRate)
	}
	log.Verbose("%s: %s %dx%d, %d frames @ %.3f fps", path, info.Codec, info.Width, info.Height, info.Frames, info.FrameRate)
	return info, nil
}
