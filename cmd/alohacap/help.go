package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagInput          string
	flagWidth          int
	flagHeight         int
	flagFrameRate      float64
	flagFormat         string
	flagInternalFormat string
	flagFlip           bool
	flagNoConvert      bool
	flagFrames         int
	flagTimeout        int
	flagSpeed          float64
	flagSeek           float64
	flagBackend        string
	flagMatrix         string
	flagFullRange      bool
	flagLogLevel       string
	flagList           bool
	flagInfo           bool
	flagOutput         string
	flagServe          string
	flagCompress       bool
	flagTUI            bool
	flagHelp           bool
	flagVersion        bool
)

func init() {
	flag.StringVarP(&flagInput, "input", "i", "", "Video source")
	flag.IntVarP(&flagWidth, "width", "x", 0, "Capture width")
	flag.IntVarP(&flagHeight, "height", "y", 0, "Capture height")
	flag.Float64VarP(&flagFrameRate, "fps", "r", 0, "Capture frame rate")
	flag.StringVarP(&flagFormat, "format", "f", "BGR24", "Output pixel format")
	flag.StringVarP(&flagInternalFormat, "internal-format", "", "", "Native pixel format to request")
	flag.BoolVarP(&flagFlip, "flip", "", false, "Deliver RGB frames bottom row first")
	flag.BoolVarP(&flagNoConvert, "no-convert", "", false, "Deliver frames in the native format")
	flag.IntVarP(&flagFrames, "frames", "n", 0, "Frames to capture, 0 for no limit")
	flag.IntVarP(&flagTimeout, "timeout", "t", 1000, "Grab timeout, in milliseconds")
	flag.Float64VarP(&flagSpeed, "speed", "", 0, "File playback speed, 0 for unpaced")
	flag.Float64VarP(&flagSeek, "seek", "", 0, "File start position, in seconds")
	flag.StringVarP(&flagBackend, "backend", "", "auto", "Conversion backend")
	flag.StringVarP(&flagMatrix, "matrix", "", "bt601", "YUV matrix")
	flag.BoolVarP(&flagFullRange, "full-range", "", false, "Treat YUV as full range")
	flag.StringVarP(&flagLogLevel, "loglevel", "", "", "Logging level")

	flag.BoolVarP(&flagList, "list", "l", false, "List devices and exit")
	flag.BoolVarP(&flagInfo, "info", "", false, "Print device information and exit")
	flag.StringVarP(&flagOutput, "output", "o", "", "Record frames to a .y4m file")
	flag.StringVarP(&flagServe, "serve", "", "", "Relay frames over websocket")
	flag.BoolVarP(&flagCompress, "compress", "z", false, "Compress relayed frames")
	flag.BoolVarP(&flagTUI, "tui", "", false, "Show live statistics")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Video frame capture from cameras, files and test sources

Usage: alohacap [OPTION]...

Source:
  -i, --input=NAME         Device, file or test source (default: first device)
  -l, --list               List devices and exit
      --info               Print resolutions and formats of the source and exit
  -x, --width=NUM          Requested width
  -y, --height=NUM         Requested height
  -r, --fps=NUM            Requested frame rate
      --internal-format=FMT Native pixel format to request from the device
      --speed=NUM          File playback speed (default: 0, as fast as consumed)
      --seek=SEC           Start file playback at SEC seconds

Conversion:
  -f, --format=FMT         Output pixel format (default: BGR24)
      --no-convert         Deliver frames in the native format
      --flip               Deliver RGB frames bottom row first
      --matrix=NAME        bt601 or bt709 (default: bt601)
      --full-range         Treat YUV without a range as full range
      --backend=NAME       auto, cpu or parallel (default: auto)

Output:
  -n, --frames=NUM         Stop after NUM frames (default: no limit)
  -t, --timeout=MS         Grab timeout, in milliseconds (default: 1000)
  -o, --output=FILE        Record to FILE (.y4m or .y4m.zst)
      --serve=ADDR         Relay frames to websocket viewers at ADDR
  -z, --compress           Compress relayed frames with zstd
      --tui                Show live statistics

Miscellaneous:
      --loglevel=LEVEL     error, warn, info, verbose or 0-9
  -h, --help               Prints this help message and exits
  -v, --version            Prints version information and exits

Pixel formats: NV12 I420 YUYV UYVY RGB24 BGR24 RGBA32 BGRA32, with an F
suffix on YUV formats for full range.

Please report bugs to: aloha@lanikailabs.com`

//         _         _
//   __ _ | |  ___  | |__    __ _   ___   __ _  _ __
//  / _` || | / _ \ | '_ \  / _` | / __| / _` || '_ \
// | (_| || || (_) || | | || (_| || (__ | (_| || |_) |
//  \__,_||_| \___/ |_| |_| \__,_| \___| \__,_|| .__/
//                                              |_|
var banner = [][]string{
	{"        ", " _ ", "       ", " _     ", "       ", "      ", "        ", "       "},
	{"   __ _ ", "| |", "  ___  ", "| |__  ", "  __ _ ", "  ___ ", "   __ _ ", " _ __  "},
	{"  / _` |", "| |", " / _ \\ ", "| '_ \\ ", " / _` |", " / __|", "  / _` |", "| '_ \\ "},
	{" | (_| |", "| |", "| (_) |", "| | | |", "| (_| |", "| (__ ", " | (_| |", "| |_) |"},
	{"  \\__,_|", "|_|", " \\___/ ", "|_| |_|", " \\__,_|", " \\___|", "  \\__,_|", "| .__/ "},
	{"        ", "   ", "       ", "       ", "       ", "      ", "        ", "|_|    "},
}

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)
	letters := []*color.Color{r, y, b, y, r, b, r, y}

	for _, line := range banner {
		for i, segment := range line {
			letters[i].Print(segment)
		}
		fmt.Println()
	}

	fmt.Println(helpString)
}

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("alohacap", GitTag, GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
}
