package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/lanikai/alohacap"
	"github.com/lanikai/alohacap/internal/media"
)

func listDevices(names []string) {
	if len(names) == 0 {
		fmt.Println("No devices found")
		return
	}
	faint := color.New(color.Faint)
	for i, name := range names {
		if media.IsVirtual(name) {
			faint.Printf("%2d  %s\n", i, name)
		} else {
			fmt.Printf("%2d  %s\n", i, name)
		}
	}
}

func printDeviceInfo(info alohacap.DeviceInfo) {
	bold := color.New(color.Bold)
	bold.Println(info.Name)

	sizes := make([]string, len(info.Resolutions))
	for i, r := range info.Resolutions {
		sizes[i] = fmt.Sprintf("%dx%d", r.Width, r.Height)
	}
	fmt.Println("  resolutions:", strings.Join(sizes, " "))

	formats := make([]string, len(info.PixelFormats))
	for i, f := range info.PixelFormats {
		formats[i] = f.String()
	}
	fmt.Println("  formats:    ", strings.Join(formats, " "))
}
