//////////////////////////////////////////////////////////////////////////////
//
// Config contains the defaults a Provider starts with
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohacap

import (
	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/queue"
)

// DefaultPoolCapacity is the number of frames a provider keeps for reuse.
const DefaultPoolCapacity = 15

type Config struct {
	// Frames kept for Grab before the oldest is dropped.
	QueueCapacity int

	// Frames kept in the pool for reuse.
	PoolCapacity int

	// Pixel format of delivered frames. Unknown delivers frames in whatever
	// format the device produced.
	OutputFormat PixelFormat

	// Matrix and range for YUV to RGB conversion. A range carried by the
	// source pixel format takes precedence.
	ConvertFlag ConvertFlag

	Orientation Orientation

	// Requested capture shape. Zero values let the device decide.
	Width, Height int
	FrameRate     float64

	// Native format to request from the device.
	InternalFormat PixelFormat
}

func DefaultConfig() Config {
	return Config{
		QueueCapacity: queue.DefaultCapacity,
		PoolCapacity:  DefaultPoolCapacity,
		OutputFormat:  BGR24,
		ConvertFlag:   color.DefaultConvertFlag,
		Orientation:   TopToBottom,
	}
}
