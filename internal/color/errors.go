package color

import (
	errors "golang.org/x/xerrors"
)

var (
	// ErrUnsupportedConversion is returned for source/destination pairs the
	// converter has no kernel for. Nothing is written in that case.
	ErrUnsupportedConversion = errors.New("unsupported pixel format conversion")

	errShortPlane = errors.New("plane too small for image")
	errBadSize    = errors.New("invalid image size")
)

// Unsupported wraps ErrUnsupportedConversion with the format pair.
func Unsupported(from, to PixelFormat) error {
	return errors.Errorf("%v -> %v: %w", from, to, ErrUnsupportedConversion)
}
