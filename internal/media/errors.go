// Copyright 2019 Lanikai Labs LLC. All rights reserved.

package media

import "github.com/pkg/errors"

var (
	ErrNotFound      = errors.New("device not found")
	ErrNotSupported  = errors.New("not supported")
	ErrNotOpened     = errors.New("source not opened")
	ErrAlreadyOpened = errors.New("source already opened")
	ErrBadSpeed      = errors.New("playback speed must not be negative")
)
