// +build !linux

// Package v4l2 captures raw frames from Video4Linux2 devices. It is only
// functional on Linux.
package v4l2
