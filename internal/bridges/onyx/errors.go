package onyx

import "errors"

var (
	// ErrNotConnected is returned when a command is sent while the telnet
	// session is down.
	ErrNotConnected = errors.New("onyx: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("onyx: client closed")

	// ErrMissingCuelist is returned when a trigger omits the cuelist.
	ErrMissingCuelist = errors.New("onyx: cuelist is required")

	// ErrNoHost is returned when no host is configured.
	ErrNoHost = errors.New("onyx: host is required")
)
