package timecode

import "errors"

var (
	// ErrUnsupportedRate is returned for frame rates other than 24, 25,
	// 29.97 and 30.
	ErrUnsupportedRate = errors.New("timecode: unsupported frame rate")

	// ErrInvalidTimecode is returned for malformed or out-of-range
	// HH:MM:SS:FF strings.
	ErrInvalidTimecode = errors.New("timecode: invalid timecode")
)
