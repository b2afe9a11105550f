package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Rate is an MTC frame rate. Its value is the two-bit rate code carried in
// the hours byte.
type Rate byte

const (
	Rate24   Rate = 0
	Rate25   Rate = 1
	Rate2997 Rate = 2
	Rate30   Rate = 3
)

// DefaultRate is used when a start request names no rate.
const DefaultRate = Rate24

// ParseRate maps a frames-per-second figure to a Rate.
func ParseRate(fps float64) (Rate, error) {
	switch {
	case fps == 24:
		return Rate24, nil
	case fps == 25:
		return Rate25, nil
	case math.Abs(fps-29.97) < 0.005:
		return Rate2997, nil
	case fps == 30:
		return Rate30, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedRate, fps)
}

// FramesPerSecond is the frame count per second used for counting. 29.97
// counts 30 frames; no drop-frame correction is applied.
func (r Rate) FramesPerSecond() int {
	switch r {
	case Rate24:
		return 24
	case Rate25:
		return 25
	default:
		return 30
	}
}

// FrameDuration is the wall-clock length of one frame.
func (r Rate) FrameDuration() time.Duration {
	if r == Rate2997 {
		return time.Second * 1001 / 30000
	}
	return time.Second / time.Duration(r.FramesPerSecond())
}

func (r Rate) String() string {
	switch r {
	case Rate24:
		return "24"
	case Rate25:
		return "25"
	case Rate2997:
		return "29.97"
	case Rate30:
		return "30"
	}
	return "unknown"
}

// Timecode is a position in hours, minutes, seconds and 0-based frames.
type Timecode struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
}

// ParseTimecode parses "HH:MM:SS:FF". Missing trailing fields are zero, so
// "01:00" is one hour. A ';' frame separator is accepted.
func ParseTimecode(s string) (Timecode, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ";", ":")
	if s == "" {
		return Timecode{}, fmt.Errorf("%w: empty", ErrInvalidTimecode)
	}
	parts := strings.Split(s, ":")
	if len(parts) > 4 {
		return Timecode{}, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	var fields [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Timecode{}, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
		}
		fields[i] = n
	}

	tc := Timecode{Hours: fields[0], Minutes: fields[1], Seconds: fields[2], Frames: fields[3]}
	if tc.Hours > 23 || tc.Minutes > 59 || tc.Seconds > 59 || tc.Frames > 29 {
		return Timecode{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimecode, s)
	}
	return tc, nil
}

// ValidFor reports ErrInvalidTimecode when tc's frame number does not exist
// at rate r, e.g. frame 27 at 24 fps.
func (tc Timecode) ValidFor(r Rate) error {
	if tc.Frames >= r.FramesPerSecond() {
		return fmt.Errorf("%w: frame %d at %s", ErrInvalidTimecode, tc.Frames, r)
	}
	return nil
}

func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

// Advance returns tc moved forward one frame at rate r, rolling over frames,
// seconds, minutes and hours (24 hours wraps to zero).
func (tc Timecode) Advance(r Rate) Timecode {
	tc.Frames++
	if tc.Frames >= r.FramesPerSecond() {
		tc.Frames = 0
		tc.Seconds++
	}
	if tc.Seconds >= 60 {
		tc.Seconds = 0
		tc.Minutes++
	}
	if tc.Minutes >= 60 {
		tc.Minutes = 0
		tc.Hours++
	}
	if tc.Hours >= 24 {
		tc.Hours = 0
	}
	return tc
}

// bytes returns the four MTC data bytes: 0rrhhhhh, minutes, seconds, frames.
func (tc Timecode) bytes(r Rate) [4]byte {
	return [4]byte{
		byte(r)<<5 | byte(tc.Hours&0x1f),
		byte(tc.Minutes & 0x3f),
		byte(tc.Seconds & 0x3f),
		byte(tc.Frames & 0x1f),
	}
}
