package timecode

const (
	statusSysEx        = 0xF0
	statusEndSysEx     = 0xF7
	statusQuarterFrame = 0xF1

	// FullFrameInterval is how many ticks separate full-frame messages.
	FullFrameInterval = 60

	// QuarterFramesPerTick is the number of quarter-frame pieces per tick.
	QuarterFramesPerTick = 8
)

// FullFrame returns the SysEx full-frame message for tc.
func FullFrame(tc Timecode, r Rate) []byte {
	b := tc.bytes(r)
	return []byte{statusSysEx, 0x7F, 0x7F, 0x01, 0x01, b[0], b[1], b[2], b[3], statusEndSysEx}
}

// QuarterFrame returns quarter-frame piece p (0..7) for tc. Piece 0 carries
// the low nibble of the frames byte, piece 7 the high nibble of the
// rate/hours byte.
func QuarterFrame(tc Timecode, r Rate, piece int) []byte {
	b := tc.bytes(r)
	v := b[3-piece/2]
	var nibble byte
	if piece%2 == 0 {
		nibble = v & 0x0F
	} else {
		nibble = v >> 4
	}
	return []byte{statusQuarterFrame, byte(piece)<<4 | nibble}
}

// Sequencer produces the MTC message stream one tick at a time. It is not
// safe for concurrent use; a Generator run owns one.
type Sequencer struct {
	tc    Timecode
	rate  Rate
	ticks uint64
}

// NewSequencer starts a sequence at tc.
func NewSequencer(tc Timecode, r Rate) *Sequencer {
	return &Sequencer{tc: tc, rate: r}
}

// Next advances one frame and returns the messages for that tick: one
// full-frame message on every FullFrameInterval-th tick (the first
// included), otherwise eight quarter-frames.
func (s *Sequencer) Next() [][]byte {
	s.tc = s.tc.Advance(s.rate)
	n := s.ticks
	s.ticks++

	if n%FullFrameInterval == 0 {
		return [][]byte{FullFrame(s.tc, s.rate)}
	}
	msgs := make([][]byte, QuarterFramesPerTick)
	for p := range msgs {
		msgs[p] = QuarterFrame(s.tc, s.rate, p)
	}
	return msgs
}

// Timecode returns the position of the last emitted tick.
func (s *Sequencer) Timecode() Timecode { return s.tc }

// Rate returns the sequence rate.
func (s *Sequencer) Rate() Rate { return s.rate }

// Ticks returns how many ticks have been emitted.
func (s *Sequencer) Ticks() uint64 { return s.ticks }
