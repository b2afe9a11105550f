package midi

// Status bytes.
const (
	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusControlChange = 0xB0
	statusProgramChange = 0xC0
)

// Channel mode controllers used by Panic.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

func data(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	}
	return byte(v)
}

func channel(ch int) byte {
	switch {
	case ch < 0:
		return 0
	case ch > 15:
		return 15
	}
	return byte(ch)
}

// NoteOn returns a note-on message. Values are clamped to their ranges.
func NoteOn(ch, note, velocity int) []byte {
	return []byte{statusNoteOn | channel(ch), data(note), data(velocity)}
}

// NoteOff returns a note-off message with zero release velocity.
func NoteOff(ch, note int) []byte {
	return []byte{statusNoteOff | channel(ch), data(note), 0}
}

// ControlChange returns a control change message.
func ControlChange(ch, controller, value int) []byte {
	return []byte{statusControlChange | channel(ch), data(controller), data(value)}
}

// ProgramChange returns a program change message.
func ProgramChange(ch, program int) []byte {
	return []byte{statusProgramChange | channel(ch), data(program)}
}

// Panic silences every channel: all sound off then all notes off.
func Panic() [][]byte {
	msgs := make([][]byte, 0, 32)
	for ch := 0; ch < 16; ch++ {
		msgs = append(msgs,
			ControlChange(ch, ccAllSoundOff, 0),
			ControlChange(ch, ccAllNotesOff, 0),
		)
	}
	return msgs
}
