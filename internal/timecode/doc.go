// Package timecode generates MIDI Time Code.
//
// A Sequencer turns a start position and rate into per-frame message
// bursts; a Generator drives a Sequencer against the clock. Frame numbers
// are 0-based and 29.97 is counted as 30 frames per second without
// drop-frame correction.
//
// Byte layout (hours byte is 0rrhhhhh, rr the rate code):
//
//	full frame:    F0 7F 7F 01 01 hr mn sc fr F7
//	quarter frame: F1 0pppnnnn   p = piece 0..7, n = nibble
//
// Piece 0 carries the low nibble of fr, piece 1 its high nibble, and so on
// up to piece 7, the high nibble of hr.
package timecode
