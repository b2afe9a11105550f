package timecode

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		fps     float64
		want    Rate
		wantErr bool
	}{
		{24, Rate24, false},
		{25, Rate25, false},
		{29.97, Rate2997, false},
		{30, Rate30, false},
		{60, 0, true},
		{0, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRate(tt.fps)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRate(%v) error = %v, wantErr %v", tt.fps, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnsupportedRate) {
			t.Errorf("ParseRate(%v) error = %v, want ErrUnsupportedRate", tt.fps, err)
		}
		if got != tt.want {
			t.Errorf("ParseRate(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestRate_Counting(t *testing.T) {
	if Rate2997.FramesPerSecond() != 30 {
		t.Errorf("29.97 counts %d frames, want 30", Rate2997.FramesPerSecond())
	}
	if Rate25.FrameDuration() != 40*time.Millisecond {
		t.Errorf("25fps frame = %v, want 40ms", Rate25.FrameDuration())
	}
	if d := Rate2997.FrameDuration(); d <= Rate30.FrameDuration() {
		t.Errorf("29.97 frame %v should be longer than 30fps frame %v", d, Rate30.FrameDuration())
	}
}

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in      string
		want    Timecode
		wantErr bool
	}{
		{in: "01:00:00:00", want: Timecode{Hours: 1}},
		{in: "10:59:58:23", want: Timecode{10, 59, 58, 23}},
		{in: "00:00:10;15", want: Timecode{Seconds: 10, Frames: 15}},
		{in: " 02:30 ", want: Timecode{Hours: 2, Minutes: 30}},
		{in: "", wantErr: true},
		{in: "24:00:00:00", wantErr: true},
		{in: "00:60:00:00", wantErr: true},
		{in: "00:00:00:30", wantErr: true},
		{in: "aa:bb:cc:dd", wantErr: true},
		{in: "1:2:3:4:5", wantErr: true},
		{in: "-1:00:00:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimecode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimecode) {
					t.Errorf("ParseTimecode(%q) error = %v, want ErrInvalidTimecode", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimecode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimecode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimecode_ValidFor(t *testing.T) {
	tests := []struct {
		frames int
		rate   Rate
		valid  bool
	}{
		{23, Rate24, true},
		{24, Rate24, false},
		{27, Rate24, false},
		{24, Rate25, true},
		{25, Rate25, false},
		{29, Rate2997, true},
		{29, Rate30, true},
	}

	for _, tt := range tests {
		err := Timecode{Frames: tt.frames}.ValidFor(tt.rate)
		if tt.valid && err != nil {
			t.Errorf("frame %d at %v: error = %v", tt.frames, tt.rate, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidTimecode) {
			t.Errorf("frame %d at %v: error = %v, want ErrInvalidTimecode", tt.frames, tt.rate, err)
		}
	}
}

func TestTimecode_Advance(t *testing.T) {
	tests := []struct {
		name string
		from Timecode
		rate Rate
		want Timecode
	}{
		{"frame", Timecode{1, 0, 0, 0}, Rate24, Timecode{1, 0, 0, 1}},
		{"second rollover at 24", Timecode{1, 0, 0, 23}, Rate24, Timecode{1, 0, 1, 0}},
		{"second rollover at 25", Timecode{0, 0, 0, 24}, Rate25, Timecode{0, 0, 1, 0}},
		{"29.97 counts 30", Timecode{0, 0, 0, 29}, Rate2997, Timecode{0, 0, 1, 0}},
		{"29.97 keeps frame 28", Timecode{0, 0, 0, 27}, Rate2997, Timecode{0, 0, 0, 28}},
		{"minute rollover", Timecode{0, 0, 59, 29}, Rate30, Timecode{0, 1, 0, 0}},
		{"hour rollover", Timecode{0, 59, 59, 23}, Rate24, Timecode{1, 0, 0, 0}},
		{"day rollover", Timecode{23, 59, 59, 24}, Rate25, Timecode{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.Advance(tt.rate); got != tt.want {
				t.Errorf("Advance(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestFullFrame(t *testing.T) {
	got := FullFrame(Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}, Rate30)
	want := []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, 0x61, 0x02, 0x03, 0x04, 0xF7}
	if !bytes.Equal(got, want) {
		t.Errorf("FullFrame() = % X, want % X", got, want)
	}
}

func TestQuarterFrame(t *testing.T) {
	// 23:45:30:29 at 29.97: hr = 0b0101_0111 (0x57), mn = 0x2D, sc = 0x1E, fr = 0x1D.
	tc := Timecode{Hours: 23, Minutes: 45, Seconds: 30, Frames: 29}
	want := [][]byte{
		{0xF1, 0x0D}, // frames low
		{0xF1, 0x11}, // frames high
		{0xF1, 0x2E}, // seconds low
		{0xF1, 0x31}, // seconds high
		{0xF1, 0x4D}, // minutes low
		{0xF1, 0x52}, // minutes high
		{0xF1, 0x67}, // hours low
		{0xF1, 0x75}, // rate and hours high
	}
	for p := range want {
		if got := QuarterFrame(tc, Rate2997, p); !bytes.Equal(got, want[p]) {
			t.Errorf("QuarterFrame(piece %d) = % X, want % X", p, got, want[p])
		}
	}
}

func TestSequencer_Cadence(t *testing.T) {
	seq := NewSequencer(Timecode{Hours: 1}, Rate24)

	full, quarter := 0, 0
	for i := 0; i < FullFrameInterval; i++ {
		msgs := seq.Next()
		switch {
		case len(msgs) == 1 && msgs[0][0] == 0xF0:
			if i != 0 {
				t.Errorf("full frame on tick %d, want only tick 0", i)
			}
			full++
		case len(msgs) == QuarterFramesPerTick:
			for p, m := range msgs {
				if m[0] != 0xF1 || int(m[1]>>4) != p {
					t.Errorf("tick %d piece %d = % X", i, p, m)
				}
			}
			quarter += len(msgs)
		default:
			t.Fatalf("tick %d produced %d messages", i, len(msgs))
		}
	}

	if full != 1 || quarter != 59*QuarterFramesPerTick {
		t.Errorf("60 ticks = %d full + %d quarter, want 1 + %d", full, quarter, 59*QuarterFramesPerTick)
	}
	if msgs := seq.Next(); len(msgs) != 1 {
		t.Errorf("tick 60 produced %d messages, want one full frame", len(msgs))
	}
	if seq.Ticks() != FullFrameInterval+1 {
		t.Errorf("Ticks() = %d", seq.Ticks())
	}
}

func TestSequencer_AdvancesBeforeEmitting(t *testing.T) {
	seq := NewSequencer(Timecode{Hours: 1, Seconds: 59, Frames: 23}, Rate24)
	msgs := seq.Next()

	want := FullFrame(Timecode{Hours: 1, Minutes: 1}, Rate24)
	if !bytes.Equal(msgs[0], want) {
		t.Errorf("first tick = % X, want % X", msgs[0], want)
	}
	if seq.Timecode() != (Timecode{Hours: 1, Minutes: 1}) {
		t.Errorf("Timecode() = %v", seq.Timecode())
	}
}
