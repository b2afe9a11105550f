// Package midi sends notes, program changes, control changes and MIDI Time
// Code to a single MIDI output.
//
// The output is either a raw MIDI character device or an MQTT topic read by
// a relay on the machine that owns the interface. Trigger messages go
// through one ordered queue; timecode is written by a timecode.Generator.
package midi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/timecode"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ModuleType is the registry type name.
const ModuleType = "midi"

const (
	defaultNoteDuration = 100 * time.Millisecond
	defaultVelocity     = 127
	defaultCCValue      = 127
	defaultMTCRate      = 24
	queueSize           = 256
)

// Settings are decoded from the module's settings map.
type Settings struct {
	// Output is a MIDI device path, e.g. /dev/snd/midiC1D0.
	Output string `mapstructure:"output"`
	// MQTTTopic selects the relay output instead of a device.
	MQTTTopic    string        `mapstructure:"mqtt_topic"`
	QoS          int           `mapstructure:"qos"`
	NoteDuration time.Duration `mapstructure:"note_duration"`
}

// Factory returns the registry factory for the MIDI bridge.
func Factory() module.Factory {
	return module.Factory{
		Type:        ModuleType,
		Description: "MIDI notes, program/control changes and timecode",
		New:         New,
	}
}

// Bridge is the MIDI module.
type Bridge struct {
	port         Port
	gen          *timecode.Generator
	noteDuration time.Duration
	logger       module.Logger
	meter        module.Meter

	queue chan [][]byte
	wg    sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	nextNote uint64
	pending  map[uint64]pendingOff

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

type pendingOff struct {
	timer *time.Timer
	msg   []byte
}

var (
	_ module.Module         = (*Bridge)(nil)
	_ module.StatusReporter = (*Bridge)(nil)
)

// New builds the bridge for the configured output.
func New(_ string, settings map[string]any, deps module.Deps) (module.Module, error) {
	cfg := Settings{NoteDuration: defaultNoteDuration}
	if err := module.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if (cfg.Output == "") == (cfg.MQTTTopic == "") {
		return nil, ErrNoOutput
	}

	var port Port
	if cfg.Output != "" {
		port = newDevicePort(cfg.Output)
	} else {
		if deps.Publisher == nil {
			return nil, ErrNoPublisher
		}
		if cfg.QoS < 0 || cfg.QoS > 2 {
			return nil, fmt.Errorf("%w: qos must be 0, 1 or 2", module.ErrInvalidSettings)
		}
		port = &relayPort{pub: deps.Publisher, topic: cfg.MQTTTopic, qos: byte(cfg.QoS)}
	}
	if cfg.NoteDuration <= 0 {
		cfg.NoteDuration = defaultNoteDuration
	}

	return newBridge(port, cfg.NoteDuration, deps.WithDefaults()), nil
}

func newBridge(port Port, noteDuration time.Duration, deps module.Deps) *Bridge {
	b := &Bridge{
		port:         port,
		gen:          timecode.NewGenerator(port),
		noteDuration: noteDuration,
		logger:       deps.Logger,
		meter:        deps.Meter,
		queue:        make(chan [][]byte, queueSize),
		pending:      make(map[uint64]pendingOff),
	}
	b.gen.SetLogger(deps.Logger)

	b.wg.Add(1)
	go b.writer()
	return b
}

func (b *Bridge) Triggers() []trigger.Spec {
	ch := trigger.ArgSpec{Name: "channel", Type: trigger.ArgNumber, Description: "channel 0-15, defaults to 0", Optional: true}
	return []trigger.Spec{
		{
			Tag:         "note",
			Description: "play a midi note to the connected port",
			Args: []trigger.ArgSpec{
				{Name: "note", Type: trigger.ArgNumber, Description: "number from 0-127"},
				{Name: "velocity", Type: trigger.ArgNumber, Description: "velocity from 0-127 defaults to 127", Optional: true},
				ch,
			},
		},
		{
			Tag:         "pc",
			Description: "send a midi program change to the connected port",
			Args: []trigger.ArgSpec{
				{Name: "program", Type: trigger.ArgNumber, Description: "program number 0-127"},
				ch,
			},
		},
		{
			Tag:         "cc",
			Description: "send a midi control change to the connected port",
			Args: []trigger.ArgSpec{
				{Name: "controller", Type: trigger.ArgNumber, Description: "number from 0-127 (120 and 123 silence a channel)"},
				{Name: "value", Type: trigger.ArgNumber, Description: "value from 0-127 defaults to 127", Optional: true},
				ch,
			},
		},
		{
			Tag:         "mtc",
			Description: "start or stop midi timecode; mtc[] stops",
			Args: []trigger.ArgSpec{
				{Name: "initial", Type: trigger.ArgString, Description: "HH:MM:SS:FF where FF is the zero-based frame", Optional: true},
				{Name: "fps", Type: trigger.ArgNumber, Description: "24, 25, 29.97 or 30; defaults to 24", Optional: true},
			},
		},
		{
			Tag:         "midipanic",
			Description: "send all sound off and all notes off on every channel",
		},
	}
}

func (b *Bridge) Fire(_ context.Context, call trigger.Call) error {
	a := call.Args
	switch call.Action {
	case "note":
		if !a.Present(0) {
			return fmt.Errorf("%w: note", ErrMissingArgument)
		}
		return b.hit(a.Int(0), a.IntOr(1, defaultVelocity), a.IntOr(2, 0))

	case "pc":
		if !a.Present(0) {
			return fmt.Errorf("%w: program", ErrMissingArgument)
		}
		return b.enqueue(ProgramChange(a.IntOr(1, 0), a.Int(0)))

	case "cc":
		if !a.Present(0) {
			return fmt.Errorf("%w: controller", ErrMissingArgument)
		}
		return b.enqueue(ControlChange(a.IntOr(2, 0), a.Int(0), a.IntOr(1, defaultCCValue)))

	case "mtc":
		initial := strings.TrimSpace(a.Text(0))
		if initial == "" {
			b.gen.Stop()
			return nil
		}
		tc, err := timecode.ParseTimecode(initial)
		if err != nil {
			return err
		}
		fps := float64(defaultMTCRate)
		if a.Present(1) {
			fps = a.Number(1)
		}
		rate, err := timecode.ParseRate(fps)
		if err != nil {
			return err
		}
		if err := tc.ValidFor(rate); err != nil {
			return err
		}
		b.gen.Start(tc, rate)
		return nil

	case "midipanic":
		return b.enqueue(Panic()...)
	}
	return fmt.Errorf("midi: unknown action %q", call.Action)
}

// hit plays a note and schedules its note-off after the note duration.
func (b *Bridge) hit(note, velocity, ch int) error {
	if err := b.enqueue(NoteOn(ch, note, velocity)); err != nil {
		return err
	}

	off := NoteOff(ch, note)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	id := b.nextNote
	b.nextNote++
	b.pending[id] = pendingOff{
		msg: off,
		timer: time.AfterFunc(b.noteDuration, func() {
			b.mu.Lock()
			delete(b.pending, id)
			b.mu.Unlock()
			if err := b.enqueue(off); err != nil {
				b.logger.Warn("midi note off dropped", "error", err)
			}
		}),
	}
	return nil
}

func (b *Bridge) enqueue(msgs ...[]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	select {
	case b.queue <- msgs:
		return nil
	default:
		b.dropped.Add(1)
		b.meter.TransportFault(ModuleType)
		return ErrQueueFull
	}
}

// writer drains the queue in order until it is closed.
func (b *Bridge) writer() {
	defer b.wg.Done()
	for msgs := range b.queue {
		if err := b.port.WriteMIDI(msgs); err != nil {
			b.failed.Add(1)
			b.meter.TransportFault(ModuleType)
			b.logger.Warn("midi write failed", "output", b.port.String(), "error", err)
			continue
		}
		b.sent.Add(int64(len(msgs)))
		b.meter.MessagesSent(ModuleType, len(msgs))
	}
}

func (b *Bridge) Status() module.Health {
	running := int64(0)
	if b.gen.Running() {
		running = 1
	}
	return module.Health{
		Connected: b.port.Connected(),
		Detail:    b.port.String(),
		Counters: map[string]int64{
			"messages":         b.sent.Load(),
			"dropped":          b.dropped.Load(),
			"write_errors":     b.failed.Load(),
			"mtc_running":      running,
			"mtc_ticks":        int64(b.gen.Ticks()),
			"mtc_write_errors": int64(b.gen.WriteErrors()),
		},
	}
}

// Close stops timecode, flushes note-offs for notes still sounding and
// waits for the queue to drain.
func (b *Bridge) Close() error {
	b.gen.Stop()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	var offs [][]byte
	for id, p := range b.pending {
		if p.timer.Stop() {
			offs = append(offs, p.msg)
		}
		delete(b.pending, id)
	}
	if len(offs) > 0 {
		select {
		case b.queue <- offs:
		default:
		}
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	return b.port.Close()
}
