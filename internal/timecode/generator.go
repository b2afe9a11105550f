package timecode

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Output receives the messages of one tick.
type Output interface {
	WriteMIDI(msgs [][]byte) error
}

// Clock is the time source for a Generator. Now must be monotonic.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Logger defines the logging interface used by the Generator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Generator plays MIDI Time Code to an Output on its own goroutine.
//
// Tick k of a run is due at epoch + k*frameDuration, so scheduling error
// never accumulates: each wait covers only the remaining delta, and a late
// tick is followed immediately by the next one.
type Generator struct {
	out    Output
	clock  Clock
	logger Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running     atomic.Bool
	ticks       atomic.Uint64
	writeErrors atomic.Uint64
}

// NewGenerator creates a stopped generator writing to out.
func NewGenerator(out Output) *Generator {
	return &Generator{
		out:    out,
		clock:  realClock{},
		logger: noopLogger{},
	}
}

// SetClock replaces the time source. Call before Start.
func (g *Generator) SetClock(c Clock) {
	g.clock = c
}

// SetLogger sets the logger for the generator.
func (g *Generator) SetLogger(logger Logger) {
	g.logger = logger
}

// Start begins playing from tc at rate r, stopping any previous run first.
func (g *Generator) Start(tc Timecode, r Rate) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done
	g.running.Store(true)

	g.logger.Info("mtc started", "timecode", tc.String(), "rate", r.String())
	go g.run(ctx, done, NewSequencer(tc, r), g.clock.Now())
}

// Stop cancels the pending wake and waits for the run to exit. Stopping a
// stopped generator is a no-op.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopLocked() {
		g.logger.Info("mtc stopped", "ticks", g.ticks.Load())
	}
}

func (g *Generator) stopLocked() bool {
	if g.cancel == nil {
		return false
	}
	g.cancel()
	<-g.done
	g.cancel = nil
	g.done = nil
	g.running.Store(false)
	return true
}

// Running reports whether a run is active.
func (g *Generator) Running() bool {
	return g.running.Load()
}

// Ticks returns the total ticks emitted across all runs.
func (g *Generator) Ticks() uint64 {
	return g.ticks.Load()
}

// WriteErrors returns how many tick writes failed.
func (g *Generator) WriteErrors() uint64 {
	return g.writeErrors.Load()
}

func (g *Generator) run(ctx context.Context, done chan struct{}, seq *Sequencer, epoch time.Time) {
	defer close(done)

	frame := seq.Rate().FrameDuration()
	for k := int64(1); ; k++ {
		deadline := epoch.Add(time.Duration(k) * frame)
		if wait := deadline.Sub(g.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-g.clock.After(wait):
			}
		} else if ctx.Err() != nil {
			return
		}

		if err := g.out.WriteMIDI(seq.Next()); err != nil {
			// Only the first failure of a burst is logged.
			if g.writeErrors.Add(1) == 1 {
				g.logger.Warn("mtc write failed", "error", err, "timecode", seq.Timecode().String())
			}
		}
		g.ticks.Add(1)
	}
}
