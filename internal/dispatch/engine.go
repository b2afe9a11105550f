package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/cuebridge/internal/annotation"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ChannelProcessed is the hub channel each processed annotation is
// broadcast on.
const ChannelProcessed = "dispatch.processed"

// Gate serialises dispatch against module reconfiguration.
type Gate interface {
	BeginDispatch() (end func())
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Recorder counts dispatch outcomes.
type Recorder interface {
	AnnotationProcessed(invocations int, anyMatched bool)
	InvocationDispatched(tag string, form annotation.Form, matched bool)
}

// Logger defines the logging interface used by the Engine.
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

type noopRecorder struct{}

func (noopRecorder) AnnotationProcessed(int, bool)                      {}
func (noopRecorder) InvocationDispatched(string, annotation.Form, bool) {}

// Result reports what one annotation did.
type Result struct {
	Invocations []annotation.Invocation `json:"invocations"`
	// Matched[i] reports whether Invocations[i] fired at least one trigger.
	Matched    []bool `json:"matched"`
	AnyMatched bool   `json:"any_matched"`
	// Allowed is false when dispatch was switched off and nothing fired.
	Allowed bool `json:"allowed"`
}

// ProcessedEvent is the payload broadcast on ChannelProcessed.
type ProcessedEvent struct {
	Source    string        `json:"source"`
	Slide     trigger.Slide `json:"slide"`
	Result    Result        `json:"result"`
	Timestamp time.Time     `json:"timestamp"`
}

// Engine routes parsed invocations to matching triggers.
//
// Handlers run synchronously on the calling goroutine; device I/O inside
// them is fire-and-forget, so a true result means "a handler ran", not "the
// device acknowledged".
type Engine struct {
	triggers *trigger.Registry
	gate     Gate
	hub      WSHub
	recorder Recorder
	logger   Logger
	allow    atomic.Bool
}

// NewEngine creates an engine over triggers. gate is usually the module
// registry; hub may be nil.
func NewEngine(triggers *trigger.Registry, gate Gate, hub WSHub) *Engine {
	e := &Engine{
		triggers: triggers,
		gate:     gate,
		hub:      hub,
		recorder: noopRecorder{},
		logger:   noopLogger{},
	}
	e.allow.Store(true)
	return e
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetRecorder sets the outcome recorder.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetAllow switches dispatch on or off. While off, annotations are still
// parsed and reported but no trigger fires.
func (e *Engine) SetAllow(allow bool) {
	if e.allow.Swap(allow) != allow {
		e.logger.Info("trigger dispatch toggled", "allow", allow)
	}
}

// Allowed reports whether dispatch is switched on.
func (e *Engine) Allowed() bool {
	return e.allow.Load()
}

// Dispatch fires every trigger matching inv and reports whether any did.
func (e *Engine) Dispatch(ctx context.Context, inv annotation.Invocation, host trigger.HostContext) bool {
	if !e.Allowed() {
		return false
	}
	end := e.gate.BeginDispatch()
	defer end()
	return e.dispatch(ctx, inv, host)
}

// dispatch fans out without short-circuiting. Caller holds the gate.
func (e *Engine) dispatch(ctx context.Context, inv annotation.Invocation, host trigger.HostContext) bool {
	matched := false
	for _, d := range e.triggers.Match(inv.Tag, inv.Form) {
		if e.triggers.Fire(ctx, d, inv, host) {
			matched = true
		}
	}
	e.recorder.InvocationDispatched(inv.Tag, inv.Form, matched)
	return matched
}

// Process parses text and dispatches each invocation in order, then one
// lifecycle invocation per name in signals. The whole pass sees one
// consistent set of modules, and signal invocations are appended to the
// result so AnyMatched covers them.
func (e *Engine) Process(ctx context.Context, text string, host trigger.HostContext, signals ...string) Result {
	invs := annotation.Parse(text)
	parsed := len(invs)
	for _, name := range signals {
		invs = append(invs, signalInvocation(name))
	}
	res := Result{
		Invocations: invs,
		Matched:     make([]bool, len(invs)),
		Allowed:     e.Allowed(),
	}
	if res.Invocations == nil {
		res.Invocations = []annotation.Invocation{}
	}

	if !res.Allowed {
		if parsed > 0 {
			e.logger.Info("trigger dispatch disabled, annotation ignored",
				"source", host.Source, "slide", host.Slide.Index, "invocations", parsed)
		}
	} else if len(invs) > 0 {
		end := e.gate.BeginDispatch()
		for i, inv := range invs {
			h := host
			if i >= parsed {
				h.Signal = signals[i-parsed]
			}
			res.Matched[i] = e.dispatch(ctx, inv, h)
			res.AnyMatched = res.AnyMatched || res.Matched[i]
		}
		end()

		if !res.AnyMatched && parsed > 0 {
			e.logger.Info("no trigger matched annotation",
				"source", host.Source, "slide", host.Slide.Index, "invocations", parsed)
		}
	}

	e.recorder.AnnotationProcessed(len(invs), res.AnyMatched)
	if e.hub != nil {
		e.hub.Broadcast(ChannelProcessed, ProcessedEvent{
			Source:    host.Source,
			Slide:     host.Slide,
			Result:    res,
			Timestamp: time.Now().UTC(),
		})
	}
	return res
}

func signalInvocation(name string) annotation.Invocation {
	return annotation.Invocation{
		Tag:  annotation.LifecycleTag(name),
		Form: annotation.FormShort,
		Args: []string{},
	}
}

// Signal dispatches the lifecycle tag ~name~ with no arguments.
func (e *Engine) Signal(ctx context.Context, name string, host trigger.HostContext) bool {
	host.Signal = name
	matched := e.Dispatch(ctx, signalInvocation(name), host)
	e.logger.Debug("lifecycle signal dispatched", "signal", name, "matched", matched)
	return matched
}
