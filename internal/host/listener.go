package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/cuebridge/internal/dispatch"
	"github.com/nerrad567/cuebridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// SignalSlideUpdate is raised after every annotation that carries a slide.
const SignalSlideUpdate = "slideupdate"

const subscribeQoS = 1

// Subscriber is the MQTT surface used by the listener.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Dispatcher is the engine surface used by the listener.
type Dispatcher interface {
	Process(ctx context.Context, text string, host trigger.HostContext, signals ...string) dispatch.Result
	Signal(ctx context.Context, name string, host trigger.HostContext) bool
}

// Logger defines the logging interface used by the listener.
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

// Stats counts handled host messages.
type Stats struct {
	Annotations int64 `json:"annotations"`
	Events      int64 `json:"events"`
	Rejected    int64 `json:"rejected"`
}

// Listener subscribes to the host topic tree and dispatches what arrives.
type Listener struct {
	sub     Subscriber
	topics  mqtt.Topics
	engine  Dispatcher
	sources map[string]bool
	logger  Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	annotations atomic.Int64
	events      atomic.Int64
	rejected    atomic.Int64
}

// NewListener creates a listener. An empty sources list accepts every host.
func NewListener(sub Subscriber, topics mqtt.Topics, engine Dispatcher, sources []string) *Listener {
	l := &Listener{
		sub:    sub,
		topics: topics,
		engine: engine,
		logger: noopLogger{},
	}
	if len(sources) > 0 {
		l.sources = make(map[string]bool, len(sources))
		for _, s := range sources {
			l.sources[s] = true
		}
	}
	return l
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// Start subscribes to annotations and events. Handlers run with a context
// derived from ctx and cancelled by Stop.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return ErrAlreadyStarted
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	for _, topic := range []string{l.topics.AllHostAnnotations(), l.topics.AllHostEvents()} {
		if err := l.sub.Subscribe(topic, subscribeQoS, l.HandleMessage); err != nil {
			l.stopLocked()
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	l.logger.Info("host listener started", "annotations", l.topics.AllHostAnnotations(), "events", l.topics.AllHostEvents())
	return nil
}

// Stop unsubscribes and cancels in-flight handler contexts.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Listener) stopLocked() {
	if l.cancel == nil {
		return
	}
	for _, topic := range []string{l.topics.AllHostAnnotations(), l.topics.AllHostEvents()} {
		if err := l.sub.Unsubscribe(topic); err != nil {
			l.logger.Debug("host unsubscribe failed", "topic", topic, "error", err)
		}
	}
	l.cancel()
	l.cancel = nil
}

// Stats returns message counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Annotations: l.annotations.Load(),
		Events:      l.events.Load(),
		Rejected:    l.rejected.Load(),
	}
}

func (l *Listener) context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}

// HandleMessage routes one host message. It is the MQTT handler for both
// subscriptions.
func (l *Listener) HandleMessage(topic string, payload []byte) error {
	ht, ok := l.topics.ParseHost(topic)
	if !ok {
		l.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if l.sources != nil && !l.sources[ht.Source] {
		l.rejected.Add(1)
		l.logger.Debug("host message from unlisted source dropped", "source", ht.Source)
		return fmt.Errorf("%w: %s", ErrSourceRejected, ht.Source)
	}

	ctx := l.context()
	switch ht.Kind {
	case mqtt.KindAnnotation:
		return l.handleAnnotation(ctx, ht.Source, payload)
	default:
		return l.handleEvent(ctx, ht.Source, ht.Name, payload)
	}
}

type annotationPayload struct {
	Text  *string        `json:"text"`
	Slide *trigger.Slide `json:"slide"`
}

// DecodeAnnotation splits an annotation payload into the text to process
// and the slide it came with, if any.
func DecodeAnnotation(payload []byte) (string, *trigger.Slide) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(payload), nil
	}

	var p annotationPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		// Not ours; annotations may legitimately start with a brace.
		return string(payload), nil
	}
	if p.Text == nil && p.Slide == nil {
		return string(payload), nil
	}
	if p.Text != nil {
		return *p.Text, p.Slide
	}
	return p.Slide.Notes, p.Slide
}

func (l *Listener) handleAnnotation(ctx context.Context, source string, payload []byte) error {
	l.annotations.Add(1)
	text, slide := DecodeAnnotation(payload)

	host := trigger.HostContext{Source: source}
	if slide != nil {
		host.Slide = *slide
	}

	var signals []string
	if slide != nil {
		signals = append(signals, SignalSlideUpdate)
	}
	res := l.engine.Process(ctx, text, host, signals...)
	l.logger.Debug("host annotation processed",
		"source", source,
		"slide", host.Slide.Index,
		"invocations", len(res.Invocations),
		"matched", res.AnyMatched,
	)
	return nil
}

func (l *Listener) handleEvent(ctx context.Context, source, name string, payload []byte) error {
	host := trigger.HostContext{Source: source}

	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 {
		var data map[string]any
		if err := json.Unmarshal(trimmed, &data); err != nil {
			l.rejected.Add(1)
			return fmt.Errorf("%w: event %s: %w", ErrInvalidPayload, name, err)
		}
		host.Data = data

		var withSlide struct {
			Slide *trigger.Slide `json:"slide"`
		}
		if err := json.Unmarshal(trimmed, &withSlide); err == nil && withSlide.Slide != nil {
			host.Slide = *withSlide.Slide
		}
	}

	l.events.Add(1)
	matched := l.engine.Signal(ctx, name, host)
	l.logger.Debug("host event dispatched", "source", source, "signal", name, "matched", matched)
	return nil
}
