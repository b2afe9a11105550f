package module

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/nerrad567/cuebridge/internal/trigger"
)

// Module is one live device bridge instance.
type Module interface {
	// Triggers declares the instance's triggers. Called once after
	// construction.
	Triggers() []trigger.Spec

	// Fire handles one matched trigger. Device I/O should be scheduled
	// asynchronously; returned errors are logged as handler faults.
	Fire(ctx context.Context, call trigger.Call) error

	// Close releases sockets, timers and goroutines. Called when the
	// instance is reconfigured or the hub shuts down.
	Close() error
}

// StatusReporter is implemented by modules that can report connection
// health.
type StatusReporter interface {
	Status() Health
}

// Health is a module's self-reported transport state.
type Health struct {
	Connected bool             `json:"connected"`
	Detail    string           `json:"detail,omitempty"`
	Counters  map[string]int64 `json:"counters,omitempty"`
}

// Factory constructs instances of one module type.
type Factory struct {
	Type        string
	Description string
	// Multi types require a unique name per instance and an instance
	// selector on their short-form triggers.
	Multi bool
	New   func(name string, settings map[string]any, deps Deps) (Module, error)
}

// InstanceConfig is one entry of the modules configuration list.
type InstanceConfig struct {
	Type     string
	Name     string
	Enabled  bool
	Settings map[string]any
}

// Logger defines the logging interface used by the registry and bridges.
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

// NoopLogger returns a logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }

// Publisher publishes MQTT messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster pushes events to WebSocket subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Meter receives bridge-level counters.
type Meter interface {
	MessagesSent(moduleType string, n int)
	TransportFault(moduleType string)
}

type noopMeter struct{}

func (noopMeter) MessagesSent(string, int) {}
func (noopMeter) TransportFault(string)    {}

// Deps are the shared collaborators handed to every factory. Publisher and
// Hub may be nil when the corresponding subsystem is disabled.
type Deps struct {
	Logger    Logger
	Publisher Publisher
	Hub       Broadcaster
	Meter     Meter
}

// WithDefaults fills a nil Logger or Meter with no-op implementations.
func (d Deps) WithDefaults() Deps {
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	if d.Meter == nil {
		d.Meter = noopMeter{}
	}
	return d
}

// DecodeSettings decodes a module's settings map into out, a pointer to a
// struct with mapstructure tags. Strings are weakly converted ("5" to 5),
// durations parse from strings such as "2s", and unknown keys are rejected.
func DecodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}
