// Package mqttout publishes annotation payloads to MQTT through the hub's
// shared broker connection.
package mqttout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"
)

// ModuleType is the registry type name.
const ModuleType = "mqttout"

var (
	// ErrNoPublisher is returned when MQTT is disabled hub-wide.
	ErrNoPublisher = errors.New("mqttout: mqtt is not enabled")

	// ErrMissingTopic is returned for a call without a topic.
	ErrMissingTopic = errors.New("mqttout: topic is required")

	// ErrWildcardTopic is returned for topics containing + or #.
	ErrWildcardTopic = errors.New("mqttout: topic must not contain wildcards")
)

// Settings are decoded from the module's settings map.
type Settings struct {
	QoS    int  `mapstructure:"qos"`
	Retain bool `mapstructure:"retain"`
	// Prefix is prepended to every topic when set.
	Prefix string `mapstructure:"prefix"`
}

// Factory returns the registry factory for the MQTT output bridge.
func Factory() module.Factory {
	return module.Factory{
		Type:        ModuleType,
		Description: "publishes messages to MQTT topics",
		New:         New,
	}
}

// Bridge is the mqttout module.
type Bridge struct {
	pub    module.Publisher
	qos    byte
	retain bool
	prefix string
	logger module.Logger
	meter  module.Meter

	published atomic.Int64
	failed    atomic.Int64
	lastErr   atomic.Value // string
}

// New builds the bridge. It needs the shared publisher.
func New(_ string, settings map[string]any, deps module.Deps) (module.Module, error) {
	var cfg Settings
	if err := module.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, fmt.Errorf("%w: qos must be 0, 1, or 2", module.ErrInvalidSettings)
	}
	if deps.Publisher == nil {
		return nil, ErrNoPublisher
	}
	deps = deps.WithDefaults()

	return &Bridge{
		pub:    deps.Publisher,
		qos:    byte(cfg.QoS),
		retain: cfg.Retain,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: deps.Logger,
		meter:  deps.Meter,
	}, nil
}

func (b *Bridge) Triggers() []trigger.Spec {
	return []trigger.Spec{{
		Tag:         "mqtt",
		Description: "publishes the payload to the topic",
		Args: []trigger.ArgSpec{
			{Name: "topic", Type: trigger.ArgString, Description: "topic, without wildcards"},
			{Name: "payload", Type: trigger.ArgString, Description: "message body", Optional: true},
		},
	}}
}

// Topic resolves the full topic for a call.
func (b *Bridge) Topic(raw string) (string, error) {
	topic := strings.TrimSpace(raw)
	if topic == "" {
		return "", ErrMissingTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return "", fmt.Errorf("%w: %q", ErrWildcardTopic, topic)
	}
	if b.prefix != "" {
		topic = b.prefix + "/" + strings.TrimLeft(topic, "/")
	}
	return topic, nil
}

// Fire publishes without waiting for the broker acknowledgement; the client
// queues while disconnected.
func (b *Bridge) Fire(_ context.Context, call trigger.Call) error {
	topic, err := b.Topic(call.Args.Text(0))
	if err != nil {
		return err
	}
	if err := b.pub.Publish(topic, []byte(call.Args.Text(1)), b.qos, b.retain); err != nil {
		b.failed.Add(1)
		b.lastErr.Store(err.Error())
		b.meter.TransportFault(ModuleType)
		return fmt.Errorf("mqttout: publishing to %s: %w", topic, err)
	}
	b.published.Add(1)
	b.meter.MessagesSent(ModuleType, 1)
	b.logger.Debug("mqtt message published", "topic", topic, "bytes", len(call.Args.Text(1)))
	return nil
}

func (b *Bridge) Status() module.Health {
	h := module.Health{
		Connected: true,
		Detail:    "ready",
		Counters: map[string]int64{
			"published": b.published.Load(),
			"failed":    b.failed.Load(),
		},
	}
	if last, ok := b.lastErr.Load().(string); ok {
		h.Detail = "last error: " + last
	}
	if c, ok := b.pub.(interface{ IsConnected() bool }); ok {
		h.Connected = c.IsConnected()
	}
	return h
}

// Close is a no-op; the shared connection belongs to the hub.
func (b *Bridge) Close() error { return nil }
