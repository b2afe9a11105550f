package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/cuebridge/internal/api"
	"github.com/nerrad567/cuebridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/cuebridge/internal/infrastructure/metrics"
	"github.com/nerrad567/cuebridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cuebridge/internal/module"
)

type moduleObserver interface {
	ObserveModules(states []metrics.ModuleState)
}

type statusWriter interface {
	WriteModuleStatus(samples []influxdb.ModuleStatus)
}

type retainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

type broadcaster interface {
	Broadcast(channel string, payload any)
}

type warnLogger interface {
	Warn(msg string, args ...any)
}

// statusSink fans one module status sample out to every telemetry target.
// Nil targets are skipped.
type statusSink struct {
	logger    warnLogger
	metrics   moduleObserver
	influx    statusWriter
	hub       broadcaster
	publisher retainedPublisher
	topics    mqtt.Topics
}

// moduleStatusPayload is the retained MQTT document for one instance.
type moduleStatusPayload struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Name      string           `json:"name"`
	Enabled   bool             `json:"enabled"`
	Connected bool             `json:"connected"`
	Detail    string           `json:"detail,omitempty"`
	Counters  map[string]int64 `json:"counters,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Sample is the module registry's status sampler callback.
func (s *statusSink) Sample(_ context.Context, infos []module.Info) {
	now := time.Now().UTC()

	if s.metrics != nil {
		states := make([]metrics.ModuleState, 0, len(infos))
		for _, info := range infos {
			states = append(states, metrics.ModuleState{
				Type:      info.Type,
				Name:      info.Name,
				Enabled:   info.Enabled,
				Connected: connected(info),
			})
		}
		s.metrics.ObserveModules(states)
	}

	if s.influx != nil {
		samples := make([]influxdb.ModuleStatus, 0, len(infos))
		for _, info := range infos {
			sample := influxdb.ModuleStatus{
				Type:      info.Type,
				Name:      info.Name,
				Enabled:   info.Enabled,
				Connected: connected(info),
			}
			if info.Health != nil {
				sample.Counters = info.Health.Counters
			}
			samples = append(samples, sample)
		}
		s.influx.WriteModuleStatus(samples)
	}

	if s.hub != nil {
		s.hub.Broadcast(api.ChannelModuleStatus, infos)
	}

	if s.publisher != nil {
		for _, info := range infos {
			s.publish(info, now)
		}
	}
}

func (s *statusSink) publish(info module.Info, now time.Time) {
	payload := moduleStatusPayload{
		ID:        info.ID,
		Type:      info.Type,
		Name:      info.Name,
		Enabled:   info.Enabled,
		Connected: connected(info),
		Timestamp: now,
	}
	if info.Health != nil {
		payload.Detail = info.Health.Detail
		payload.Counters = info.Health.Counters
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.warn("encoding module status failed", "module", info.ID, "error", err)
		return
	}
	if err := s.publisher.PublishRetained(s.topics.ModuleStatus(info.Type, info.Name), data); err != nil {
		s.warn("publishing module status failed", "module", info.ID, "error", err)
	}
}

func (s *statusSink) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// connected treats an instance without a health report as connected.
func connected(info module.Info) bool {
	return info.Health == nil || info.Health.Connected
}
