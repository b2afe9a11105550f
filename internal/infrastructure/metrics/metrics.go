package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/cuebridge/internal/annotation"
)

const namespace = "cuebridge"

// Metrics owns a private Prometheus registry and the hub's counters.
//
// It satisfies the observer interfaces of the trigger registry, the
// dispatch engine and the module dependencies, so one value is handed to
// all three.
type Metrics struct {
	registry *prometheus.Registry

	annotations     *prometheus.CounterVec
	invocations     *prometheus.CounterVec
	triggersFired   *prometheus.CounterVec
	handlerFaults   *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
	transportFaults *prometheus.CounterVec
	moduleConnected *prometheus.GaugeVec
	moduleEnabled   *prometheus.GaugeVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		annotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "annotations_total",
			Help:      "Annotations processed, by whether any trigger matched.",
		}, []string{"matched"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "invocations_total",
			Help:      "Invocations dispatched, by tag, form and match outcome.",
		}, []string{"tag", "form", "matched"}),
		triggersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "fired_total",
			Help:      "Triggers fired, by owning module type.",
		}, []string{"module_type", "tag"}),
		handlerFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "handler_faults_total",
			Help:      "Handler errors and recovered panics.",
		}, []string{"module_type", "tag"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "messages_sent_total",
			Help:      "Messages written to devices.",
		}, []string{"module_type"}),
		transportFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "transport_faults_total",
			Help:      "Device connection and write failures.",
		}, []string{"module_type"}),
		moduleConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "connected",
			Help:      "1 when the module instance reports a live transport.",
		}, []string{"module_type", "module_name"}),
		moduleEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "enabled",
			Help:      "1 when the module instance is enabled.",
		}, []string{"module_type", "module_name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.annotations,
		m.invocations,
		m.triggersFired,
		m.handlerFaults,
		m.messagesSent,
		m.transportFaults,
		m.moduleConnected,
		m.moduleEnabled,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AnnotationProcessed counts one processed annotation.
func (m *Metrics) AnnotationProcessed(invocations int, anyMatched bool) {
	m.annotations.WithLabelValues(strconv.FormatBool(anyMatched)).Inc()
}

// InvocationDispatched counts one invocation.
func (m *Metrics) InvocationDispatched(tag string, form annotation.Form, matched bool) {
	m.invocations.WithLabelValues(tag, form.String(), strconv.FormatBool(matched)).Inc()
}

// TriggerFired counts one fired trigger.
func (m *Metrics) TriggerFired(moduleType, tag string) {
	m.triggersFired.WithLabelValues(moduleType, tag).Inc()
}

// HandlerFault counts one failed or panicking handler.
func (m *Metrics) HandlerFault(moduleType, tag string) {
	m.handlerFaults.WithLabelValues(moduleType, tag).Inc()
}

// MessagesSent adds n device messages for a module type.
func (m *Metrics) MessagesSent(moduleType string, n int) {
	if n <= 0 {
		return
	}
	m.messagesSent.WithLabelValues(moduleType).Add(float64(n))
}

// TransportFault counts one device transport failure.
func (m *Metrics) TransportFault(moduleType string) {
	m.transportFaults.WithLabelValues(moduleType).Inc()
}

// ModuleState is one instance's sampled state.
type ModuleState struct {
	Type      string
	Name      string
	Enabled   bool
	Connected bool
}

// ObserveModules replaces the module gauges with the given snapshot so
// removed instances disappear.
func (m *Metrics) ObserveModules(states []ModuleState) {
	m.moduleConnected.Reset()
	m.moduleEnabled.Reset()
	for _, s := range states {
		m.moduleConnected.WithLabelValues(s.Type, s.Name).Set(boolGauge(s.Connected))
		m.moduleEnabled.WithLabelValues(s.Type, s.Name).Set(boolGauge(s.Enabled))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
