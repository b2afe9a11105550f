package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemInfo is the response of GET /system.
type SystemInfo struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
	Dispatch      DispatchInfo   `json:"dispatch"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DispatchInfo summarises the trigger and module registries.
type DispatchInfo struct {
	AllowTriggers   bool `json:"allow_triggers"`
	Triggers        int  `json:"triggers"`
	Modules         int  `json:"modules"`
	ModulesDegraded int  `json:"modules_degraded"`
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	info := SystemInfo{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.Hub().ClientCount()},
		Dispatch: DispatchInfo{
			AllowTriggers: s.engine.Allowed(),
			Triggers:      s.triggers.Count(),
		},
	}
	if s.mqtt != nil {
		info.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	for _, m := range s.modules.Instances() {
		info.Dispatch.Modules++
		if m.Health != nil && !m.Health.Connected {
			info.Dispatch.ModulesDegraded++
		}
	}

	writeJSON(w, http.StatusOK, info)
}
