package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementModuleStatus is the measurement holding module health samples.
const MeasurementModuleStatus = "module_status"

// ModuleStatus is one sampled module instance.
type ModuleStatus struct {
	Type      string
	Name      string
	Enabled   bool
	Connected bool
	// Counters become integer fields named after their keys.
	Counters map[string]int64
}

// WriteModuleStatus queues one point per module. No-op when disconnected.
func (c *Client) WriteModuleStatus(samples []ModuleStatus) {
	if !c.IsConnected() {
		return
	}
	for _, p := range ModuleStatusPoints(samples, time.Now()) {
		c.writeAPI.WritePoint(p)
	}
}

// ModuleStatusPoints converts samples into points stamped at ts.
//
//	module_status,module_type=companion,module_name=foh enabled=true,connected=true,sent=12i
func ModuleStatusPoints(samples []ModuleStatus, ts time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(samples))
	for _, s := range samples {
		fields := map[string]interface{}{
			"enabled":   s.Enabled,
			"connected": s.Connected,
		}
		for k, v := range s.Counters {
			if k == "enabled" || k == "connected" {
				continue
			}
			fields[k] = v
		}
		points = append(points, write.NewPoint(
			MeasurementModuleStatus,
			map[string]string{
				"module_type": s.Type,
				"module_name": s.Name,
			},
			fields,
			ts,
		))
	}
	return points
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
