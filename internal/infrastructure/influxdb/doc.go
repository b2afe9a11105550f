// Package influxdb records module status telemetry in InfluxDB v2.
//
// The module registry samples every instance's health on an interval; the
// samples land here as one module_status point per instance, tagged by
// module type and name. Show operators use the series to see when a
// console or switcher dropped off the network during a run.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteModuleStatus([]influxdb.ModuleStatus{
//	    {Type: "onyx", Name: "onyx", Enabled: true, Connected: false},
//	})
//
// Writes are non-blocking and batched per batch_size and flush_interval.
// Asynchronous write errors go to the SetOnError callback.
package influxdb
