// Package influxdb ships variable telemetry to an InfluxDB v2 server.
//
// The integration is optional: when disabled in config, Connect returns
// ErrDisabled and the rest of the service runs without it. Numeric
// variable changes become points in the "ventilation" measurement,
// availability transitions land in "availability".
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//
//	client.WriteVariableMetric(mac, "temperature_outside_air", 8.5, time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched; failures surface asynchronously
// through the SetOnError callback. Connection and health check errors
// are returned directly.
package influxdb
