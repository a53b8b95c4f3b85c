// Package influxdb provides time-series event recording for BluLok Core.
//
// Key distribution transitions, route pass issuances and gateway dispatch
// outcomes are written to InfluxDB for operational dashboards. Writes are
// non-blocking and batched; a failed write never blocks or fails the
// domain operation that triggered it.
//
// The integration is optional. When disabled in config, Connect returns
// ErrDisabled and callers run without telemetry.
package influxdb
