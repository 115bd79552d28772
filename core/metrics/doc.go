// Package metrics defines the sinks that receive dispatch cycle and battery
// swap records. Concrete sinks (Prometheus, InfluxDB) live in infra/metrics
// and register themselves in the sink factory; several configured sinks are
// combined into a MultiSink.
package metrics
