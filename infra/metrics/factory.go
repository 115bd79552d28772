package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/agvfleet/core/factory"
	coremetrics "github.com/kilianp07/agvfleet/core/metrics"
)

// Sink type names accepted in metrics.sinks.
const (
	SinkNop        = "nop"
	SinkPrometheus = "prometheus"
	SinkInflux     = "influx"
)

func newProm(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c PromConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	return NewPromSinkWithConfig(prometheus.DefaultRegisterer, c)
}

func newInflux(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	return NewInfluxSinkWithFallback(c), nil
}

func init() {
	_ = coremetrics.RegisterMetricsSink(SinkNop, func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	_ = coremetrics.RegisterMetricsSink(SinkPrometheus, newProm)
	_ = coremetrics.RegisterMetricsSink(SinkInflux, newInflux)
}
