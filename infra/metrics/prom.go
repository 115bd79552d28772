package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/agvfleet/core/metrics"
)

// PromSink exposes cycle and swap records as Prometheus metrics.
type PromSink struct {
	cycles  *prometheus.CounterVec
	latency prometheus.Histogram
	planned *prometheus.GaugeVec
	swaps   *prometheus.CounterVec
	fleet   prometheus.Gauge
}

// PromConfig tunes the Prometheus sink.
type PromConfig struct {
	// LatencyBuckets are the cycle latency histogram bounds in seconds.
	LatencyBuckets []float64 `json:"latency_buckets"`
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	return NewPromSinkWithConfig(reg, PromConfig{})
}

// NewPromSinkWithConfig is NewPromSinkWithRegistry with custom buckets.
// Collectors already registered keep their original buckets.
func NewPromSinkWithConfig(reg prometheus.Registerer, cfg PromConfig) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := cfg.LatencyBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	s := &PromSink{}
	var err error
	if s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_cycles_total",
		Help: "Dispatch cycles by outcome",
	}, []string{"aborted"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_cycle_latency_seconds",
		Help:    "Duration of dispatch cycles as seen by the fleet service",
		Buckets: buckets,
	})); err != nil {
		return nil, err
	}
	if s.planned, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_last_cycle",
		Help: "Counts of the last successful cycle",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.swaps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_swaps_total",
		Help: "Battery swap state changes",
	}, []string{"action", "charger"})); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_robots",
		Help: "Number of robots reported in the last cycle",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordCycle counts the cycle and, when it produced a plan, exports its sizes.
func (s *PromSink) RecordCycle(rec coremetrics.CycleRecord) error {
	s.cycles.WithLabelValues(strconv.FormatBool(rec.Aborted)).Inc()
	s.latency.Observe(rec.Duration.Seconds())
	if rec.Aborted {
		return nil
	}
	s.planned.WithLabelValues("tasks").Set(float64(rec.Tasks))
	s.planned.WithLabelValues("moves").Set(float64(rec.Moves))
	s.planned.WithLabelValues("assignments").Set(float64(rec.Assignments))
	s.planned.WithLabelValues("relocations").Set(float64(rec.Relocations))
	return nil
}

// RecordSwap counts a swap state change.
func (s *PromSink) RecordSwap(rec coremetrics.SwapRecord) error {
	s.swaps.WithLabelValues(rec.Action, rec.Charger).Inc()
	return nil
}

// RecordFleetSize sets the fleet gauge.
func (s *PromSink) RecordFleetSize(size int) error {
	s.fleet.Set(float64(size))
	return nil
}
