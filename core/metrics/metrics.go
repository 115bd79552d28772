package metrics

import "time"

// CycleRecord summarizes one dispatch cycle.
type CycleRecord struct {
	CycleID     string
	Time        time.Time
	Duration    time.Duration
	Robots      int
	Tasks       int
	Moves       int
	Assignments int
	Relocations int
	Aborted     bool
	Reason      string
}

// MetricsSink records dispatch cycles.
type MetricsSink interface {
	RecordCycle(rec CycleRecord) error
}

// SwapRecord describes a battery swap state change.
type SwapRecord struct {
	RobotID   string
	TaskID    string
	Charger   string
	Action    string
	StartTime time.Time
	Time      time.Time
}

// SwapRecorder is implemented by sinks able to record swap changes.
type SwapRecorder interface {
	RecordSwap(rec SwapRecord) error
}

// FleetSizeRecorder records the number of robots reported in a cycle.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleRecord) error { return nil }
func (NopSink) RecordSwap(SwapRecord) error   { return nil }
func (NopSink) RecordFleetSize(int) error     { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordCycle(rec CycleRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordSwap forwards the record to the sinks supporting it.
func (m *MultiSink) RecordSwap(rec SwapRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SwapRecorder); ok {
			if err := r.RecordSwap(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards the fleet size to the sinks supporting it.
func (m *MultiSink) RecordFleetSize(size int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(FleetSizeRecorder); ok {
			if err := r.RecordFleetSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}
