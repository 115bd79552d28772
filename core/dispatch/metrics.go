package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cycleDuration   prometheus.Histogram
	movesIssued     prometheus.Counter
	tasksAssigned   prometheus.Counter
	robotsRelocated prometheus.Counter
	noPathTotal     prometheus.Counter
	cyclesAborted   *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter, *prometheus.CounterVec) {
	dur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_cycle_duration_seconds",
		Help:    "Wall-clock duration of a dispatch cycle",
		Buckets: prometheus.DefBuckets,
	})
	moves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_moves_total",
		Help: "Number of next-edge commands issued",
	})
	assigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Number of task to robot bindings",
	})
	relocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_relocations_total",
		Help: "Number of blocking robots sent to a holding point",
	})
	noPath := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_no_path_total",
		Help: "Number of path searches without a route",
	})
	aborted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_cycles_aborted_total",
		Help: "Number of cycles aborted without a plan",
	}, []string{"reason"})
	return dur, moves, assigned, relocated, noPath, aborted
}

func init() {
	cycleDuration, movesIssued, tasksAssigned, robotsRelocated, noPathTotal, cyclesAborted = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(cycleDuration, movesIssued, tasksAssigned, robotsRelocated, noPathTotal, cyclesAborted)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	cycleDuration, movesIssued, tasksAssigned, robotsRelocated, noPathTotal, cyclesAborted = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
