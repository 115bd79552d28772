package battery

import "github.com/prometheus/client_golang/prometheus"

var (
	swapsCreated     prometheus.Counter
	swapsRescheduled prometheus.Counter
)

func newCollectors() (prometheus.Counter, prometheus.Counter) {
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "battery_swaps_created_total",
		Help: "Number of swap tasks created",
	})
	rescheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "battery_swaps_rescheduled_total",
		Help: "Number of swap tasks moved to an earlier start",
	})
	return created, rescheduled
}

func init() {
	swapsCreated, swapsRescheduled = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers battery metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(swapsCreated, swapsRescheduled)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg when not nil.
func ResetMetrics(reg prometheus.Registerer) {
	swapsCreated, swapsRescheduled = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
