package metrics

import (
	"context"
	"errors"

	"github.com/kilianp07/agvfleet/core/events"
	coremetrics "github.com/kilianp07/agvfleet/core/metrics"
	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/internal/eventbus"
)

// StartEventCollector forwards bus events to the sink until ctx is canceled.
func StartEventCollector(ctx context.Context, cycles *eventbus.TypedBus[events.CycleEvent], swaps *eventbus.TypedBus[events.SwapEvent], sink coremetrics.MetricsSink) {
	if sink == nil {
		return
	}
	if cycles != nil {
		cycles.Listen(ctx, func(e events.CycleEvent) {
			_ = sink.RecordCycle(cycleRecord(e))
			if r, ok := sink.(coremetrics.FleetSizeRecorder); ok {
				_ = r.RecordFleetSize(e.Robots)
			}
		})
	}
	if swaps != nil {
		if r, ok := sink.(coremetrics.SwapRecorder); ok {
			swaps.Listen(ctx, func(e events.SwapEvent) {
				_ = r.RecordSwap(coremetrics.SwapRecord{
					RobotID:   e.RobotID,
					TaskID:    e.TaskID,
					Charger:   e.Charger,
					Action:    string(e.Action),
					StartTime: e.StartTime,
					Time:      e.Time,
				})
			})
		}
	}
}

func cycleRecord(e events.CycleEvent) coremetrics.CycleRecord {
	rec := coremetrics.CycleRecord{
		CycleID:     e.CycleID,
		Time:        e.Time,
		Duration:    e.Duration,
		Robots:      e.Robots,
		Tasks:       e.Tasks,
		Moves:       e.Moves,
		Assignments: e.Assignments,
		Relocations: e.Relocations,
	}
	if e.Err != nil {
		rec.Aborted = true
		rec.Reason = reason(e.Err)
	}
	return rec
}

func reason(err error) string {
	for _, c := range []struct {
		err  error
		name string
	}{
		{model.ErrConfiguration, "configuration"},
		{model.ErrAssignmentConflict, "assignment_conflict"},
		{model.ErrGroupInvariant, "group_invariant"},
		{model.ErrPlanningTimeout, "planning_timeout"},
	} {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "other"
}
