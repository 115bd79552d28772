package battery

import (
	"time"

	"github.com/kilianp07/agvfleet/core/model"
)

// Phase is the swap state of one robot.
type Phase int

const (
	Idle Phase = iota
	PendingSwap
	RescheduledSwap
	SwapInProgress
)

func (p Phase) String() string {
	switch p {
	case PendingSwap:
		return "pending"
	case RescheduledSwap:
		return "rescheduled"
	case SwapInProgress:
		return "in_progress"
	default:
		return "idle"
	}
}

// EventKind tells the consumer what happened to a swap task.
type EventKind int

const (
	EventNew EventKind = iota + 1
	EventUpdated
)

// Event is emitted by a transition that produced or changed a swap task.
type Event struct {
	Kind EventKind
	Task *model.Task
}

// State is the swap entry of one robot. Task is nil when Phase is Idle.
type State struct {
	Phase Phase
	Task  *model.Task
}

// schedule attaches a fresh swap task to an idle robot.
func schedule(s State, task *model.Task) (State, *Event) {
	if s.Phase != Idle {
		return s, nil
	}
	return State{Phase: PendingSwap, Task: task}, &Event{Kind: EventNew, Task: task}
}

// reschedule pulls the start of a waiting swap forward to latest. Swaps in
// progress are never touched.
func reschedule(s State, latest time.Time) (State, *Event) {
	if s.Phase != PendingSwap && s.Phase != RescheduledSwap {
		return s, nil
	}
	if !s.Task.StartTime.After(latest) {
		return s, nil
	}
	t := s.Task.Clone()
	t.StartTime = latest
	return State{Phase: RescheduledSwap, Task: t}, &Event{Kind: EventUpdated, Task: t}
}

// start marks the swap as running.
func start(s State) State {
	if s.Phase != PendingSwap && s.Phase != RescheduledSwap {
		return s
	}
	return State{Phase: SwapInProgress, Task: s.Task}
}

// cancel drops a swap that has not started yet.
func cancel(s State) State {
	if s.Phase != PendingSwap && s.Phase != RescheduledSwap {
		return s
	}
	return State{Phase: Idle}
}

// finish releases the robot; the next run schedules a new swap.
func finish(State) State { return State{Phase: Idle} }

// needsPlan reports whether the entry has to go through createNewPlan.
func needsPlan(s State, latest time.Time) bool {
	switch s.Phase {
	case Idle:
		return true
	case PendingSwap, RescheduledSwap:
		return s.Task.StartTime.After(latest)
	default:
		return false
	}
}
