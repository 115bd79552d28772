package model

import (
	"fmt"
	"strings"
	"time"
)

// StepKind is the atomic action performed by a step.
type StepKind int

const (
	StepMoveToStation StepKind = iota
	StepDock
	StepWait
	StepSwapBattery
	StepUndock
)

var stepKindNames = map[StepKind]string{
	StepMoveToStation: "move_to_station",
	StepDock:          "dock",
	StepWait:          "wait",
	StepSwapBattery:   "swap_battery",
	StepUndock:        "undock",
}

func (k StepKind) String() string {
	if s, ok := stepKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// ParseStepKind converts a textual step kind into a StepKind.
func ParseStepKind(s string) (StepKind, error) {
	for k, name := range stepKindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown step kind %q", ErrConfiguration, s)
}

func (k StepKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *StepKind) UnmarshalText(b []byte) error {
	v, err := ParseStepKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskAssigned
	TaskInProgress
	TaskDone
)

var taskStatusNames = map[TaskStatus]string{
	TaskPending:    "pending",
	TaskAssigned:   "assigned",
	TaskInProgress: "in_progress",
	TaskDone:       "done",
}

func (s TaskStatus) String() string {
	if n, ok := taskStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("TaskStatus(%d)", int(s))
}

func (s TaskStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TaskStatus) UnmarshalText(b []byte) error {
	for k, name := range taskStatusNames {
		if strings.EqualFold(string(b), name) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown task status %q", ErrConfiguration, string(b))
}

// NotStarted is the ActiveStep value of a task whose first step has not begun.
const NotStarted = -1

// Step is one element of a task.
type Step struct {
	ID   string
	Kind StepKind
	// StationID is set for StepMoveToStation only.
	StationID string
}

// Task is an ordered sequence of steps executed by one robot.
type Task struct {
	ID         string
	Steps      []Step
	ActiveStep int
	Status     TaskStatus
	RobotID    string
	Weight     float64
	// Order is the submission position inside the current batch.
	Order     int
	StartTime time.Time
}

// Started reports whether the first step has begun.
func (t *Task) Started() bool { return t.ActiveStep >= 0 }

// CurrentStep returns the unfinished step: the active one, or the first when
// the task has not started.
func (t *Task) CurrentStep() (Step, bool) {
	i := t.ActiveStep
	if i < 0 {
		i = 0
	}
	if i >= len(t.Steps) {
		return Step{}, false
	}
	return t.Steps[i], true
}

// GoalStation returns the station the current step operates on. Non-move
// steps inherit the target of the closest preceding move.
func (t *Task) GoalStation() string {
	i := t.ActiveStep
	if i < 0 {
		i = 0
	}
	if i >= len(t.Steps) {
		i = len(t.Steps) - 1
	}
	for ; i >= 0; i-- {
		if t.Steps[i].Kind == StepMoveToStation {
			return t.Steps[i].StationID
		}
	}
	return ""
}

// Due reports whether the task may start at now.
func (t *Task) Due(now time.Time) bool {
	return t.StartTime.IsZero() || !t.StartTime.After(now)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Steps = append([]Step(nil), t.Steps...)
	return &c
}
