package mqtt

import (
	"time"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/snapshot"
)

// Command is the move order sent to one robot for one cycle.
type Command struct {
	CommandID string        `json:"command_id"`
	CycleID   string        `json:"cycle_id"`
	RobotID   string        `json:"robot_id"`
	TaskID    string        `json:"task_id"`
	NextEdge  model.EdgeKey `json:"next_edge"`
	EndOfStep bool          `json:"end_of_step"`
	Timestamp time.Time     `json:"timestamp"`
}

// LifecycleKind is the kind of progress report sent by a robot.
type LifecycleKind string

const (
	StepStarted   LifecycleKind = "step_started"
	TaskCompleted LifecycleKind = "task_completed"
)

// Lifecycle is a progress report of the robot executing a task.
type Lifecycle struct {
	RobotID string        `json:"robot_id"`
	TaskID  string        `json:"task_id"`
	Event   LifecycleKind `json:"event"`
	// Step is the index of the step that started.
	Step int `json:"step"`
}

// Handlers receive the inbound traffic. Nil handlers are skipped.
type Handlers struct {
	OnState     func(snapshot.RobotRecord)
	OnLifecycle func(Lifecycle)
	OnTasks     func([]snapshot.TaskRecord)
}

// Client carries commands to the robots and state back to the fleet service.
type Client interface {
	// SendCommand publishes the command on the robot's topic and returns
	// the command identifier.
	SendCommand(cmd Command) (commandID string, err error)
	// Subscribe registers the inbound handlers.
	Subscribe(h Handlers) error
	Disconnect()
}
