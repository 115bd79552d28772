package model

import "errors"

var (
	// ErrConfiguration reports malformed task, robot, station or graph records.
	ErrConfiguration = errors.New("configuration error")
	// ErrAssignmentConflict is returned when a task already names a different robot.
	ErrAssignmentConflict = errors.New("assignment conflict")
	// ErrNoPath is returned when no route exists under the current station blocking.
	ErrNoPath = errors.New("no path")
	// ErrPlanningTimeout is returned when the assignment loop exceeds its budget.
	ErrPlanningTimeout = errors.New("planning timeout")
	// ErrGroupInvariant reports more than one robot inside a mutual-exclusion group.
	ErrGroupInvariant = errors.New("group invariant violation")

	ErrUnknownRobot = errors.New("unknown robot")
	ErrNoTask       = errors.New("robot has no task")
	ErrNoNextEdge   = errors.New("robot has no next edge")
)
