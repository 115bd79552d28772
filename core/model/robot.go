package model

import "time"

// Robot is the per-cycle view of one guided vehicle.
type Robot struct {
	ID string
	// Edge is the last edge the robot entered. Its head is the robot's node.
	Edge EdgeKey
	// Node is the current node. It equals Edge.To when Edge is set.
	Node string
	// StationID is the station reported by the vehicle when it has no edge.
	StationID       string
	PlanningEnabled bool
	// Ready is true when the vehicle has finished its last command and
	// accepts a new move.
	Ready bool
	// TimeRemaining is the time left before the battery reaches its
	// warning threshold.
	TimeRemaining time.Duration

	Task      *Task
	NextEdge  EdgeKey
	EndOfStep bool
}

// CurrentNode returns the node the robot stands on or is heading to.
func (r *Robot) CurrentNode() string {
	if !r.Edge.IsZero() {
		return r.Edge.To
	}
	return r.Node
}

// HasTask reports whether a task is bound to the robot.
func (r *Robot) HasTask() bool { return r.Task != nil }
