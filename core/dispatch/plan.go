package dispatch

import (
	"time"

	"github.com/kilianp07/agvfleet/core/model"
)

// Move is the command issued to one robot for this cycle.
type Move struct {
	TaskID    string        `json:"task_id"`
	NextEdge  model.EdgeKey `json:"next_edge"`
	EndOfStep bool          `json:"end_of_step"`
}

// Relocation asks the caller to move a blocking robot out of the way.
// StationID is empty when no holding point had room.
type Relocation struct {
	RobotID   string `json:"robot_id"`
	StationID string `json:"station_id,omitempty"`
}

// Plan is the outcome of one dispatch cycle.
type Plan struct {
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`
	// Moves holds one entry per robot that received a next edge.
	Moves map[string]Move `json:"moves"`
	// Assignments maps each robot bound this cycle to its task.
	Assignments map[string]string `json:"assignments"`
	Relocations []Relocation      `json:"relocations,omitempty"`
}

func newPlan(id string, ts time.Time) Plan {
	return Plan{
		CycleID:     id,
		Timestamp:   ts,
		Moves:       make(map[string]Move),
		Assignments: make(map[string]string),
	}
}
