// Package registry provides the per-cycle views over robots and stations.
package registry

import (
	"fmt"
	"sort"

	"github.com/kilianp07/agvfleet/core/model"
)

// Robots is the per-cycle robot registry.
type Robots struct {
	robots map[string]*model.Robot
	order  []string
}

// NewRobots returns an empty registry.
func NewRobots() *Robots {
	return &Robots{robots: make(map[string]*model.Robot)}
}

// SetRobots replaces the registry content, keeping only planning-enabled
// robots. Records are copied; bound tasks and planned edges are cleared.
func (r *Robots) SetRobots(records []model.Robot) {
	r.robots = make(map[string]*model.Robot, len(records))
	r.order = r.order[:0]
	for _, rec := range records {
		if !rec.PlanningEnabled {
			continue
		}
		cp := rec
		cp.Task = nil
		cp.NextEdge = model.EdgeKey{}
		cp.EndOfStep = false
		r.robots[cp.ID] = &cp
		r.order = append(r.order, cp.ID)
	}
	sort.Strings(r.order)
}

// Get returns the robot with the given id.
func (r *Robots) Get(id string) (*model.Robot, bool) {
	rb, ok := r.robots[id]
	return rb, ok
}

// All returns every robot sorted by id.
func (r *Robots) All() []*model.Robot {
	out := make([]*model.Robot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.robots[id])
	}
	return out
}

// Assign binds task to the robot and records the robot on the task.
func (r *Robots) Assign(robotID string, task *model.Task) error {
	rb, ok := r.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownRobot, robotID)
	}
	if task.RobotID != "" && task.RobotID != robotID {
		return fmt.Errorf("%w: task %s names robot %s, not %s", model.ErrAssignmentConflict, task.ID, task.RobotID, robotID)
	}
	if rb.Task != nil && rb.Task.ID != task.ID {
		return fmt.Errorf("%w: robot %s already holds task %s", model.ErrAssignmentConflict, robotID, rb.Task.ID)
	}
	task.RobotID = robotID
	if task.Status == model.TaskPending {
		task.Status = model.TaskAssigned
	}
	rb.Task = task
	return nil
}

// SetNextEdge records the edge the robot will enter next.
func (r *Robots) SetNextEdge(robotID string, edge model.EdgeKey) error {
	rb, ok := r.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownRobot, robotID)
	}
	if rb.Task == nil {
		return fmt.Errorf("%w: %s", model.ErrNoTask, robotID)
	}
	rb.NextEdge = edge
	return nil
}

// SetEndOfStep flags whether the next edge completes the current step.
func (r *Robots) SetEndOfStep(robotID string, end bool) error {
	rb, ok := r.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownRobot, robotID)
	}
	if rb.NextEdge.IsZero() {
		return fmt.Errorf("%w: %s", model.ErrNoNextEdge, robotID)
	}
	rb.EndOfStep = end
	return nil
}

// Free returns the robots holding no task, sorted by id.
func (r *Robots) Free() []*model.Robot {
	var out []*model.Robot
	for _, id := range r.order {
		if rb := r.robots[id]; rb.Task == nil {
			out = append(out, rb)
		}
	}
	return out
}

// Busy returns the robots holding a task, sorted by id.
func (r *Robots) Busy() []*model.Robot {
	var out []*model.Robot
	for _, id := range r.order {
		if rb := r.robots[id]; rb.Task != nil {
			out = append(out, rb)
		}
	}
	return out
}

// IDsOnFutureEdges returns the robots whose next edge is in edges.
func (r *Robots) IDsOnFutureEdges(edges ...model.EdgeKey) []string {
	set := make(map[model.EdgeKey]struct{}, len(edges))
	for _, e := range edges {
		set[e] = struct{}{}
	}
	var out []string
	for _, id := range r.order {
		k := r.robots[id].NextEdge
		if k.IsZero() {
			continue
		}
		if _, ok := set[k]; ok {
			out = append(out, id)
		}
	}
	return out
}

// CurrentGoals maps each robot with a task to its task's goal station.
func (r *Robots) CurrentGoals() map[string]string {
	out := make(map[string]string)
	for _, id := range r.order {
		if rb := r.robots[id]; rb.Task != nil {
			out[id] = rb.Task.GoalStation()
		}
	}
	return out
}

// Occupancy maps every edge to the robots currently on it. It takes the
// reported robots rather than the registry: robots excluded from planning
// still hold the edge they stand on.
func Occupancy(robots []model.Robot) map[model.EdgeKey][]string {
	out := make(map[model.EdgeKey][]string)
	for _, r := range robots {
		if !r.Edge.IsZero() {
			out[r.Edge] = append(out[r.Edge], r.ID)
		}
	}
	return out
}
