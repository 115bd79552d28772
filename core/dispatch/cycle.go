package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/registry"
	"github.com/kilianp07/agvfleet/core/routegraph"
	"github.com/kilianp07/agvfleet/core/taskqueue"
)

// cycle holds the state of one Cycle call. Nothing in it survives the call.
type cycle struct {
	d        *Dispatcher
	now      time.Time
	deadline time.Time
	robots   *registry.Robots
	// present lists every reported robot, planning-enabled or not.
	present []model.Robot
	queue   *taskqueue.Queue
	view    *routegraph.View
	plan    Plan
}

func (c *cycle) stationOf(r model.Robot) string {
	if s := c.d.graph.StationOf(r.CurrentNode()); s != "" {
		return s
	}
	if r.Edge.IsZero() {
		return r.StationID
	}
	return ""
}

// stationUsage counts every robot at the station it stands on, plus every
// bound robot at its goal station when that differs.
func (c *cycle) stationUsage() map[string]int {
	usage := c.d.stations.EmptyUsageMap()
	for _, r := range c.present {
		if s := c.stationOf(r); s != "" {
			usage[s]++
		}
	}
	for id, goal := range c.robots.CurrentGoals() {
		r, _ := c.robots.Get(id)
		if goal != "" && goal != c.stationOf(*r) {
			usage[goal]++
		}
	}
	return usage
}

// idleAt reports whether a robot without a task sits at station.
func (c *cycle) idleAt(station string) bool {
	for _, r := range c.present {
		if c.stationOf(r) != station {
			continue
		}
		if rb, ok := c.robots.Get(r.ID); ok && rb.HasTask() {
			continue
		}
		return true
	}
	return false
}

func (c *cycle) bind(r *model.Robot, t *model.Task) error {
	if err := c.robots.Assign(r.ID, t); err != nil {
		return err
	}
	c.plan.Assignments[r.ID] = t.ID
	c.queue.RemoveByIDs(t.ID)
	return nil
}

// bindInFlight handles started tasks whose robot has not been bound yet.
// A robot already at its goal (or at no station) moves on immediately; a
// robot heading to another station only moves when the goal has a free
// admission slot and no idle robot parked on it.
func (c *cycle) bindInFlight() error {
	for _, t := range c.queue.All() {
		if !t.Started() || t.RobotID == "" {
			continue
		}
		r, ok := c.robots.Get(t.RobotID)
		if !ok {
			c.d.logger.Debugf("task %s: robot %s is not planning-enabled", t.ID, t.RobotID)
			continue
		}
		goal := t.GoalStation()
		here := c.stationOf(*r)
		if here == "" || here == goal {
			if err := c.bind(r, t); err != nil {
				return err
			}
			if err := c.setTaskEdge(r); err != nil {
				return err
			}
			continue
		}
		usage := c.stationUsage()
		admit := usage[goal] < c.d.stations.Capacity(goal) && !c.idleAt(goal)
		if err := c.bind(r, t); err != nil {
			return err
		}
		if !admit {
			c.d.logger.Debugf("task %s: station %s has no free slot for %s", t.ID, goal, r.ID)
			continue
		}
		if err := c.setTaskEdge(r); err != nil {
			return err
		}
	}
	return nil
}

// bindPreAssigned binds not-started tasks that already name a free robot.
func (c *cycle) bindPreAssigned() error {
	for _, r := range c.robots.Free() {
		for _, t := range c.queue.All() {
			if t.Started() || t.RobotID != r.ID || !t.Due(c.now) {
				continue
			}
			if err := c.bind(r, t); err != nil {
				return err
			}
			if err := c.setTaskEdge(r); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// goalNode returns the node that completes the robot's current step.
func (c *cycle) goalNode(t *model.Task) (string, error) {
	step, ok := t.CurrentStep()
	if !ok {
		return "", fmt.Errorf("%w: task %s has no step left", model.ErrConfiguration, t.ID)
	}
	return c.d.graph.GoalNode(t.GoalStation(), step.Kind)
}

// setTaskEdge plans the next edge of a bound robot. A robot that cannot
// move this cycle keeps its task and gets no edge.
func (c *cycle) setTaskEdge(r *model.Robot) error {
	if !r.Ready || r.Node == "" {
		return nil
	}
	step, ok := r.Task.CurrentStep()
	if !ok {
		return nil
	}
	goal, err := c.goalNode(r.Task)
	if err != nil {
		return err
	}
	if r.Node == goal {
		return nil
	}
	p, err := c.view.ShortestPath(r.Node, goal)
	if errors.Is(err, model.ErrNoPath) {
		noPathTotal.Inc()
		c.d.logger.Debugf("robot %s: %v", r.ID, err)
		return nil
	}
	if err != nil {
		return err
	}
	next := p.Edges[0]
	ok, err = c.admissible(r.ID, next)
	if err != nil {
		return err
	}
	if !ok {
		c.d.logger.Debugf("robot %s: edge %s is full", r.ID, next)
		return nil
	}
	if err := c.robots.SetNextEdge(r.ID, next); err != nil {
		return err
	}
	end := step.Kind != model.StepMoveToStation || len(p.Edges) == 1
	if err := c.robots.SetEndOfStep(r.ID, end); err != nil {
		return err
	}
	c.plan.Moves[r.ID] = Move{TaskID: r.Task.ID, NextEdge: next, EndOfStep: end}
	return nil
}

// admissible reports whether robotID may enter edge k given the current
// occupants and the edges already planned this cycle.
func (c *cycle) admissible(robotID string, k model.EdgeKey) (bool, error) {
	e, ok := c.d.graph.Edge(k)
	if !ok {
		return false, fmt.Errorf("%w: unknown edge %s", model.ErrConfiguration, k)
	}
	if e.Group != 0 {
		occ, err := c.view.GroupOccupants(k)
		if err != nil {
			return false, err
		}
		if others(occ, robotID) > 0 {
			return false, nil
		}
		return others(c.robots.IDsOnFutureEdges(c.d.graph.GroupEdges(e.Group)...), robotID) == 0, nil
	}
	n := others(c.view.Occupants(k), robotID) + others(c.robots.IDsOnFutureEdges(k), robotID)
	return n < e.MaxOccupants, nil
}

func others(ids []string, self string) int {
	n := 0
	for _, id := range ids {
		if id != self {
			n++
		}
	}
	return n
}
