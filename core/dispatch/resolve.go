package dispatch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/agvfleet/core/model"
)

// resolve hands the remaining queued tasks to the free robots. Every pass
// that does not stop binds at least one task, so len(robots)+1 passes are
// enough; the deadline only guards against a broken invariant.
func (c *cycle) resolve() error {
	limit := c.d.cfg.MaxIterations
	if limit == 0 {
		limit = len(c.robots.All()) + 1
	}
	for i := 0; ; i++ {
		if i >= limit {
			return fmt.Errorf("%w: no fixed point after %d passes", model.ErrPlanningTimeout, i)
		}
		if c.d.clock().After(c.deadline) {
			return fmt.Errorf("%w: budget of %s exceeded", model.ErrPlanningTimeout, c.d.cfg.PlanningBudget())
		}
		free := c.freeRobots()
		blocking, err := c.blockingRobots(free)
		if err != nil {
			return err
		}
		drawn := c.drawTasks(len(free))

		var bound int
		switch {
		case len(drawn) > 0 && len(drawn) == len(free):
			_, err := c.assign(drawn, free)
			return err
		case len(blocking) > 0 && len(drawn) > 0:
			bound, err = c.assign(drawn[:min(len(blocking), len(drawn))], blocking)
			if err == nil && bound == 0 {
				bound, err = c.assign(drawn, free)
			}
		case len(free) > 0 && len(drawn) > 0:
			bound, err = c.assign(drawn, free)
		default:
			c.relocate(blocking)
			return nil
		}
		if err != nil {
			return err
		}
		if bound == 0 {
			c.relocate(blocking)
			return nil
		}
	}
}

// freeRobots returns the ready, task-less robots with a known position.
func (c *cycle) freeRobots() []*model.Robot {
	var out []*model.Robot
	for _, r := range c.robots.Free() {
		if r.Ready && r.Node != "" {
			out = append(out, r)
		}
	}
	return out
}

// busyPathStations collects the stations crossed by the goal path of every
// busy robot, the robot's own position excluded.
func (c *cycle) busyPathStations() (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, r := range c.robots.Busy() {
		if r.Node == "" {
			continue
		}
		goal, err := c.goalNode(r.Task)
		if err != nil {
			return nil, err
		}
		if goal == r.Node {
			continue
		}
		p, err := c.view.ShortestPath(r.Node, goal)
		if errors.Is(err, model.ErrNoPath) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, n := range p.Nodes[1:] {
			if s := c.d.graph.StationOf(n); s != "" {
				out[s] = struct{}{}
			}
		}
	}
	return out, nil
}

// blockingRobots returns the free robots parked on a queue station that a
// busy robot has to cross.
func (c *cycle) blockingRobots(free []*model.Robot) ([]*model.Robot, error) {
	if len(free) == 0 {
		return nil, nil
	}
	onPath, err := c.busyPathStations()
	if err != nil {
		return nil, err
	}
	var out []*model.Robot
	for _, r := range free {
		s := c.stationOf(*r)
		if s == "" || !c.d.stations.IsQueueKind(s) {
			continue
		}
		if _, ok := onPath[s]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// drawTasks picks up to limit due, unassigned tasks in priority order,
// skipping tasks whose destination has no admission slot left.
func (c *cycle) drawTasks(limit int) []*model.Task {
	if limit == 0 {
		return nil
	}
	usage := c.stationUsage()
	var out []*model.Task
	for _, t := range c.queue.UnassignedNotStarted() {
		if len(out) == limit {
			break
		}
		if !t.Due(c.now) {
			continue
		}
		goal := t.GoalStation()
		if usage[goal] >= c.d.stations.Capacity(goal) {
			continue
		}
		usage[goal]++
		out = append(out, t)
	}
	return out
}

// assign binds each task, in order, to the closest remaining robot and plans
// its first edge. Ties go to the lowest robot id.
func (c *cycle) assign(tasks []*model.Task, robots []*model.Robot) (int, error) {
	pool := append([]*model.Robot(nil), robots...)
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	bound := 0
	for _, t := range tasks {
		if len(pool) == 0 {
			break
		}
		goal, err := c.goalNode(t)
		if err != nil {
			return bound, err
		}
		best, bestCost := -1, math.Inf(1)
		for i, r := range pool {
			cost := 0.0
			if r.Node != goal {
				p, err := c.view.ShortestPath(r.Node, goal)
				if errors.Is(err, model.ErrNoPath) {
					continue
				}
				if err != nil {
					return bound, err
				}
				cost = p.Cost
			}
			if cost < bestCost {
				best, bestCost = i, cost
			}
		}
		if best < 0 {
			noPathTotal.Inc()
			c.d.logger.Debugf("task %s: no robot can reach %s", t.ID, goal)
			continue
		}
		r := pool[best]
		if err := c.bind(r, t); err != nil {
			return bound, err
		}
		if err := c.setTaskEdge(r); err != nil {
			return bound, err
		}
		pool = append(pool[:best], pool[best+1:]...)
		bound++
	}
	return bound, nil
}
