package dispatch

import (
	"math"

	"github.com/kilianp07/agvfleet/core/model"
)

// relocate picks a holding station for every blocking robot: the closest
// parking with a free slot, else the closest queue station that no busy
// robot has to cross. The robots get no edge; the caller turns each
// relocation into a parking task.
func (c *cycle) relocate(blocking []*model.Robot) {
	if len(blocking) == 0 {
		return
	}
	usage := c.stationUsage()
	onPath, err := c.busyPathStations()
	if err != nil {
		c.d.logger.Warnf("relocation skipped: %v", err)
		return
	}
	for _, r := range blocking {
		here := c.stationOf(*r)
		target := c.nearestHolding(r, c.d.stations.OfKind(model.StationParking), usage, nil, here)
		if target == "" {
			target = c.nearestHolding(r, c.d.stations.OfKind(model.StationQueue), usage, onPath, here)
		}
		if target == "" {
			c.d.logger.Warnf("robot %s blocks a busy path and no holding station is free", r.ID)
		} else {
			usage[target]++
		}
		c.plan.Relocations = append(c.plan.Relocations, Relocation{RobotID: r.ID, StationID: target})
	}
}

func (c *cycle) nearestHolding(r *model.Robot, candidates []string, usage map[string]int, exclude map[string]struct{}, here string) string {
	best, bestCost := "", math.Inf(1)
	for _, s := range candidates {
		if s == here || usage[s] >= c.d.stations.Capacity(s) {
			continue
		}
		if _, skip := exclude[s]; skip {
			continue
		}
		goal, err := c.d.graph.GoalNode(s, model.StepMoveToStation)
		if err != nil {
			continue
		}
		p, err := c.view.ShortestPath(r.Node, goal)
		if err != nil {
			continue
		}
		if p.Cost < bestCost {
			best, bestCost = s, p.Cost
		}
	}
	return best
}
