package routegraph

import (
	"fmt"

	"github.com/kilianp07/agvfleet/core/model"
)

// Sequencing describes which sub-nodes a station exposes.
type Sequencing int

const (
	// SequencingPlain stations are a single node.
	SequencingPlain Sequencing = iota
	// SequencingWaitOnly stations have a wait-entry and an end node.
	SequencingWaitOnly
	// SequencingDockWaitUndock stations have dock, wait and undock entries plus an end node.
	SequencingDockWaitUndock
)

func (s Sequencing) String() string {
	switch s {
	case SequencingWaitOnly:
		return "wait_only"
	case SequencingDockWaitUndock:
		return "dock_wait_undock"
	default:
		return "plain"
	}
}

// Sequencing derives the station layout from the section roles of its nodes.
func (g *Graph) Sequencing(station string) Sequencing {
	if g.sectionNode(station, model.RoleDockEntry) != "" {
		return SequencingDockWaitUndock
	}
	if g.sectionNode(station, model.RoleWaitEntry) != "" {
		return SequencingWaitOnly
	}
	return SequencingPlain
}

func (g *Graph) sectionNode(station string, role model.SectionRole) string {
	for _, id := range g.StationNodes(station) {
		if g.nodes[id].Role == role {
			return id
		}
	}
	return ""
}

// GoalNode maps a step kind to the node that marks the step as complete.
// SWAP_BATTERY is treated like WAIT. At a plain station without an end node
// both complete where the robot arrived.
func (g *Graph) GoalNode(station string, kind model.StepKind) (string, error) {
	if _, ok := g.stationNodes[station]; !ok {
		return "", fmt.Errorf("%w: station %s has no node", model.ErrConfiguration, station)
	}
	seq := g.Sequencing(station)
	var role model.SectionRole
	switch kind {
	case model.StepMoveToStation:
		switch seq {
		case SequencingDockWaitUndock:
			role = model.RoleDockEntry
		case SequencingWaitOnly:
			role = model.RoleWaitEntry
		default:
			role = model.RoleNone
		}
	case model.StepDock:
		role = model.RoleWaitEntry
	case model.StepWait, model.StepSwapBattery:
		if seq == SequencingDockWaitUndock {
			role = model.RoleUndockEntry
		} else {
			role = model.RoleEnd
		}
	case model.StepUndock:
		role = model.RoleEnd
	default:
		return "", fmt.Errorf("%w: unknown step kind %s", model.ErrConfiguration, kind)
	}
	if node := g.sectionNode(station, role); node != "" {
		return node, nil
	}
	if role == model.RoleNone {
		// plain station made of section nodes only: use its first node
		return g.StationNodes(station)[0], nil
	}
	if seq == SequencingPlain && (kind == model.StepWait || kind == model.StepSwapBattery) {
		return g.GoalNode(station, model.StepMoveToStation)
	}
	return "", fmt.Errorf("%w: station %s has no %s node for %s", model.ErrConfiguration, station, role, kind)
}

// CheckSteps resolves the goal node of every step. Non-move steps operate on
// the station of the closest preceding move.
func (g *Graph) CheckSteps(steps []model.Step) error {
	station := ""
	for i, st := range steps {
		if st.Kind == model.StepMoveToStation {
			station = st.StationID
		}
		if station == "" {
			return fmt.Errorf("%w: step %d (%s) has no station", model.ErrConfiguration, i, st.Kind)
		}
		if _, err := g.GoalNode(station, st.Kind); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// StationCapacity computes the maximum number of concurrent users per station.
//
//   - parking: 1
//   - queue: declared maximum of its queueing edge
//   - dock or wait-only station reached through an ungrouped approach edge:
//     declared maximum of that edge + 1 (the unit being served)
//   - stations reached through grouped edges: 1, governed by the group mutex
func (g *Graph) StationCapacity(stations []model.Station) map[string]int {
	out := make(map[string]int, len(stations))
	for _, s := range stations {
		switch s.Kind {
		case model.StationParking:
			out[s.ID] = 1
		case model.StationQueue:
			out[s.ID] = max(1, g.connectedMax(s.ID, model.CapacityQueue))
		default:
			e, ok := g.connectedEdge(s.ID, model.CapacityApproach)
			switch {
			case !ok:
				out[s.ID] = 1
			case e.Group != 0:
				out[s.ID] = 1
			default:
				out[s.ID] = e.MaxOccupants + 1
			}
		}
	}
	return out
}

func (g *Graph) connectedEdge(station string, role model.CapacityRole) (model.Edge, bool) {
	for _, k := range g.edgeOrder {
		e := g.edges[k]
		if e.ConnectedStation == station && e.CapacityRole == role {
			return e, true
		}
	}
	return model.Edge{}, false
}

func (g *Graph) connectedMax(station string, role model.CapacityRole) int {
	best := 0
	for _, k := range g.edgeOrder {
		e := g.edges[k]
		if e.ConnectedStation == station && e.CapacityRole == role && e.MaxOccupants > best {
			best = e.MaxOccupants
		}
	}
	return best
}

// HomeNode returns the node a robot reporting only a station id stands on:
// the end node when the station has one, otherwise its arrival node.
func (g *Graph) HomeNode(station string) (string, error) {
	if node := g.sectionNode(station, model.RoleEnd); node != "" {
		return node, nil
	}
	return g.GoalNode(station, model.StepMoveToStation)
}
