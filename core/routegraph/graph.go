package routegraph

import (
	"fmt"
	"sort"

	"github.com/kilianp07/agvfleet/core/model"
)

// Graph is an immutable route network.
type Graph struct {
	nodes     map[string]model.Node
	nodeOrder []string
	ids       map[string]int64

	edges     map[model.EdgeKey]model.Edge
	edgeOrder []model.EdgeKey
	groups    map[int][]model.EdgeKey

	stationNodes map[string][]string
}

// New validates the records and builds a Graph.
func New(nodes []model.Node, edges []model.Edge) (*Graph, error) {
	g := &Graph{
		nodes:        make(map[string]model.Node, len(nodes)),
		ids:          make(map[string]int64, len(nodes)),
		edges:        make(map[model.EdgeKey]model.Edge, len(edges)),
		groups:       make(map[int][]model.EdgeKey),
		stationNodes: make(map[string][]string),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node without id", model.ErrConfiguration)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", model.ErrConfiguration, n.ID)
		}
		if !n.Role.Valid() {
			return nil, fmt.Errorf("%w: node %s has unknown section role %q", model.ErrConfiguration, n.ID, n.Role)
		}
		if n.Role != model.RoleNone && n.StationID == "" {
			return nil, fmt.Errorf("%w: node %s has a section role but no station", model.ErrConfiguration, n.ID)
		}
		g.ids[n.ID] = int64(len(g.nodeOrder))
		g.nodes[n.ID] = n
		g.nodeOrder = append(g.nodeOrder, n.ID)
		if n.StationID != "" {
			g.stationNodes[n.StationID] = append(g.stationNodes[n.StationID], n.ID)
		}
	}
	for _, e := range edges {
		if err := g.addEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) addEdge(e model.Edge) error {
	k := e.Key()
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("%w: edge %s references unknown node %s", model.ErrConfiguration, k, e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("%w: edge %s references unknown node %s", model.ErrConfiguration, k, e.To)
	}
	if e.From == e.To {
		return fmt.Errorf("%w: self-loop edge %s", model.ErrConfiguration, k)
	}
	if _, dup := g.edges[k]; dup {
		return fmt.Errorf("%w: duplicate edge %s", model.ErrConfiguration, k)
	}
	if e.Cost < 0 {
		return fmt.Errorf("%w: edge %s has negative cost", model.ErrConfiguration, k)
	}
	if e.MaxOccupants < 1 {
		return fmt.Errorf("%w: edge %s allows no occupant", model.ErrConfiguration, k)
	}
	if e.Group < 0 {
		return fmt.Errorf("%w: edge %s has negative group id", model.ErrConfiguration, k)
	}
	g.edges[k] = e
	g.edgeOrder = append(g.edgeOrder, k)
	if e.Group != 0 {
		g.groups[e.Group] = append(g.groups[e.Group], k)
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (model.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given key.
func (g *Graph) Edge(k model.EdgeKey) (model.Edge, bool) {
	e, ok := g.edges[k]
	return e, ok
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []model.Edge {
	out := make([]model.Edge, 0, len(g.edgeOrder))
	for _, k := range g.edgeOrder {
		out = append(out, g.edges[k])
	}
	return out
}

// GroupEdges returns the edges sharing a non-zero group id.
func (g *Graph) GroupEdges(group int) []model.EdgeKey {
	return append([]model.EdgeKey(nil), g.groups[group]...)
}

// StationOf returns the station associated with a node, or "".
func (g *Graph) StationOf(node string) string {
	return g.nodes[node].StationID
}

// StationNodes returns the nodes associated with a station, sorted by id.
func (g *Graph) StationNodes(station string) []string {
	out := append([]string(nil), g.stationNodes[station]...)
	sort.Strings(out)
	return out
}

// Stations returns the ids of all stations referenced by nodes, sorted.
func (g *Graph) Stations() []string {
	out := make([]string, 0, len(g.stationNodes))
	for s := range g.stationNodes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// MaxAllowedOnEdge returns 1 for grouped edges and the declared maximum otherwise.
func (g *Graph) MaxAllowedOnEdge(k model.EdgeKey) int {
	e, ok := g.edges[k]
	if !ok {
		return 0
	}
	if e.Group != 0 {
		return 1
	}
	return e.MaxOccupants
}
