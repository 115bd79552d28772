package routegraph

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/kilianp07/agvfleet/core/model"
)

// Path is a route between two nodes.
type Path struct {
	Nodes []string
	Edges []model.EdgeKey
	Cost  float64
}

// Overlay holds the dynamic cost of every edge for one station pair.
// A missing entry means the edge is blocked.
type Overlay struct {
	cost map[model.EdgeKey]float64
	wg   *simple.WeightedDirectedGraph
}

// Cost returns the dynamic cost of an edge and false when the edge is blocked.
func (o *Overlay) Cost(k model.EdgeKey) (float64, bool) {
	c, ok := o.cost[k]
	return c, ok
}

type stationPair struct{ from, to string }

// View is the cycle-local state over a Graph: occupancy and cached overlays.
// A View must not outlive the cycle it was created for.
type View struct {
	g         *Graph
	occupants map[model.EdgeKey][]string
	overlays  map[stationPair]*Overlay
	trees     map[stationPair]map[string]path.Shortest
}

// NewView creates a View. occupants maps each edge to the robots currently on it.
func (g *Graph) NewView(occupants map[model.EdgeKey][]string) *View {
	occ := make(map[model.EdgeKey][]string, len(occupants))
	for k, ids := range occupants {
		cp := append([]string(nil), ids...)
		sort.Strings(cp)
		occ[k] = cp
	}
	return &View{
		g:         g,
		occupants: occ,
		overlays:  make(map[stationPair]*Overlay),
		trees:     make(map[stationPair]map[string]path.Shortest),
	}
}

// Graph returns the underlying topology.
func (v *View) Graph() *Graph { return v.g }

// BlockOtherStations returns the overlay for a search from fromNode to toNode:
// every edge starts at its static cost, and edges whose endpoints both belong
// to a station other than the ones of fromNode and toNode are blocked.
func (v *View) BlockOtherStations(fromNode, toNode string) *Overlay {
	pair := stationPair{from: v.g.StationOf(fromNode), to: v.g.StationOf(toNode)}
	if o, ok := v.overlays[pair]; ok {
		return o
	}
	allowed := func(station string) bool {
		return station == "" || station == pair.from || station == pair.to
	}
	o := &Overlay{
		cost: make(map[model.EdgeKey]float64, len(v.g.edgeOrder)),
		wg:   simple.NewWeightedDirectedGraph(0, math.Inf(1)),
	}
	for _, id := range v.g.nodeOrder {
		o.wg.AddNode(simple.Node(v.g.ids[id]))
	}
	for _, k := range v.g.edgeOrder {
		e := v.g.edges[k]
		if !allowed(v.g.StationOf(e.From)) && !allowed(v.g.StationOf(e.To)) {
			continue
		}
		o.cost[k] = e.Cost
		o.wg.SetWeightedEdge(o.wg.NewWeightedEdge(simple.Node(v.g.ids[e.From]), simple.Node(v.g.ids[e.To]), e.Cost))
	}
	v.overlays[pair] = o
	return o
}

// ShortestPath returns the cheapest route from fromNode to toNode under the
// station blocking of BlockOtherStations. It returns ErrNoPath when toNode is
// unreachable.
func (v *View) ShortestPath(fromNode, toNode string) (Path, error) {
	if _, ok := v.g.nodes[fromNode]; !ok {
		return Path{}, fmt.Errorf("%w: unknown node %s", model.ErrConfiguration, fromNode)
	}
	if _, ok := v.g.nodes[toNode]; !ok {
		return Path{}, fmt.Errorf("%w: unknown node %s", model.ErrConfiguration, toNode)
	}
	o := v.BlockOtherStations(fromNode, toNode)
	pair := stationPair{from: v.g.StationOf(fromNode), to: v.g.StationOf(toNode)}
	trees, ok := v.trees[pair]
	if !ok {
		trees = make(map[string]path.Shortest)
		v.trees[pair] = trees
	}
	tree, ok := trees[fromNode]
	if !ok {
		tree = path.DijkstraFrom(simple.Node(v.g.ids[fromNode]), o.wg)
		trees[fromNode] = tree
	}
	nodes, cost := tree.To(v.g.ids[toNode])
	if len(nodes) == 0 || math.IsInf(cost, 1) {
		return Path{}, fmt.Errorf("%w: %s to %s", model.ErrNoPath, fromNode, toNode)
	}
	p := Path{Nodes: make([]string, len(nodes)), Cost: cost}
	for i, n := range nodes {
		p.Nodes[i] = v.g.nodeOrder[n.ID()]
		if i > 0 {
			p.Edges = append(p.Edges, model.EdgeKey{From: p.Nodes[i-1], To: p.Nodes[i]})
		}
	}
	return p, nil
}

// Occupants returns the robots currently on the edge.
func (v *View) Occupants(k model.EdgeKey) []string {
	return append([]string(nil), v.occupants[k]...)
}

// GroupOccupants returns the edge's own occupants when it is ungrouped, and
// the occupants of every edge sharing its group otherwise. A group holding
// more than one robot yields ErrGroupInvariant.
func (v *View) GroupOccupants(k model.EdgeKey) ([]string, error) {
	e, ok := v.g.edges[k]
	if !ok {
		return nil, fmt.Errorf("%w: unknown edge %s", model.ErrConfiguration, k)
	}
	if e.Group == 0 {
		return v.Occupants(k), nil
	}
	var ids []string
	for _, gk := range v.g.groups[e.Group] {
		ids = append(ids, v.occupants[gk]...)
	}
	if len(ids) > 1 {
		return ids, fmt.Errorf("%w: group %d holds %v", model.ErrGroupInvariant, e.Group, ids)
	}
	return ids, nil
}

// CheckGroups verifies the mutual-exclusion invariant over every group.
func (v *View) CheckGroups() error {
	groups := make([]int, 0, len(v.g.groups))
	for id := range v.g.groups {
		groups = append(groups, id)
	}
	sort.Ints(groups)
	for _, id := range groups {
		if _, err := v.GroupOccupants(v.g.groups[id][0]); err != nil {
			return err
		}
	}
	return nil
}
