package routegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/model"
)

func TestBlockOtherStationsRefusesThirdStation(t *testing.T) {
	g := siteGraph(t)
	v := g.NewView(nil)

	o := v.BlockOtherStations("a", "c")
	_, open := o.Cost(model.EdgeKey{From: "X.in", To: "X.out"})
	assert.False(t, open, "internal edge of a third station must be blocked")
	c, open := o.Cost(model.EdgeKey{From: "a", To: "X.in"})
	assert.True(t, open, "spur from the corridor stays open")
	assert.Equal(t, 0.1, c)

	p, err := v.ShortestPath("a", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.Nodes)
	assert.Equal(t, 4.0, p.Cost)
	assert.Equal(t, []model.EdgeKey{{From: "a", To: "b"}, {From: "b", To: "c"}}, p.Edges)
}

func TestShortestPathThroughOwnStation(t *testing.T) {
	g := siteGraph(t)
	v := g.NewView(nil)
	p, err := v.ShortestPath("X.in", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"X.in", "X.out", "c"}, p.Nodes)
	assert.InDelta(t, 0.2, p.Cost, 1e-9)
}

func TestShortestPathIntoDockSequence(t *testing.T) {
	g := siteGraph(t)
	v := g.NewView(nil)
	p, err := v.ShortestPath("D.end", "C.wait")
	require.NoError(t, err)
	assert.Equal(t, []string{"D.end", "c", "C.wait"}, p.Nodes)

	// a robot leaving the charger can not cut through the dock
	p, err = v.ShortestPath("C.end", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"C.end", "d", "a", "b", "c"}, p.Nodes)
}

func TestShortestPathNoPath(t *testing.T) {
	g := siteGraph(t)
	v := g.NewView(nil)
	// re-entering the dock from inside it takes the full corridor loop
	_, err := v.ShortestPath("D.wait", "D.dock")
	require.NoError(t, err)
	_, err = v.ShortestPath("a", "missing")
	assert.ErrorIs(t, err, model.ErrConfiguration)

	nodes := []model.Node{{ID: "a"}, {ID: "b"}}
	isolated, err := New(nodes, nil)
	require.NoError(t, err)
	_, err = isolated.NewView(nil).ShortestPath("a", "b")
	assert.ErrorIs(t, err, model.ErrNoPath)
}

func TestShortestPathSameNode(t *testing.T) {
	g := siteGraph(t)
	p, err := g.NewView(nil).ShortestPath("a", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.Nodes)
	assert.Empty(t, p.Edges)
}

func TestGroupOccupants(t *testing.T) {
	g := siteGraph(t)
	v := g.NewView(map[model.EdgeKey][]string{
		{From: "d", To: "e"}: {"r1"},
		{From: "a", To: "Q"}: {"r3", "r2"},
	})
	ids, err := v.GroupOccupants(model.EdgeKey{From: "e", To: "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	ids, err = v.GroupOccupants(model.EdgeKey{From: "a", To: "Q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, ids)
	require.NoError(t, v.CheckGroups())

	bad := g.NewView(map[model.EdgeKey][]string{
		{From: "d", To: "e"}: {"r1"},
		{From: "e", To: "d"}: {"r2"},
	})
	_, err = bad.GroupOccupants(model.EdgeKey{From: "d", To: "e"})
	assert.ErrorIs(t, err, model.ErrGroupInvariant)
	assert.ErrorIs(t, bad.CheckGroups(), model.ErrGroupInvariant)
}

func TestViewsAreIndependent(t *testing.T) {
	g := siteGraph(t)
	v1 := g.NewView(map[model.EdgeKey][]string{{From: "a", To: "b"}: {"r1"}})
	v2 := g.NewView(nil)
	assert.Equal(t, []string{"r1"}, v1.Occupants(model.EdgeKey{From: "a", To: "b"}))
	assert.Empty(t, v2.Occupants(model.EdgeKey{From: "a", To: "b"}))
	assert.NotSame(t, v1.BlockOtherStations("a", "c"), v2.BlockOtherStations("a", "c"))
	assert.Same(t, v1.BlockOtherStations("a", "c"), v1.BlockOtherStations("b", "d"))
}
