package util

import "github.com/kilianp07/agvfleet/core/model"

// Station ids of the fixture site.
const (
	Dock     = "D"
	Charger  = "C"
	Parking1 = "P1"
	Parking2 = "P2"
	Queue    = "Q"
	Shortcut = "X"
)

// GroupSpur is the mutual-exclusion group of the d<->e spur.
const GroupSpur = 7

// SiteNodes returns the nodes of the fixture site.
func SiteNodes() []model.Node {
	return []model.Node{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"},
		{ID: "D.dock", StationID: Dock, Role: model.RoleDockEntry},
		{ID: "D.wait", StationID: Dock, Role: model.RoleWaitEntry},
		{ID: "D.undock", StationID: Dock, Role: model.RoleUndockEntry},
		{ID: "D.end", StationID: Dock, Role: model.RoleEnd},
		{ID: "C.wait", StationID: Charger, Role: model.RoleWaitEntry},
		{ID: "C.end", StationID: Charger, Role: model.RoleEnd},
		{ID: "P1", StationID: Parking1},
		{ID: "P2", StationID: Parking2},
		{ID: "Q", StationID: Queue},
		{ID: "X.in", StationID: Shortcut},
		{ID: "X.out", StationID: Shortcut},
	}
}

// SiteEdges returns the edges of the fixture site.
func SiteEdges() []model.Edge {
	corridor := func(from, to string, cost float64) model.Edge {
		return model.Edge{From: from, To: to, Cost: cost, MaxOccupants: 1}
	}
	return []model.Edge{
		corridor("a", "b", 2),
		corridor("b", "c", 2),
		corridor("c", "d", 2),
		corridor("d", "a", 2),

		{From: "b", To: "D.dock", Cost: 1, MaxOccupants: 1, ConnectedStation: Dock, CapacityRole: model.CapacityApproach},
		corridor("D.dock", "D.wait", 1),
		corridor("D.wait", "D.undock", 1),
		corridor("D.undock", "D.end", 1),
		corridor("D.end", "c", 1),

		{From: "c", To: "C.wait", Cost: 1, MaxOccupants: 2, ConnectedStation: Charger, CapacityRole: model.CapacityApproach},
		corridor("C.wait", "C.end", 1),
		corridor("C.end", "d", 1),

		corridor("d", "P1", 1.5),
		corridor("P1", "a", 1.5),
		corridor("d", "P2", 3),
		corridor("P2", "a", 3),

		{From: "a", To: "Q", Cost: 1, MaxOccupants: 3, ConnectedStation: Queue, CapacityRole: model.CapacityQueue},
		corridor("Q", "b", 1.5),

		{From: "a", To: "X.in", Cost: 0.1, MaxOccupants: 2, ConnectedStation: Shortcut, CapacityRole: model.CapacityQueue},
		corridor("X.in", "X.out", 0.1),
		corridor("X.out", "c", 0.1),

		{From: "d", To: "e", Cost: 1, MaxOccupants: 1, Group: GroupSpur},
		{From: "e", To: "d", Cost: 1, MaxOccupants: 1, Group: GroupSpur},
	}
}

// SiteStations returns the stations of the fixture site.
func SiteStations() []model.Station {
	return []model.Station{
		{ID: Dock, Kind: model.StationDock, Position: model.Position{X: 2, Y: 1}},
		{ID: Charger, Kind: model.StationCharger, Position: model.Position{X: 4, Y: 1}},
		{ID: Parking1, Kind: model.StationParking, Position: model.Position{X: 4, Y: -1}},
		{ID: Parking2, Kind: model.StationParking, Position: model.Position{X: 3, Y: -2}},
		{ID: Queue, Kind: model.StationQueue, Position: model.Position{X: 1, Y: 1}},
		{ID: Shortcut, Kind: model.StationQueue, Position: model.Position{X: 2, Y: -1}},
	}
}
