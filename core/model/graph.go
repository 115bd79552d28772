package model

import "fmt"

// EdgeKey identifies a directed edge by its tail and head node.
type EdgeKey struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// IsZero reports whether the key designates no edge.
func (k EdgeKey) IsZero() bool { return k.From == "" && k.To == "" }

func (k EdgeKey) String() string { return fmt.Sprintf("%s->%s", k.From, k.To) }

// SectionRole distinguishes the sub-nodes of a station.
type SectionRole string

const (
	RoleNone        SectionRole = ""
	RoleDockEntry   SectionRole = "dock_entry"
	RoleWaitEntry   SectionRole = "wait_entry"
	RoleUndockEntry SectionRole = "undock_entry"
	RoleEnd         SectionRole = "end"
)

// Valid reports whether the role is known.
func (r SectionRole) Valid() bool {
	switch r {
	case RoleNone, RoleDockEntry, RoleWaitEntry, RoleUndockEntry, RoleEnd:
		return true
	}
	return false
}

// CapacityRole tells which station capacity an edge carries.
type CapacityRole string

const (
	CapacityNone     CapacityRole = ""
	CapacityApproach CapacityRole = "approach"
	CapacityQueue    CapacityRole = "queue"
)

// Node is a vertex of the route graph.
type Node struct {
	ID        string
	StationID string
	Role      SectionRole
}

// Edge is a directed, capacity-limited segment of the route graph.
type Edge struct {
	From         string
	To           string
	Cost         float64
	MaxOccupants int
	// Group is the mutual-exclusion group id. 0 means the edge is not grouped.
	Group            int
	ConnectedStation string
	CapacityRole     CapacityRole
}

// Key returns the edge identifier.
func (e Edge) Key() EdgeKey { return EdgeKey{From: e.From, To: e.To} }
