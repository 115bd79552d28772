// Package routegraph holds the directed route network shared by the fleet.
//
// A Graph is validated once and never mutated. Per-cycle state (edge
// occupancy and the dynamic cost overlay used to keep a path search out of
// third-party stations) lives in a View, which is created at the start of a
// dispatch cycle and dropped at its end. Path searches run Dijkstra from
// gonum over a weighted digraph built from the overlay.
package routegraph
