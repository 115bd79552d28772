// Package logging persists dispatch cycle outcomes for later inspection.
package logging

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/agvfleet/core/dispatch"
)

// LogRecord captures the inputs and outcome of one dispatch cycle.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	CycleID   string    `json:"cycle_id"`
	// Robots lists the ids reported to the cycle.
	Robots []string `json:"robots"`
	// Tasks lists the ids of the tasks known to the cycle.
	Tasks    []string       `json:"tasks"`
	Plan     *dispatch.Plan `json:"plan,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Aborted reports whether the cycle ended without a plan.
func (r LogRecord) Aborted() bool { return r.Plan == nil }

// LogQuery defines filters for retrieving records. Zero fields match all.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	RobotID string
	// AbortedOnly keeps only cycles that produced no plan.
	AbortedOnly bool
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

func (q LogQuery) matchesTime(ts time.Time) bool {
	if !q.Start.IsZero() && ts.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ts.After(q.End) {
		return false
	}
	return true
}

// matches applies every filter of q to r.
func (q LogQuery) matches(r LogRecord) bool {
	if !q.matchesTime(r.Timestamp) {
		return false
	}
	if q.AbortedOnly && !r.Aborted() {
		return false
	}
	if q.RobotID == "" {
		return true
	}
	if slices.Contains(r.Robots, q.RobotID) {
		return true
	}
	if r.Plan == nil {
		return false
	}
	if _, ok := r.Plan.Moves[q.RobotID]; ok {
		return true
	}
	if _, ok := r.Plan.Assignments[q.RobotID]; ok {
		return true
	}
	return slices.ContainsFunc(r.Plan.Relocations, func(rel dispatch.Relocation) bool {
		return rel.RobotID == q.RobotID
	})
}
