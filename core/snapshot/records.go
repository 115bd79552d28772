// Package snapshot decodes the site and fleet records exchanged with the
// outside world and converts them into core types.
package snapshot

import (
	"fmt"
	"time"

	"github.com/kilianp07/agvfleet/core/model"
)

// StationRecord is a station as it appears in a site file.
type StationRecord struct {
	ID       string         `json:"id" yaml:"id"`
	Kind     string         `json:"kind" yaml:"kind"`
	Position model.Position `json:"position" yaml:"position"`
}

// NodeRecord is a route graph node.
type NodeRecord struct {
	ID      string `json:"id" yaml:"id"`
	Station string `json:"station,omitempty" yaml:"station,omitempty"`
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
}

// EdgeRecord is a route graph edge.
type EdgeRecord struct {
	From             string  `json:"from" yaml:"from"`
	To               string  `json:"to" yaml:"to"`
	Cost             float64 `json:"cost" yaml:"cost"`
	MaxOccupants     int     `json:"max_occupants" yaml:"max_occupants"`
	Group            int     `json:"group,omitempty" yaml:"group,omitempty"`
	ConnectedStation string  `json:"connected_station,omitempty" yaml:"connected_station,omitempty"`
	CapacityRole     string  `json:"capacity_role,omitempty" yaml:"capacity_role,omitempty"`
}

// RobotRecord is the state reported by one vehicle.
type RobotRecord struct {
	ID              string         `json:"id" yaml:"id"`
	Edge            *model.EdgeKey `json:"edge,omitempty" yaml:"edge,omitempty"`
	Station         string         `json:"station,omitempty" yaml:"station,omitempty"`
	PlanningEnabled bool           `json:"planning_enabled" yaml:"planning_enabled"`
	Free            bool           `json:"free" yaml:"free"`
	// TimeRemainingS is the time before the battery warning threshold.
	TimeRemainingS float64 `json:"time_remaining_s" yaml:"time_remaining_s"`
}

// StepRecord is one step of a task record.
type StepRecord struct {
	ID      string `json:"id" yaml:"id"`
	Kind    string `json:"kind" yaml:"kind"`
	Station string `json:"station,omitempty" yaml:"station,omitempty"`
}

// TaskRecord is a task as submitted by the warehouse system.
type TaskRecord struct {
	ID         string       `json:"id" yaml:"id"`
	Steps      []StepRecord `json:"steps" yaml:"steps"`
	ActiveStep *int         `json:"active_step,omitempty" yaml:"active_step,omitempty"`
	Status     string       `json:"status,omitempty" yaml:"status,omitempty"`
	Robot      string       `json:"robot,omitempty" yaml:"robot,omitempty"`
	StartTime  *time.Time   `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	Weight     float64      `json:"weight" yaml:"weight"`
}

// ToModel converts the record into a Station.
func (r StationRecord) ToModel() (model.Station, error) {
	if r.ID == "" {
		return model.Station{}, fmt.Errorf("%w: station without id", model.ErrConfiguration)
	}
	kind, err := model.ParseStationKind(r.Kind)
	if err != nil {
		return model.Station{}, fmt.Errorf("station %s: %w", r.ID, err)
	}
	return model.Station{ID: r.ID, Kind: kind, Position: r.Position}, nil
}

// ToModel converts the record into a Node.
func (r NodeRecord) ToModel() model.Node {
	return model.Node{ID: r.ID, StationID: r.Station, Role: model.SectionRole(r.Role)}
}

// ToModel converts the record into an Edge.
func (r EdgeRecord) ToModel() (model.Edge, error) {
	role := model.CapacityRole(r.CapacityRole)
	switch role {
	case model.CapacityNone, model.CapacityApproach, model.CapacityQueue:
	default:
		return model.Edge{}, fmt.Errorf("%w: edge %s->%s has unknown capacity role %q", model.ErrConfiguration, r.From, r.To, r.CapacityRole)
	}
	if role != model.CapacityNone && r.ConnectedStation == "" {
		return model.Edge{}, fmt.Errorf("%w: edge %s->%s has a capacity role without station", model.ErrConfiguration, r.From, r.To)
	}
	return model.Edge{
		From:             r.From,
		To:               r.To,
		Cost:             r.Cost,
		MaxOccupants:     r.MaxOccupants,
		Group:            r.Group,
		ConnectedStation: r.ConnectedStation,
		CapacityRole:     role,
	}, nil
}

// ToModel converts the record into a Robot.
func (r RobotRecord) ToModel() (model.Robot, error) {
	if r.ID == "" {
		return model.Robot{}, fmt.Errorf("%w: robot without id", model.ErrConfiguration)
	}
	if r.TimeRemainingS < 0 {
		return model.Robot{}, fmt.Errorf("%w: robot %s has negative time remaining", model.ErrConfiguration, r.ID)
	}
	rb := model.Robot{
		ID:              r.ID,
		StationID:       r.Station,
		PlanningEnabled: r.PlanningEnabled,
		Ready:           r.Free,
		TimeRemaining:   time.Duration(r.TimeRemainingS * float64(time.Second)),
	}
	if r.Edge != nil {
		if r.Edge.From == "" || r.Edge.To == "" {
			return model.Robot{}, fmt.Errorf("%w: robot %s has an incomplete edge", model.ErrConfiguration, r.ID)
		}
		rb.Edge = *r.Edge
	}
	return rb, nil
}

// ToModel converts the record into a Task. A missing active step means the
// task has not started.
func (r TaskRecord) ToModel() (model.Task, error) {
	if r.ID == "" {
		return model.Task{}, fmt.Errorf("%w: task without id", model.ErrConfiguration)
	}
	if len(r.Steps) == 0 {
		return model.Task{}, fmt.Errorf("%w: task %s has no step", model.ErrConfiguration, r.ID)
	}
	t := model.Task{
		ID:         r.ID,
		ActiveStep: model.NotStarted,
		RobotID:    r.Robot,
		Weight:     r.Weight,
	}
	if r.ActiveStep != nil {
		t.ActiveStep = *r.ActiveStep
	}
	if r.StartTime != nil {
		t.StartTime = *r.StartTime
	}
	if r.Status != "" {
		if err := t.Status.UnmarshalText([]byte(r.Status)); err != nil {
			return model.Task{}, fmt.Errorf("task %s: %w", r.ID, err)
		}
	}
	for i, s := range r.Steps {
		kind, err := model.ParseStepKind(s.Kind)
		if err != nil {
			return model.Task{}, fmt.Errorf("task %s: %w", r.ID, err)
		}
		if kind == model.StepMoveToStation && s.Station == "" {
			return model.Task{}, fmt.Errorf("%w: task %s step %d moves to no station", model.ErrConfiguration, r.ID, i)
		}
		if i == 0 && kind != model.StepMoveToStation {
			return model.Task{}, fmt.Errorf("%w: task %s does not start with a move", model.ErrConfiguration, r.ID)
		}
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", r.ID, i)
		}
		t.Steps = append(t.Steps, model.Step{ID: id, Kind: kind, StationID: s.Station})
	}
	if t.ActiveStep < model.NotStarted || t.ActiveStep >= len(t.Steps) {
		return model.Task{}, fmt.Errorf("%w: task %s active step %d out of range", model.ErrConfiguration, r.ID, t.ActiveStep)
	}
	return t, nil
}

// FromTask converts a task back into its record form.
func FromTask(t model.Task) TaskRecord {
	r := TaskRecord{
		ID:     t.ID,
		Status: t.Status.String(),
		Robot:  t.RobotID,
		Weight: t.Weight,
	}
	if t.Started() {
		active := t.ActiveStep
		r.ActiveStep = &active
	}
	if !t.StartTime.IsZero() {
		start := t.StartTime
		r.StartTime = &start
	}
	for _, s := range t.Steps {
		r.Steps = append(r.Steps, StepRecord{ID: s.ID, Kind: s.Kind.String(), Station: s.StationID})
	}
	return r
}

// FromRobot converts a robot back into its record form.
func FromRobot(rb model.Robot) RobotRecord {
	r := RobotRecord{
		ID:              rb.ID,
		Station:         rb.StationID,
		PlanningEnabled: rb.PlanningEnabled,
		Free:            rb.Ready,
		TimeRemainingS:  rb.TimeRemaining.Seconds(),
	}
	if !rb.Edge.IsZero() {
		edge := rb.Edge
		r.Edge = &edge
	}
	return r
}
