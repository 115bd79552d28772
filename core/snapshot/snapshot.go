package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/routegraph"
)

// Snapshot holds a site description and, optionally, the fleet state at one
// instant. YAML and JSON files are both accepted.
type Snapshot struct {
	Stations []StationRecord `json:"stations" yaml:"stations"`
	Nodes    []NodeRecord    `json:"nodes" yaml:"nodes"`
	Edges    []EdgeRecord    `json:"edges" yaml:"edges"`
	Robots   []RobotRecord   `json:"robots,omitempty" yaml:"robots,omitempty"`
	Tasks    []TaskRecord    `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// Site is the validated, immutable part of a snapshot.
type Site struct {
	Graph    *routegraph.Graph
	Stations []model.Station
}

// Load reads and decodes a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a snapshot. Unknown fields are rejected.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Snapshot
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode snapshot: %v", model.ErrConfiguration, err)
	}
	return &s, nil
}

// Site validates the site records and builds the route graph.
func (s *Snapshot) Site() (*Site, error) {
	nodes := make([]model.Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes = append(nodes, n.ToModel())
	}
	edges := make([]model.Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		me, err := e.ToModel()
		if err != nil {
			return nil, err
		}
		edges = append(edges, me)
	}
	g, err := routegraph.New(nodes, edges)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(s.Stations))
	stations := make([]model.Station, 0, len(s.Stations))
	for _, rec := range s.Stations {
		st, err := rec.ToModel()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[st.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate station %s", model.ErrConfiguration, st.ID)
		}
		seen[st.ID] = struct{}{}
		if len(g.StationNodes(st.ID)) == 0 {
			return nil, fmt.Errorf("%w: station %s has no node", model.ErrConfiguration, st.ID)
		}
		stations = append(stations, st)
	}
	for _, id := range g.Stations() {
		if _, ok := seen[id]; !ok {
			return nil, fmt.Errorf("%w: node references undeclared station %s", model.ErrConfiguration, id)
		}
	}
	for _, e := range edges {
		if e.ConnectedStation == "" {
			continue
		}
		if _, ok := seen[e.ConnectedStation]; !ok {
			return nil, fmt.Errorf("%w: edge %s connects unknown station %s", model.ErrConfiguration, e.Key(), e.ConnectedStation)
		}
	}
	return &Site{Graph: g, Stations: stations}, nil
}

// RobotModels converts the robot records.
func (s *Snapshot) RobotModels() ([]model.Robot, error) {
	return Robots(s.Robots)
}

// TaskModels converts the task records.
func (s *Snapshot) TaskModels() ([]model.Task, error) {
	return Tasks(s.Tasks)
}

// Robots converts robot records and rejects duplicates.
func Robots(records []RobotRecord) ([]model.Robot, error) {
	out := make([]model.Robot, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		r, err := rec.ToModel()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate robot %s", model.ErrConfiguration, r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// Tasks converts task records and rejects duplicates.
func Tasks(records []TaskRecord) ([]model.Task, error) {
	out := make([]model.Task, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		t, err := rec.ToModel()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task %s", model.ErrConfiguration, t.ID)
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
