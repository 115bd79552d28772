package app

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/agvfleet/core/model"
)

// reportedRobot is the last state received from one robot.
type reportedRobot struct {
	robot model.Robot
	seen  time.Time
}

// Fleet keeps the latest reported state of every robot.
type Fleet struct {
	mu     sync.Mutex
	robots map[string]reportedRobot
	// staleAfter drops robots that stopped reporting. Zero keeps them forever.
	staleAfter time.Duration
}

func NewFleet(staleAfter time.Duration) *Fleet {
	return &Fleet{robots: make(map[string]reportedRobot), staleAfter: staleAfter}
}

// Update replaces the state of r.
func (f *Fleet) Update(r model.Robot, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.Task = nil
	r.NextEdge = model.EdgeKey{}
	r.EndOfStep = false
	f.robots[r.ID] = reportedRobot{robot: r, seen: at}
}

// Snapshot returns the robots seen recently enough, sorted by id.
func (f *Fleet) Snapshot(now time.Time) []model.Robot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Robot, 0, len(f.robots))
	for id, rr := range f.robots {
		if f.staleAfter > 0 && now.Sub(rr.seen) > f.staleAfter {
			delete(f.robots, id)
			continue
		}
		out = append(out, rr.robot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
