package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agvfleet/core/logger"
	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/registry"
	"github.com/kilianp07/agvfleet/core/routegraph"
	"github.com/kilianp07/agvfleet/core/taskqueue"
)

// Dispatcher runs assignment cycles over a fixed route graph and station set.
// Calls to Cycle are serialized.
type Dispatcher struct {
	graph    *routegraph.Graph
	stations *registry.Stations
	cfg      Config
	logger   logger.Logger
	clock    func() time.Time
	mu       sync.Mutex
}

// NewDispatcher creates a dispatcher. A zero Config gets its defaults.
func NewDispatcher(g *routegraph.Graph, stations []model.Station, cfg Config, log logger.Logger) (*Dispatcher, error) {
	if g == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewDispatcher")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	seen := make(map[string]struct{}, len(stations))
	for _, s := range stations {
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate station %s", model.ErrConfiguration, s.ID)
		}
		seen[s.ID] = struct{}{}
		if len(g.StationNodes(s.ID)) == 0 {
			return nil, fmt.Errorf("%w: station %s has no node in the route graph", model.ErrConfiguration, s.ID)
		}
	}
	return &Dispatcher{
		graph:    g,
		stations: registry.NewStations(g, stations),
		cfg:      cfg,
		logger:   log,
		clock:    time.Now,
	}, nil
}

// SetClock replaces the time source used for due dates and the planning budget.
func (d *Dispatcher) SetClock(clock func() time.Time) {
	d.mu.Lock()
	d.clock = clock
	d.mu.Unlock()
}

// Stations exposes the station registry.
func (d *Dispatcher) Stations() *registry.Stations { return d.stations }

// Graph exposes the route graph.
func (d *Dispatcher) Graph() *routegraph.Graph { return d.graph }

// Cycle runs one assignment cycle and returns the per-robot plan. Inputs are
// copied; the caller applies Plan.Assignments to its own task records. Any
// returned error means the whole cycle is void and no command may be sent.
func (d *Dispatcher) Cycle(robots []model.Robot, tasks []model.Task) (Plan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := d.clock()
	plan, err := d.run(start, robots, tasks)
	cycleDuration.Observe(d.clock().Sub(start).Seconds())
	if err != nil {
		cyclesAborted.WithLabelValues(abortReason(err)).Inc()
		d.logger.Errorf("cycle aborted: %v", err)
		return Plan{}, err
	}
	movesIssued.Add(float64(len(plan.Moves)))
	tasksAssigned.Add(float64(len(plan.Assignments)))
	robotsRelocated.Add(float64(len(plan.Relocations)))
	d.logger.Infof("cycle %s: %d moves, %d assignments, %d relocations",
		plan.CycleID, len(plan.Moves), len(plan.Assignments), len(plan.Relocations))
	return plan, nil
}

func (d *Dispatcher) run(now time.Time, robots []model.Robot, tasks []model.Task) (Plan, error) {
	normalized, err := d.normalizeRobots(robots)
	if err != nil {
		return Plan{}, err
	}
	working, err := d.validateTasks(tasks)
	if err != nil {
		return Plan{}, err
	}

	c := &cycle{
		d:        d,
		now:      now,
		deadline: now.Add(d.cfg.PlanningBudget()),
		robots:   registry.NewRobots(),
		present:  normalized,
		queue:    taskqueue.New(),
		plan:     newPlan(uuid.NewString(), now),
	}
	c.robots.SetRobots(normalized)
	c.queue.SetTasks(working)
	c.view = d.graph.NewView(registry.Occupancy(normalized))
	if err := c.view.CheckGroups(); err != nil {
		return Plan{}, err
	}
	if err := c.bindInFlight(); err != nil {
		return Plan{}, err
	}
	if err := c.bindPreAssigned(); err != nil {
		return Plan{}, err
	}
	if err := c.resolve(); err != nil {
		return Plan{}, err
	}
	return c.plan, nil
}

// normalizeRobots resolves every robot's current node and rejects positions
// that do not exist in the graph.
func (d *Dispatcher) normalizeRobots(robots []model.Robot) ([]model.Robot, error) {
	out := make([]model.Robot, 0, len(robots))
	seen := make(map[string]struct{}, len(robots))
	for _, r := range robots {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: robot without id", model.ErrConfiguration)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate robot %s", model.ErrConfiguration, r.ID)
		}
		seen[r.ID] = struct{}{}
		switch {
		case !r.Edge.IsZero():
			if _, ok := d.graph.Edge(r.Edge); !ok {
				return nil, fmt.Errorf("%w: robot %s on unknown edge %s", model.ErrConfiguration, r.ID, r.Edge)
			}
			r.Node = r.Edge.To
		case r.Node != "":
			if _, ok := d.graph.Node(r.Node); !ok {
				return nil, fmt.Errorf("%w: robot %s on unknown node %s", model.ErrConfiguration, r.ID, r.Node)
			}
		case r.StationID != "":
			node, err := d.graph.HomeNode(r.StationID)
			if err != nil {
				return nil, fmt.Errorf("robot %s: %w", r.ID, err)
			}
			r.Node = node
		}
		out = append(out, r)
	}
	return out, nil
}

// validateTasks copies the task records and checks them against the station
// registry. Every step must resolve to a goal node so that a bad task is
// refused here instead of voiding later cycles.
func (d *Dispatcher) validateTasks(tasks []model.Task) ([]*model.Task, error) {
	out := make([]*model.Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for i := range tasks {
		t := tasks[i].Clone()
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task without id", model.ErrConfiguration)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task %s", model.ErrConfiguration, t.ID)
		}
		seen[t.ID] = struct{}{}
		if len(t.Steps) == 0 {
			return nil, fmt.Errorf("%w: task %s has no step", model.ErrConfiguration, t.ID)
		}
		if t.Steps[0].Kind != model.StepMoveToStation {
			return nil, fmt.Errorf("%w: task %s does not start with a move", model.ErrConfiguration, t.ID)
		}
		if t.ActiveStep < model.NotStarted || t.ActiveStep >= len(t.Steps) {
			return nil, fmt.Errorf("%w: task %s active step %d out of range", model.ErrConfiguration, t.ID, t.ActiveStep)
		}
		for _, s := range t.Steps {
			if s.Kind != model.StepMoveToStation {
				continue
			}
			if _, ok := d.stations.Kind(s.StationID); !ok {
				return nil, fmt.Errorf("%w: task %s targets unknown station %q", model.ErrConfiguration, t.ID, s.StationID)
			}
		}
		if err := d.graph.CheckSteps(t.Steps); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return "configuration"
	case errors.Is(err, model.ErrAssignmentConflict):
		return "assignment_conflict"
	case errors.Is(err, model.ErrGroupInvariant):
		return "group_invariant"
	case errors.Is(err, model.ErrPlanningTimeout):
		return "planning_timeout"
	default:
		return "other"
	}
}
