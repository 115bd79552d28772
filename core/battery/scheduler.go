// Package battery schedules one battery swap per robot ahead of its warning
// threshold and feeds the swap tasks to the dispatcher's task stream.
package battery

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agvfleet/core/logger"
	"github.com/kilianp07/agvfleet/core/model"
)

// TaskPrefix starts the id of every swap task.
const TaskPrefix = "swap-"

// IsSwapTask reports whether id was issued by a Scheduler.
func IsSwapTask(id string) bool { return strings.HasPrefix(id, TaskPrefix) }

// StepTemplate returns the step kinds of a swap at the given charger. The
// first kind must be StepMoveToStation.
type StepTemplate func(charger string) []model.StepKind

// DefaultTemplate drives to the charger and swaps there.
func DefaultTemplate(string) []model.StepKind {
	return []model.StepKind{model.StepMoveToStation, model.StepSwapBattery}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithTemplate sets the swap step template.
func WithTemplate(tpl StepTemplate) Option {
	return func(s *Scheduler) { s.template = tpl }
}

// Scheduler keeps one swap entry per known robot. Calls are serialized.
type Scheduler struct {
	cfg      Config
	chargers []string
	template StepTemplate
	clock    func() time.Time
	logger   logger.Logger

	mu      sync.Mutex
	states  map[string]State
	fresh   map[string]*model.Task
	updated map[string]*model.Task
	dropped map[string]*model.Task
	cursor  int
}

// NewScheduler creates a scheduler distributing swaps over chargers.
func NewScheduler(cfg Config, chargers []string, log logger.Logger, opts ...Option) (*Scheduler, error) {
	if log == nil {
		return nil, fmt.Errorf("battery: nil logger")
	}
	if len(chargers) == 0 {
		return nil, fmt.Errorf("%w: no charger station", model.ErrConfiguration)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	s := &Scheduler{
		cfg:      cfg,
		chargers: append([]string(nil), chargers...),
		template: DefaultTemplate,
		clock:    time.Now,
		logger:   log,
		states:   make(map[string]State),
		fresh:    make(map[string]*model.Task),
		updated:  make(map[string]*model.Task),
		dropped:  make(map[string]*model.Task),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Scheduler) latestStart(r model.Robot, now time.Time) time.Time {
	return now.Add(r.TimeRemaining - s.cfg.lead())
}

// Run checks every robot and rebuilds the plan when one of them has no swap,
// needs an earlier swap, or when the fleet changed.
func (s *Scheduler) Run(robots []model.Robot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	replan := len(s.states) != len(robots)
	for _, r := range robots {
		st, ok := s.states[r.ID]
		if !ok || needsPlan(st, s.latestStart(r, now)) {
			replan = true
			break
		}
	}
	if replan {
		s.createNewPlan(robots, now)
	}
}

// createNewPlan rebuilds the entries for exactly the given robots.
func (s *Scheduler) createNewPlan(robots []model.Robot, now time.Time) {
	sorted := append([]model.Robot(nil), robots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	next := make(map[string]State, len(sorted))
	for _, r := range sorted {
		st := s.states[r.ID]
		var ev *Event
		if st.Phase == Idle {
			st, ev = schedule(st, s.newTask(r, now))
		} else {
			st, ev = reschedule(st, s.latestStart(r, now))
		}
		next[r.ID] = st
		s.record(r.ID, ev)
	}
	for id, st := range s.states {
		if _, ok := next[id]; ok {
			continue
		}
		_, undrained := s.fresh[id]
		delete(s.fresh, id)
		delete(s.updated, id)
		if !undrained && (st.Phase == PendingSwap || st.Phase == RescheduledSwap) {
			s.dropped[id] = st.Task
			s.logger.Infof("swap %s dropped, robot %s left the fleet", st.Task.ID, id)
		}
	}
	s.states = next
}

func (s *Scheduler) record(robotID string, ev *Event) {
	if ev == nil {
		return
	}
	switch ev.Kind {
	case EventNew:
		s.fresh[robotID] = ev.Task
		swapsCreated.Inc()
		s.logger.Infof("swap %s scheduled for robot %s at %s", ev.Task.ID, robotID, ev.Task.StartTime.Format(time.RFC3339))
	case EventUpdated:
		// not yet handed out: the consumer only needs the latest version
		if _, ok := s.fresh[robotID]; ok {
			s.fresh[robotID] = ev.Task
		} else {
			s.updated[robotID] = ev.Task
		}
		swapsRescheduled.Inc()
		s.logger.Infof("swap %s of robot %s moved to %s", ev.Task.ID, robotID, ev.Task.StartTime.Format(time.RFC3339))
	}
}

func (s *Scheduler) newTask(r model.Robot, now time.Time) *model.Task {
	charger := s.chargers[s.cursor%len(s.chargers)]
	s.cursor++
	id := TaskPrefix + uuid.NewString()
	kinds := s.template(charger)
	steps := make([]model.Step, len(kinds))
	for i, k := range kinds {
		steps[i] = model.Step{ID: fmt.Sprintf("%s-%d", id, i), Kind: k}
		if k == model.StepMoveToStation {
			steps[i].StationID = charger
		}
	}
	return &model.Task{
		ID:         id,
		Steps:      steps,
		ActiveStep: model.NotStarted,
		Status:     model.TaskPending,
		RobotID:    r.ID,
		Weight:     s.cfg.Weight,
		StartTime:  s.latestStart(r, now),
	}
}

// GetNewSwapTasks returns the swap tasks created since the last call.
func (s *Scheduler) GetNewSwapTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := drain(s.fresh)
	s.fresh = make(map[string]*model.Task)
	return out
}

// GetTasksToUpdate returns the swap tasks rescheduled since the last call.
func (s *Scheduler) GetTasksToUpdate() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := drain(s.updated)
	s.updated = make(map[string]*model.Task)
	return out
}

func drain(box map[string]*model.Task) []model.Task {
	ids := make([]string, 0, len(box))
	for id := range box {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, *box[id].Clone())
	}
	return out
}

// GetDroppedSwapTasks returns the handed-out swap tasks that were not started
// when their robot left the plan. The consumer has to withdraw them.
func (s *Scheduler) GetDroppedSwapTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := drain(s.dropped)
	s.dropped = make(map[string]*model.Task)
	return out
}

// Cancel withdraws the robot's swap when it has not started. The returned
// task was already handed out unless it is still pending in GetNewSwapTasks,
// in which case it is discarded there too.
func (s *Scheduler) Cancel(robotID string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[robotID]
	if !ok || (st.Phase != PendingSwap && st.Phase != RescheduledSwap) {
		return model.Task{}, false
	}
	s.states[robotID] = cancel(st)
	delete(s.fresh, robotID)
	delete(s.updated, robotID)
	return *st.Task.Clone(), true
}

// SetInProgress marks the robot's swap as started. Its start time is frozen
// from then on.
func (s *Scheduler) SetInProgress(robotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[robotID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownRobot, robotID)
	}
	if st.Phase == Idle {
		return fmt.Errorf("%w: robot %s has no swap", model.ErrNoTask, robotID)
	}
	s.states[robotID] = start(st)
	return nil
}

// SetDone closes the robot's swap. The next Run schedules a new one.
func (s *Scheduler) SetDone(robotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[robotID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownRobot, robotID)
	}
	s.states[robotID] = finish(st)
	delete(s.fresh, robotID)
	delete(s.updated, robotID)
	return nil
}

// State returns a copy of the robot's swap entry.
func (s *Scheduler) State(robotID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[robotID]
	if ok && st.Task != nil {
		st.Task = st.Task.Clone()
	}
	return st, ok
}

// Robots returns the ids of the robots in the plan, sorted.
func (s *Scheduler) Robots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
