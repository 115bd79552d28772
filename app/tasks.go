package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/agvfleet/core/model"
)

// TaskStore owns the task records between cycles. Tasks keep their
// submission order; finished tasks are removed.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
	next  int
}

// NewTaskStore returns an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*model.Task)}
}

// Add stores a new task and stamps its submission order. A task id that is
// already known is rejected.
func (s *TaskStore) Add(t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("%w: task %s already exists", model.ErrConfiguration, t.ID)
	}
	c := t.Clone()
	s.next++
	c.Order = s.next
	s.tasks[c.ID] = c
	return nil
}

// Reschedule moves the start time of a task that has not started yet.
// Started tasks are left untouched.
func (s *TaskStore) Reschedule(id string, start time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Started() {
		return false
	}
	t.StartTime = start
	return true
}

// Withdraw removes a task that has not started yet.
func (s *TaskStore) Withdraw(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Started() {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Get returns a copy of the task.
func (s *TaskStore) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return *t.Clone(), true
}

// HasActive reports whether robotID owns a task that is started or due.
func (s *TaskStore) HasActive(robotID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.RobotID == robotID && (t.Started() || t.Due(now)) {
			return true
		}
	}
	return false
}

// Snapshot returns copies of every task in submission order.
func (s *TaskStore) Snapshot() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Assign records the robot bindings of a plan.
func (s *TaskStore) Assign(assignments map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for robotID, taskID := range assignments {
		t, ok := s.tasks[taskID]
		if !ok {
			return fmt.Errorf("%w: plan binds unknown task %s", model.ErrNoTask, taskID)
		}
		if t.RobotID != "" && t.RobotID != robotID {
			return fmt.Errorf("%w: task %s belongs to %s, not %s", model.ErrAssignmentConflict, taskID, t.RobotID, robotID)
		}
		t.RobotID = robotID
		if t.Status == model.TaskPending {
			t.Status = model.TaskAssigned
		}
	}
	return nil
}

func (s *TaskStore) owned(robotID, taskID string) (*model.Task, error) {
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNoTask, taskID)
	}
	if t.RobotID != robotID {
		return nil, fmt.Errorf("%w: task %s belongs to %q, not %s", model.ErrAssignmentConflict, taskID, t.RobotID, robotID)
	}
	return t, nil
}

// StepStarted advances the task to step and marks it in progress.
func (s *TaskStore) StepStarted(robotID, taskID string, step int) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.owned(robotID, taskID)
	if err != nil {
		return model.Task{}, err
	}
	if step < 0 || step >= len(t.Steps) {
		return model.Task{}, fmt.Errorf("%w: task %s has no step %d", model.ErrConfiguration, taskID, step)
	}
	if step < t.ActiveStep {
		return model.Task{}, fmt.Errorf("%w: task %s cannot go back from step %d to %d", model.ErrConfiguration, taskID, t.ActiveStep, step)
	}
	t.ActiveStep = step
	t.Status = model.TaskInProgress
	return *t.Clone(), nil
}

// Complete removes a finished task and returns its last state.
func (s *TaskStore) Complete(robotID, taskID string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.owned(robotID, taskID)
	if err != nil {
		return model.Task{}, err
	}
	delete(s.tasks, taskID)
	t.Status = model.TaskDone
	return *t, nil
}
