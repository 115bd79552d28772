// Package taskqueue holds the working set of tasks for one dispatch cycle.
package taskqueue

import (
	"sort"
	"time"

	"github.com/kilianp07/agvfleet/core/model"
)

// Queue keeps tasks ordered by relative priority and submission order.
type Queue struct {
	tasks []*model.Task
	index map[string]*model.Task
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{index: make(map[string]*model.Task)}
}

// SetTasks replaces the working set. Weights are re-keyed against the batch
// maximum so that the heaviest task sorts first; the position in records
// breaks ties. DONE tasks are dropped.
func (q *Queue) SetTasks(records []*model.Task) {
	maxWeight := 0.0
	for i, t := range records {
		if i == 0 || t.Weight > maxWeight {
			maxWeight = t.Weight
		}
	}
	type keyed struct {
		task *model.Task
		sort float64
	}
	batch := make([]keyed, 0, len(records))
	for i, t := range records {
		t.Order = i
		if t.Status == model.TaskDone {
			continue
		}
		batch = append(batch, keyed{task: t, sort: maxWeight - t.Weight})
	}
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].sort != batch[j].sort {
			return batch[i].sort < batch[j].sort
		}
		return batch[i].task.Order < batch[j].task.Order
	})
	q.tasks = make([]*model.Task, len(batch))
	q.index = make(map[string]*model.Task, len(batch))
	for i, k := range batch {
		q.tasks[i] = k.task
		q.index[k.task.ID] = k.task
	}
}

// RemoveByIDs drops the matching tasks.
func (q *Queue) RemoveByIDs(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(q.index, id)
	}
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if _, ok := drop[t.ID]; !ok {
			kept = append(kept, t)
		}
	}
	q.tasks = kept
}

// All returns the queued tasks in priority order.
func (q *Queue) All() []*model.Task {
	return append([]*model.Task(nil), q.tasks...)
}

// Get returns a queued task by id.
func (q *Queue) Get(id string) (*model.Task, bool) {
	t, ok := q.index[id]
	return t, ok
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return len(q.tasks) }

// UnassignedNotStarted returns the PENDING tasks that name no robot.
func (q *Queue) UnassignedNotStarted() []*model.Task {
	var out []*model.Task
	for _, t := range q.tasks {
		if t.RobotID == "" && t.Status == model.TaskPending {
			out = append(out, t)
		}
	}
	return out
}

// Due keeps the tasks whose scheduled start is not after now.
func Due(tasks []*model.Task, now time.Time) []*model.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.Due(now) {
			out = append(out, t)
		}
	}
	return out
}
