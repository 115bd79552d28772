// Package fleet exposes the reported robots and the task store over HTTP.
package fleet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/snapshot"
)

// Source is the fleet state served by the handlers.
type Source interface {
	RobotList() []model.Robot
	TaskList() []model.Task
	SubmitTasks(recs []snapshot.TaskRecord) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRobotsHandler serves GET /api/robots.
func NewRobotsHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		robots := src.RobotList()
		out := make([]snapshot.RobotRecord, 0, len(robots))
		for _, rb := range robots {
			out = append(out, snapshot.FromRobot(rb))
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// NewTasksHandler serves GET /api/tasks, optionally filtered by robot_id, and
// POST /api/tasks with a JSON array of task records.
func NewTasksHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			robot := r.URL.Query().Get("robot_id")
			out := []snapshot.TaskRecord{}
			for _, t := range src.TaskList() {
				if robot != "" && t.RobotID != robot {
					continue
				}
				out = append(out, snapshot.FromTask(t))
			}
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var recs []snapshot.TaskRecord
			if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := src.SubmitTasks(recs); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, model.ErrConfiguration) {
					status = http.StatusUnprocessableEntity
				}
				http.Error(w, err.Error(), status)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(recs)})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
