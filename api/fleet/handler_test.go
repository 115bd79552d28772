package fleet

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/snapshot"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) RobotList() []model.Robot {
	return m.Called().Get(0).([]model.Robot)
}

func (m *mockSource) TaskList() []model.Task {
	return m.Called().Get(0).([]model.Task)
}

func (m *mockSource) SubmitTasks(recs []snapshot.TaskRecord) error {
	return m.Called(recs).Error(0)
}

func move(id, robot string) model.Task {
	return model.Task{
		ID:         id,
		Steps:      []model.Step{{ID: id + "-0", Kind: model.StepMoveToStation, StationID: "D"}},
		ActiveStep: model.NotStarted,
		RobotID:    robot,
	}
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestRobotsHandler(t *testing.T) {
	src := &mockSource{}
	src.On("RobotList").Return([]model.Robot{{
		ID:              "r1",
		Edge:            model.EdgeKey{From: "a", To: "b"},
		PlanningEnabled: true,
		Ready:           true,
		TimeRemaining:   90 * time.Second,
	}}).Once()
	h := NewRobotsHandler(src)

	rr := serve(h, http.MethodGet, "/api/robots", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []snapshot.RobotRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
	assert.True(t, out[0].Free)
	assert.Equal(t, 90.0, out[0].TimeRemainingS)
	require.NotNil(t, out[0].Edge)
	assert.Equal(t, "b", out[0].Edge.To)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/api/robots", "").Code)
	src.AssertExpectations(t)
}

func TestTasksHandlerList(t *testing.T) {
	src := &mockSource{}
	src.On("TaskList").Return([]model.Task{move("t1", "r1"), move("t2", "")})

	rr := serve(NewTasksHandler(src), http.MethodGet, "/api/tasks?robot_id=r1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []snapshot.TaskRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "t1", out[0].ID)
	assert.Equal(t, "r1", out[0].Robot)
}

func TestTasksHandlerSubmit(t *testing.T) {
	src := &mockSource{}
	isTask := func(id string) any {
		return mock.MatchedBy(func(recs []snapshot.TaskRecord) bool { return len(recs) == 1 && recs[0].ID == id })
	}
	src.On("SubmitTasks", isTask("t9")).Return(nil).Once()
	src.On("SubmitTasks", isTask("dup")).Return(fmt.Errorf("%w: task dup already exists", model.ErrConfiguration)).Once()
	src.On("SubmitTasks", isTask("t10")).Return(fmt.Errorf("disk full")).Once()
	h := NewTasksHandler(src)

	rr := serve(h, http.MethodPost, "/api/tasks", `[{"id":"t9","steps":[{"kind":"move_to_station","station":"D"}]}]`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"accepted":1}`, rr.Body.String())

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/api/tasks", `{not json`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, serve(h, http.MethodPost, "/api/tasks", `[{"id":"dup","steps":[]}]`).Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodPost, "/api/tasks", `[{"id":"t10","steps":[]}]`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodDelete, "/api/tasks", "").Code)
	src.AssertExpectations(t)
}
