package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/dispatch/logging"
	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/snapshot"
	"github.com/kilianp07/agvfleet/test/util"
)

type emptySource struct{}

func (emptySource) RobotList() []model.Robot                { return nil }
func (emptySource) TaskList() []model.Task                  { return nil }
func (emptySource) SubmitTasks([]snapshot.TaskRecord) error { return nil }

func TestRouterMountsEndpoints(t *testing.T) {
	h := NewRouter(logging.NopStore{}, emptySource{}, "")
	cases := map[string]int{
		"/api/health": http.StatusOK,
		"/api/plans":  http.StatusOK,
		"/api/robots": http.StatusOK,
		"/api/tasks":  http.StatusOK,
		"/api/nope":   http.StatusNotFound,
	}
	for path, want := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rr.Code, path)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/plans", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const addr = "127.0.0.1:19480"
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, addr, NewRouter(logging.NopStore{}, emptySource{}, "")) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer waitCancel()
	require.NoError(t, util.WaitForBody(waitCtx, "http://"+addr+"/api/health", "ok"))

	cancel()
	require.NoError(t, <-errCh)
}
