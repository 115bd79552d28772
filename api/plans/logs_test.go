package plans

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/dispatch"
	"github.com/kilianp07/agvfleet/core/dispatch/logging"
)

func TestLogHandlerAuthAndFilters(t *testing.T) {
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "plans.jsonl"))
	require.NoError(t, err)
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, logging.LogRecord{
		Timestamp: at,
		CycleID:   "c1",
		Robots:    []string{"r1"},
		Plan:      &dispatch.Plan{CycleID: "c1", Assignments: map[string]string{"r1": "t1"}},
	}))
	require.NoError(t, store.Append(ctx, logging.LogRecord{
		Timestamp: at.Add(time.Minute),
		CycleID:   "c2",
		Robots:    []string{"r2"},
		Error:     "planning timeout",
	}))
	h := NewLogHandler(store, "tok")

	get := func(url string, auth bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if auth {
			req.Header.Set("Authorization", "Bearer tok")
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}
	decode := func(rr *httptest.ResponseRecorder) []logging.LogRecord {
		var out []logging.LogRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		return out
	}

	rr := get("/api/plans?robot_id=r1", true)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(rr)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].CycleID)

	rr = get("/api/plans?aborted=true", true)
	require.Equal(t, http.StatusOK, rr.Code)
	out = decode(rr)
	require.Len(t, out, 1)
	assert.Equal(t, "c2", out[0].CycleID)

	rr = get("/api/plans?start=2025-03-01T09:00:00Z", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	assert.Equal(t, http.StatusBadRequest, get("/api/plans?start=soon", true).Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/plans", false).Code)
}
