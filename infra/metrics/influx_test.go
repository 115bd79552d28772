package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/agvfleet/core/metrics"
	"github.com/kilianp07/agvfleet/core/model"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *bodyRecorder) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bodies...)
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSinkRecordCycle(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "tok", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, sink.RecordCycle(coremetrics.CycleRecord{
		CycleID:     "c1",
		Time:        now,
		Duration:    15 * time.Millisecond,
		Robots:      3,
		Tasks:       2,
		Moves:       2,
		Assignments: 1,
	}))

	p := write.NewPointWithMeasurement("fleet_cycle").
		AddTag("cycle_id", "c1").
		AddTag("aborted", "false").
		AddField("duration_ms", int64(15)).
		AddField("robots", 3).
		AddField("tasks", 2).
		AddField("moves", 2).
		AddField("assignments", 1).
		AddField("relocations", 0).
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(p)}, rec.all())
}

func TestInfluxSinkRecordAbortedCycle(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	require.NoError(t, sink.RecordCycle(cycleRecord(eventWithErr(model.ErrPlanningTimeout))))
	bodies := rec.all()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "aborted=true")
	assert.Contains(t, bodies[0], "reason=planning_timeout")
}

func TestInfluxSinkRecordSwap(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	require.NoError(t, sink.RecordSwap(coremetrics.SwapRecord{
		RobotID:   "r1",
		TaskID:    "swap-1",
		Charger:   "C",
		Action:    "created",
		StartTime: start,
		Time:      now,
	}))
	p := write.NewPointWithMeasurement("battery_swap").
		AddTag("robot_id", "r1").
		AddTag("charger", "C").
		AddTag("action", "created").
		AddField("task_id", "swap-1").
		AddField("start_unix", start.Unix()).
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(p)}, rec.all())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{
		URL:    srv.URL + "/api/v2/write",
		Token:  "tok",
		Org:    "org",
		Bucket: "bucket",
	})
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called, "health endpoint not called")
}

func TestReasonLabels(t *testing.T) {
	assert.Equal(t, "configuration", reason(model.ErrConfiguration))
	assert.Equal(t, "assignment_conflict", reason(model.ErrAssignmentConflict))
	assert.Equal(t, "group_invariant", reason(model.ErrGroupInvariant))
	assert.Equal(t, "other", reason(errors.New("boom")))
}
