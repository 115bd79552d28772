package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/dispatch"
	"github.com/kilianp07/agvfleet/core/dispatch/logging"
	"github.com/kilianp07/agvfleet/core/model"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func records() []logging.LogRecord {
	return []logging.LogRecord{
		{
			Timestamp: epoch,
			CycleID:   "c1",
			Robots:    []string{"r1", "r2"},
			Duration:  1500 * time.Microsecond,
			Plan: &dispatch.Plan{
				CycleID:     "c1",
				Moves:       map[string]dispatch.Move{"r1": {TaskID: "t1"}},
				Assignments: map[string]string{"r1": "t1"},
			},
		},
		{
			Timestamp: epoch.Add(time.Second),
			CycleID:   "c2",
			Robots:    []string{"r1"},
			Duration:  5 * time.Second,
			Error:     model.ErrPlanningTimeout.Error(),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "cycle_id", rows[0][0])
	assert.Equal(t, []string{"c1", "2025-03-01T08:00:00Z", "1.500", "2", "1", "1", "0", ""}, rows[1])
	assert.Equal(t, "5000.000", rows[2][2])
	assert.Equal(t, model.ErrPlanningTimeout.Error(), rows[2][7])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, nil))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FormatJSON, records()))
	var out []logging.LogRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.True(t, out[1].Aborted())
}

func TestWriteChartHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatHTML, records()))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Dispatch cycles")
	assert.Contains(t, html, "Latency (ms)")
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xlsx", records()))
}
