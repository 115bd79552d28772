package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, format, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, format, level))
	t.Cleanup(func() { _ = Setup(os.Stdout, "json", "") })
	return &buf
}

func TestLoggerAddsComponentAndFields(t *testing.T) {
	buf := capture(t, "json", "debug")
	New("dispatcher").With("cycle_id", "c1").Infof("cycle %d done", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatcher", entry["component"])
	assert.Equal(t, "c1", entry["cycle_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "cycle 3 done", entry["message"])
}

func TestDebugwWritesFields(t *testing.T) {
	buf := capture(t, "json", "debug")
	New("service").Debugw("cycle recorded", map[string]any{"moves": 2})
	assert.Contains(t, buf.String(), `"moves":2`)
}

func TestLevelFilters(t *testing.T) {
	buf := capture(t, "json", "warn")
	l := New("battery")
	l.Debugf("hidden")
	l.Infof("hidden")
	l.Warnf("shown")
	l.Errorf("shown too")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestConsoleFormat(t *testing.T) {
	buf := capture(t, "console", "")
	New("cli").Infof("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestSetupRejectsBadInput(t *testing.T) {
	assert.Error(t, Setup(os.Stdout, "xml", ""))
	assert.Error(t, Setup(os.Stdout, "json", "loud"))
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.With("k", 1).Infof("nothing")
}
