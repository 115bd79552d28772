package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/core/model"
)

const sample = `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  use_tls: false
dispatch:
  planning_budget_ms: 250
  max_iterations: 40
battery:
  swap_duration_s: 600
metrics:
  sinks:
    - type: "nop"
  prometheus_addr: ":9464"
logging:
  backend: "sqlite"
site:
  snapshot: "site.yaml"
api:
  addr: ":8080"
  token: "secret"
task_feed:
  url: "https://wms.local/agv/tasks"
  auth:
    client_id: "fleet"
    auth_url: "https://wms.local/oauth/token"
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", sample)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "cli", cfg.MQTT.ClientID)
	assert.Equal(t, "user", cfg.MQTT.Username)
	assert.Equal(t, "fleet", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 250, cfg.Dispatch.PlanningBudgetMS)
	assert.Equal(t, 40, cfg.Dispatch.MaxIterations)
	assert.Equal(t, 1000, cfg.Dispatch.CycleIntervalMS)
	assert.Equal(t, 600, cfg.Battery.SwapDurationS)
	assert.Equal(t, 120, cfg.Battery.SafetyMarginS)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, ":9464", cfg.Metrics.PrometheusAddr)
	assert.Equal(t, "plans.db", cfg.Logging.Path)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "site.yaml"), cfg.Site.Snapshot)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, "https://wms.local/agv/tasks", cfg.TaskFeed.URL)
	assert.Equal(t, 30, cfg.TaskFeed.PollIntervalSeconds)
	assert.True(t, cfg.TaskFeed.Auth.Enabled())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_DISPATCH__MAX_ITERATIONS", "7")
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Dispatch.MaxIterations)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{"site": {"snapshot": "/srv/site.yaml"}}`))
	require.NoError(t, err)
	assert.Equal(t, "/srv/site.yaml", cfg.Site.Snapshot)
	assert.Equal(t, "jsonl", cfg.Logging.Backend)
	assert.Equal(t, 5000, cfg.Dispatch.PlanningBudgetMS)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]struct {
		name string
		data string
	}{
		"format":     {"config.toml", ""},
		"no site":    {"config.yaml", "dispatch:\n  max_iterations: 3\n"},
		"iterations": {"config.yaml", "site:\n  snapshot: s.yaml\ndispatch:\n  max_iterations: -1\n"},
		"battery":    {"config.yaml", "site:\n  snapshot: s.yaml\nbattery:\n  swap_weight: -2\n"},
		"backend":    {"config.yaml", "site:\n  snapshot: s.yaml\nlogging:\n  backend: redis\n"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.name, c.data))
			assert.ErrorIs(t, err, model.ErrConfiguration)
		})
	}
}

func TestLoggingStoreConfig(t *testing.T) {
	c := LoggingConfig{Backend: "jsonl", Path: "p.jsonl"}
	assert.Equal(t, "jsonl", c.StoreConfig().Type)

	c.MaxSizeMB = 10
	sc := c.StoreConfig()
	assert.Equal(t, "rotating_jsonl", sc.Type)
	assert.Equal(t, 10, sc.Conf["max_size_mb"])

	assert.Equal(t, "nop", LoggingConfig{Backend: "none"}.StoreConfig().Type)
	assert.Equal(t, "sqlite", LoggingConfig{Backend: "sqlite", Path: "x.db"}.StoreConfig().Type)
}
