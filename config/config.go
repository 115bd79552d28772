package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/agvfleet/api"
	"github.com/kilianp07/agvfleet/core/battery"
	"github.com/kilianp07/agvfleet/core/dispatch"
	"github.com/kilianp07/agvfleet/core/metrics"
	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/infra/mqtt"
	"github.com/kilianp07/agvfleet/infra/taskfeed"
)

type Config struct {
	MQTT     mqtt.Config     `json:"mqtt"`
	Dispatch dispatch.Config `json:"dispatch"`
	Battery  battery.Config  `json:"battery"`
	Metrics  metrics.Config  `json:"metrics"`
	Logging  LoggingConfig   `json:"logging"`
	Site     SiteConfig      `json:"site"`
	API      api.Config      `json:"api"`
	TaskFeed taskfeed.Config `json:"task_feed"`
}

// SiteConfig points at the route network description.
type SiteConfig struct {
	// Snapshot is a YAML or JSON file with stations, nodes and edges.
	// Robots and tasks found in it seed the service.
	Snapshot string `json:"snapshot"`
}

// Load reads path, applies K_ environment overrides (K_DISPATCH__MAX_ITERATIONS
// sets dispatch.max_iterations), fills defaults and validates the result.
// Failures wrap model.ErrConfiguration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("%w: unsupported config format: %s", model.ErrConfiguration, ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	if cfg.Site.Snapshot != "" && !filepath.IsAbs(cfg.Site.Snapshot) {
		cfg.Site.Snapshot = filepath.Join(filepath.Dir(path), cfg.Site.Snapshot)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Battery.SetDefaults()
	c.Logging.SetDefaults()
	c.TaskFeed.SetDefaults()
}

// Validate checks every section except MQTT, which only the service needs.
func (c Config) Validate() error {
	for name, v := range map[string]interface{ Validate() error }{
		"dispatch": c.Dispatch,
		"battery":  c.Battery,
		"logging":  c.Logging,
	} {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", model.ErrConfiguration, name, err)
		}
	}
	if c.Site.Snapshot == "" {
		return fmt.Errorf("%w: site.snapshot is required", model.ErrConfiguration)
	}
	return nil
}
