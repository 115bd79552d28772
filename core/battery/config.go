package battery

import (
	"fmt"
	"time"
)

// Config defines the battery swap timing.
type Config struct {
	// SwapDurationS is the expected duration of a swap, travel included.
	SwapDurationS int `json:"swap_duration_s"`
	// SafetyMarginS is kept between the end of a swap and the warning threshold.
	SafetyMarginS int `json:"safety_margin_s"`
	// ReplanThresholdS is the slack before a pending swap gets pulled forward.
	ReplanThresholdS int `json:"replan_threshold_s"`
	// Weight is the priority weight of swap tasks.
	Weight float64 `json:"swap_weight"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.SwapDurationS == 0 {
		c.SwapDurationS = 300
	}
	if c.SafetyMarginS == 0 {
		c.SafetyMarginS = 120
	}
	if c.ReplanThresholdS == 0 {
		c.ReplanThresholdS = 60
	}
	if c.Weight == 0 {
		c.Weight = 10
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.SwapDurationS <= 0 {
		return fmt.Errorf("swap_duration_s must be positive")
	}
	if c.SafetyMarginS < 0 || c.ReplanThresholdS < 0 {
		return fmt.Errorf("safety_margin_s and replan_threshold_s must not be negative")
	}
	if c.Weight < 0 {
		return fmt.Errorf("swap_weight must not be negative")
	}
	return nil
}

// lead is how long before the warning threshold a swap has to start.
func (c Config) lead() time.Duration {
	return time.Duration(c.SwapDurationS+c.SafetyMarginS+c.ReplanThresholdS) * time.Second
}
