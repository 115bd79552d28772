package dispatch

import (
	"fmt"
	"time"
)

// Config defines dispatch-related settings.
type Config struct {
	// PlanningBudgetMS bounds the wall-clock time of the assignment loop.
	PlanningBudgetMS int `json:"planning_budget_ms"`
	// MaxIterations caps the assignment loop. 0 derives the cap from the
	// fleet size.
	MaxIterations int `json:"max_iterations"`
	// CycleIntervalMS is the period between two cycles of the service loop.
	CycleIntervalMS int `json:"cycle_interval_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PlanningBudgetMS == 0 {
		c.PlanningBudgetMS = 5000
	}
	if c.CycleIntervalMS == 0 {
		c.CycleIntervalMS = 1000
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.PlanningBudgetMS <= 0 {
		return fmt.Errorf("planning_budget_ms must be positive")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	if c.CycleIntervalMS <= 0 {
		return fmt.Errorf("cycle_interval_ms must be positive")
	}
	return nil
}

// PlanningBudget returns the loop budget as a duration.
func (c Config) PlanningBudget() time.Duration {
	return time.Duration(c.PlanningBudgetMS) * time.Millisecond
}

// CycleInterval returns the service loop period as a duration.
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMS) * time.Millisecond
}
