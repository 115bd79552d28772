package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agvfleet/config"
	"github.com/kilianp07/agvfleet/core/battery"
	"github.com/kilianp07/agvfleet/core/dispatch"
	"github.com/kilianp07/agvfleet/core/snapshot"
)

// offline holds what the plan and route commands work on.
type offline struct {
	snap     *snapshot.Snapshot
	site     *snapshot.Site
	dispatch dispatch.Config
	battery  battery.Config
}

// loadOffline reads the snapshot named by --snapshot, or the one of the
// configuration file when the flag is empty.
func loadOffline(cmd *cobra.Command) (*offline, error) {
	path, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return nil, err
	}
	out := &offline{}
	if path == "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Site.Snapshot
		out.dispatch = cfg.Dispatch
		out.battery = cfg.Battery
	}
	out.snap, err = snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	out.site, err = out.snap.Site()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func addSnapshotFlag(c *cobra.Command) {
	c.Flags().StringP("snapshot", "s", "", "site snapshot file (defaults to site.snapshot of the config)")
}
