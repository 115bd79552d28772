package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agvfleet/app"
	"github.com/kilianp07/agvfleet/core/battery"
	"github.com/kilianp07/agvfleet/core/dispatch"
	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/snapshot"
	"github.com/kilianp07/agvfleet/infra/logger"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one dispatch cycle over a snapshot and print the plan",
	RunE:  runPlan,
}

func init() {
	addSnapshotFlag(planCmd)
	planCmd.Flags().String("at", "", "cycle time in RFC3339 (defaults to now)")
	planCmd.Flags().Bool("swaps", false, "schedule battery swaps before dispatching")
	rootCmd.AddCommand(planCmd)
}

// planOutput is what the plan command prints.
type planOutput struct {
	Plan  dispatch.Plan         `json:"plan"`
	Swaps []snapshot.TaskRecord `json:"swaps,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	in, err := loadOffline(cmd)
	if err != nil {
		return err
	}
	now := time.Now()
	if at, _ := cmd.Flags().GetString("at"); at != "" {
		if now, err = time.Parse(time.RFC3339, at); err != nil {
			return fmt.Errorf("%w: --at: %v", model.ErrConfiguration, err)
		}
	}
	clock := func() time.Time { return now }

	robots, err := in.snap.RobotModels()
	if err != nil {
		return err
	}
	tasks, err := in.snap.TaskModels()
	if err != nil {
		return err
	}

	var out planOutput
	if withSwaps, _ := cmd.Flags().GetBool("swaps"); withSwaps {
		var chargers []string
		for _, st := range in.site.Stations {
			if st.Kind == model.StationCharger {
				chargers = append(chargers, st.ID)
			}
		}
		sched, err := battery.NewScheduler(in.battery, chargers, logger.New("battery"),
			battery.WithClock(clock), battery.WithTemplate(app.SwapTemplate(in.site.Graph)))
		if err != nil {
			return err
		}
		sched.Run(robots)
		for _, t := range sched.GetNewSwapTasks() {
			tasks = append(tasks, t)
			out.Swaps = append(out.Swaps, snapshot.FromTask(t))
		}
	}

	d, err := dispatch.NewDispatcher(in.site.Graph, in.site.Stations, in.dispatch, logger.New("dispatcher"))
	if err != nil {
		return err
	}
	d.SetClock(clock)
	if out.Plan, err = d.Cycle(robots, tasks); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
