package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agvfleet/config"
	"github.com/kilianp07/agvfleet/core/dispatch/logging"
	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/pkg/export"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the plan log as json, csv or an html chart",
	Args:  cobra.NoArgs,
	RunE:  report,
}

func init() {
	f := reportCmd.Flags()
	f.String("format", export.FormatCSV, "output format: json, csv or html")
	f.String("start", "", "first cycle time (RFC3339)")
	f.String("end", "", "last cycle time (RFC3339)")
	f.String("robot", "", "only cycles involving this robot")
	f.Bool("aborted", false, "only aborted cycles")
	rootCmd.AddCommand(reportCmd)
}

func timeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s: %v", model.ErrConfiguration, name, err)
	}
	return t, nil
}

func report(cmd *cobra.Command, _ []string) error {
	var q logging.LogQuery
	var err error
	if q.Start, err = timeFlag(cmd, "start"); err != nil {
		return err
	}
	if q.End, err = timeFlag(cmd, "end"); err != nil {
		return err
	}
	q.RobotID, _ = cmd.Flags().GetString("robot")
	q.AbortedOnly, _ = cmd.Flags().GetBool("aborted")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := logging.NewStore(cfg.Logging.StoreConfig())
	if err != nil {
		return fmt.Errorf("plan log: %w", err)
	}
	defer func() { _ = store.Close() }()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), format, records)
}
