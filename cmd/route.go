package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route FROM TO",
	Short: "Print the shortest route between two nodes, other stations blocked",
	Args:  cobra.ExactArgs(2),
	RunE:  runRoute,
}

func init() {
	addSnapshotFlag(routeCmd)
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	in, err := loadOffline(cmd)
	if err != nil {
		return err
	}
	p, err := in.site.Graph.NewView(nil).ShortestPath(args[0], args[1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\ncost %g\n", strings.Join(p.Nodes, " -> "), p.Cost)
	return err
}
