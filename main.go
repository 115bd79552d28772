package main

import (
	"os"

	"github.com/kilianp07/agvfleet/cmd"
	"github.com/kilianp07/agvfleet/infra/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.New("main").Errorf("%v", err)
		os.Exit(1)
	}
}
