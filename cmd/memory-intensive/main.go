// Command memory-intensive is the Lambda entry point of the fixed-size
// sort workload.
package main

import (
	"fmt"
	"os"

	"github.com/weiihann/archbench/config"
	"github.com/weiihann/archbench/host"
	"github.com/weiihann/archbench/workload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.SlogLevel()
	logger := host.NewLogger(os.Stderr, level)
	env := workload.NewEnvironment()

	host.Start(host.NewHandler(workload.NewBulkArray(env), env, logger))
}
