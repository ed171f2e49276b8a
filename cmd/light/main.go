// Command light is the Lambda entry point of the store round-trip
// workload. The store client is built once and reused by every
// invocation of the process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/weiihann/archbench/config"
	"github.com/weiihann/archbench/host"
	"github.com/weiihann/archbench/store"
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

	ctx := context.Background()

	s, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.ErrorContext(ctx, "open store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "store ready",
		slog.String("backend", cfg.Store),
		slog.String("table", cfg.Table),
	)

	rt := workload.NewRoundTrip(env, s, workload.WithLogger(logger))

	host.Start(host.NewHandler(rt, env, logger))
}
