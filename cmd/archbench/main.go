// Package main provides the CLI entry point for archbench, a
// cross-architecture, cross-runtime workload benchmarking tool.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/weiihann/archbench/config"
	"github.com/weiihann/archbench/harness"
	"github.com/weiihann/archbench/report"
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
	logger := slog.New(log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "archbench",
		Level:           log.Level(level),
		ReportTimestamp: true,
	}))

	root := newRootCmd(logger, cfg)
	if err := root.Execute(); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "archbench",
		Short: "Cross-architecture workload benchmarking tool",
		Long: `Archbench runs the standardized cpu-intensive, memory-intensive and
light workloads, either in-process or against the deployed serverless
functions, and compares timing, cost and digest parity across
architectures and runtimes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger, cfg))
	root.AddCommand(newRemoteCmd(logger))
	root.AddCommand(newReportCmd())
	root.AddCommand(newVectorCmd())

	return root
}

func newRunCmd(logger *slog.Logger, cfg *config.Config) *cobra.Command {
	var rc runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run workloads locally and report timings",
		Long: `Invoke each selected workload in-process, recording wall time and
allocations per run, then print a comparison report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), logger, cmd.OutOrStdout(), rc)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&rc.workloads, "workloads", workload.Types(),
		"Workloads to run (cpu-intensive, memory-intensive, light)")
	flags.Uint32Var(&rc.iterations, "iterations", workload.DefaultIterations,
		"Hash-chain iterations for cpu-intensive")
	flags.IntVar(&rc.runs, "runs", 5,
		"Measured invocations per workload")
	flags.IntVar(&rc.warmup, "warmup", 1,
		"Unrecorded warmup invocations per workload")
	flags.StringVar(&rc.store.Backend, "store", defaultBackend(cfg),
		"Store backend for the light workload: memory, redis, dynamodb")
	flags.StringVar(&rc.store.Table, "table", cfg.Table,
		"Store table name")
	flags.StringVar(&rc.store.RedisAddr, "redis-addr", cfg.RedisAddr,
		"Redis address for the redis backend")
	flags.DurationVar(&rc.timeout, "timeout", 5*time.Minute,
		"Per-invocation timeout")
	flags.BoolVar(&rc.outputJSON, "json", false,
		"Output results as JSON instead of a table")
	flags.StringVar(&rc.output, "output", "",
		"Also write JSON results to this file")

	return cmd
}

// defaultBackend keeps local runs off AWS unless a backend is configured
// explicitly.
func defaultBackend(cfg *config.Config) string {
	if v, ok := os.LookupEnv(config.EnvStore); ok && v != "" {
		return cfg.Store
	}

	return store.BackendMemory
}

type runConfig struct {
	workloads  []string
	iterations uint32
	runs       int
	warmup     int
	store      store.Options
	timeout    time.Duration
	outputJSON bool
	output     string
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	stdout io.Writer,
	cfg runConfig,
) error {
	if len(cfg.workloads) == 0 {
		return fmt.Errorf("at least one workload must be specified via --workloads")
	}

	env := workload.NewEnvironment()

	logger.InfoContext(ctx, "starting benchmark",
		slog.Any("workloads", cfg.workloads),
		slog.String("architecture", env.Architecture),
		slog.String("runtime", env.Runtime),
		slog.Int("runs", cfg.runs),
		slog.Int("warmup", cfg.warmup),
	)

	results := make([]harness.Result, 0, len(cfg.workloads))

	for _, name := range cfg.workloads {
		w, payload, closer, err := buildWorkload(ctx, env, name, cfg, logger)
		if err != nil {
			return fmt.Errorf("build %s: %w", name, err)
		}

		runner := harness.NewRunner(harness.Local(w), env, logger)

		result, err := runner.Run(ctx, harness.RunConfig{
			Runs:    cfg.runs,
			Warmup:  cfg.warmup,
			Payload: payload,
			Timeout: cfg.timeout,
		})

		closeStore(ctx, logger, closer)

		if err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}

		results = append(results, *result)
	}

	if err := emitResults(ctx, logger, stdout, results, cfg.outputJSON, cfg.output); err != nil {
		return err
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}

func emitResults(
	ctx context.Context,
	logger *slog.Logger,
	stdout io.Writer,
	results []harness.Result,
	outputJSON bool,
	output string,
) error {
	if output != "" {
		if err := writeResults(output, results); err != nil {
			return err
		}

		logger.InfoContext(ctx, "results written", slog.String("path", output))
	}

	if outputJSON {
		if err := report.GenerateJSON(stdout, results); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}

		return nil
	}

	if err := report.Generate(stdout, results); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	return nil
}

// closeStore releases a store opened for one series. A close failure is
// logged and does not fail the benchmark.
func closeStore(ctx context.Context, logger *slog.Logger, c io.Closer) {
	if c == nil {
		return
	}

	if err := c.Close(); err != nil {
		logger.WarnContext(ctx, "close store", slog.String("error", err.Error()))
	}
}

func buildWorkload(
	ctx context.Context,
	env workload.Environment,
	name string,
	cfg runConfig,
	logger *slog.Logger,
) (workload.Workload, []byte, io.Closer, error) {
	switch strings.TrimSpace(name) {
	case workload.HashChainType:
		return workload.NewHashChain(env), hashChainPayload(cfg.iterations), nil, nil

	case workload.BulkArrayType:
		return workload.NewBulkArray(env), []byte(`{}`), nil, nil

	case workload.RoundTripType:
		s, err := store.Open(ctx, cfg.store)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open store: %w", err)
		}

		rt := workload.NewRoundTrip(env, s, workload.WithLogger(logger))

		closer, _ := s.(io.Closer)

		return rt, []byte(`{}`), closer, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown workload %q (known: %s)",
			name, strings.Join(workload.Types(), ", "))
	}
}

func hashChainPayload(iterations uint32) []byte {
	return []byte(fmt.Sprintf(`{"iterations":%d}`, iterations))
}

func writeResults(path string, results []harness.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := report.GenerateJSON(f, results); err != nil {
		f.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// newLambdaClient builds the Lambda client used by the remote command and
// returns the region it resolved to.
var newLambdaClient = func(ctx context.Context, region string) (harness.LambdaAPI, string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("load aws config: %w", err)
	}

	return awslambda.NewFromConfig(cfg), cfg.Region, nil
}

type remoteConfig struct {
	functions  []string
	workload   string
	iterations uint32
	runs       int
	warmup     int
	region     string
	timeout    time.Duration
	outputJSON bool
	output     string
}

func newRemoteCmd(logger *slog.Logger) *cobra.Command {
	var rc remoteConfig

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Invoke deployed functions and report platform metrics",
		Long: `Invoke each deployed function synchronously with the log tail
requested, parse the REPORT line for duration, billed duration, memory
used and init duration, then print a report with per-million cost and
aarch64 versus x86_64 savings.

The workload of each function is inferred from its name suffix
(cpu-intensive, memory-intensive, light) unless --workload is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRemote(cmd.Context(), logger, cmd.OutOrStdout(), rc)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&rc.functions, "functions", nil,
		"Deployed function names to invoke")
	flags.StringVar(&rc.workload, "workload", "",
		"Workload served by every function (default: inferred from the name)")
	flags.Uint32Var(&rc.iterations, "iterations", workload.DefaultIterations,
		"Hash-chain iterations for cpu-intensive")
	flags.IntVar(&rc.runs, "runs", 5,
		"Measured invocations per function")
	flags.IntVar(&rc.warmup, "warmup", 1,
		"Unrecorded warmup invocations per function")
	flags.StringVar(&rc.region, "region", "",
		"AWS region (default: from the AWS configuration)")
	flags.DurationVar(&rc.timeout, "timeout", 15*time.Minute,
		"Per-invocation timeout")
	flags.BoolVar(&rc.outputJSON, "json", false,
		"Output results as JSON instead of a table")
	flags.StringVar(&rc.output, "output", "",
		"Also write JSON results to this file")

	_ = cmd.MarkFlagRequired("functions")

	return cmd
}

func runRemote(
	ctx context.Context,
	logger *slog.Logger,
	stdout io.Writer,
	cfg remoteConfig,
) error {
	client, region, err := newLambdaClient(ctx, cfg.region)
	if err != nil {
		return err
	}

	if region == "" {
		region = report.DefaultRegion
	}

	results := make([]harness.Result, 0, len(cfg.functions))

	for _, fn := range cfg.functions {
		fn = strings.TrimSpace(fn)

		wt := cfg.workload
		if wt == "" {
			wt = workloadFromFunction(fn)
		}

		if !slices.Contains(workload.Types(), wt) {
			return fmt.Errorf("cannot determine workload of %s (known: %s)",
				fn, strings.Join(workload.Types(), ", "))
		}

		inv := harness.NewLambdaInvoker(client, fn, wt)

		env, err := inv.Environment(ctx)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "invoking function",
			slog.String("function", fn),
			slog.String("workload", wt),
			slog.String("architecture", env.Architecture),
			slog.String("runtime", env.Runtime),
			slog.Uint64("memory_mb", uint64(env.MemoryLimitMB())),
		)

		payload := []byte(`{}`)
		if wt == workload.HashChainType {
			payload = hashChainPayload(cfg.iterations)
		}

		result, err := harness.NewRunner(inv, env, logger).Run(ctx, harness.RunConfig{
			Runs:    cfg.runs,
			Warmup:  cfg.warmup,
			Payload: payload,
			Timeout: cfg.timeout,
		})
		if err != nil {
			return fmt.Errorf("run %s: %w", fn, err)
		}

		result.Function = fn
		result.Region = region

		results = append(results, *result)
	}

	return emitResults(ctx, logger, stdout, results, cfg.outputJSON, cfg.output)
}

// workloadFromFunction matches a function name such as
// rust-arm64-cpu-intensive against the workload types by suffix.
func workloadFromFunction(name string) string {
	for _, t := range workload.Types() {
		if strings.HasSuffix(name, t) {
			return t
		}
	}

	return ""
}

func newReportCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "report FILE...",
		Short: "Merge result files and print a comparison report",
		Long: `Merge JSON result files written by 'archbench run --output', for
example one per architecture, and print a single comparison report.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := loadResultFiles(args)
			if err != nil {
				return err
			}

			if outputJSON {
				return report.GenerateJSON(cmd.OutOrStdout(), results)
			}

			return report.Generate(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output merged results as JSON instead of a table")

	return cmd
}

func loadResultFiles(paths []string) ([]harness.Result, error) {
	var all []harness.Result

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		results, err := harness.LoadResults(f)
		f.Close()

		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}

		all = append(all, results...)
	}

	return all, nil
}

func newVectorCmd() *cobra.Command {
	var iterations []uint

	cmd := &cobra.Command{
		Use:   "vector",
		Short: "Print hash-chain parity vectors",
		Long: `Print the hash-chain seed and the digest for each iteration count.
Every implementation of the cpu-intensive workload must reproduce them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "seed: %q\n", workload.HashChainSeed)

			for _, n := range iterations {
				if n == 0 || n > uint(workload.MaxIterations) {
					return fmt.Errorf("iterations must be in [1, %d], got %d",
						workload.MaxIterations, n)
				}

				fmt.Fprintf(out, "%d\t%s\n", n, workload.ChainDigest(uint32(n)))
			}

			return nil
		},
	}

	cmd.Flags().UintSliceVar(&iterations, "iterations",
		[]uint{1, 2, 1000, uint(workload.DefaultIterations)},
		"Iteration counts to print")

	return cmd
}
