package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/weiihann/archbench/workload"
)

// RunConfig holds parameters for one benchmark series.
type RunConfig struct {
	// Runs is the number of measured invocations.
	Runs int
	// Warmup invocations run first and are not recorded.
	Warmup int
	// Payload is the JSON request passed to every invocation.
	Payload []byte
	// Timeout bounds each invocation; zero means no limit.
	Timeout time.Duration
}

// Runner invokes a single workload, in-process or remotely.
type Runner struct {
	Invoker Invoker
	Env     workload.Environment
	Logger  *slog.Logger
}

// NewRunner creates a Runner for inv. env describes where inv executes.
func NewRunner(
	inv Invoker,
	env workload.Environment,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Invoker: inv,
		Env:     env,
		Logger:  logger.With(slog.String("workload", inv.Type())),
	}
}

// Run executes the warmup and measured invocations and summarizes them.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", cfg.Runs)
	}

	for i := 0; i < cfg.Warmup; i++ {
		if _, err := r.invoke(ctx, cfg, -1); err != nil {
			return nil, fmt.Errorf("warmup %d: %w", i, err)
		}
	}

	result := &Result{
		Workload:      r.Invoker.Type(),
		Architecture:  r.Env.Architecture,
		Runtime:       r.Env.Runtime,
		MemoryLimitMB: r.Env.MemoryLimitMB(),
		Payload:       string(bytes.TrimSpace(cfg.Payload)),
		Runs:          cfg.Runs,
		Samples:       make([]Sample, 0, cfg.Runs),
	}

	elapsed := make([]float64, 0, cfg.Runs)
	billed := make([]float64, 0, cfg.Runs)

	for i := 0; i < cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}

		sample, err := r.invoke(ctx, cfg, i)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}

		if !sample.Success {
			result.Failures++

			r.Logger.Warn("invocation failed",
				slog.Int("run", i),
				slog.String("error", sample.Error),
			)
		}

		result.PeakAllocBytes = max(result.PeakAllocBytes, sample.AllocBytes)
		result.MaxMemoryUsedMB = max(result.MaxMemoryUsedMB, sample.MemoryUsedMB)
		if sample.InitMs > 0 {
			result.ColdStarts++
		}
		if sample.BilledMs > 0 {
			billed = append(billed, sample.BilledMs)
		}

		result.Samples = append(result.Samples, sample)
		elapsed = append(elapsed, sample.ElapsedMs)
	}

	result.Duration = Summarize(elapsed, true)
	result.BilledDuration = Summarize(billed, true)

	r.Logger.Info("series finished",
		slog.Int("runs", cfg.Runs),
		slog.Int("failures", result.Failures),
		slog.Float64("mean_ms", result.Duration.Mean),
	)

	return result, nil
}

func (r *Runner) invoke(ctx context.Context, cfg RunConfig, run int) (Sample, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	inv, err := r.Invoker.Invoke(ctx, cfg.Payload)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Sample{
				Run:       run,
				ElapsedMs: float64(elapsed.Microseconds()) / 1000,
				Error:     fmt.Sprintf("exceeded timeout of %s", cfg.Timeout),
			}, nil
		}

		return Sample{}, err
	}

	parsed, err := ParseEnvelope(bytes.NewReader(inv.Response))
	if err != nil {
		return Sample{}, fmt.Errorf("parse envelope: %w\nenvelope: %s", err, inv.Response)
	}

	sample := Sample{
		Run:        run,
		ElapsedMs:  float64(elapsed.Microseconds()) / 1000,
		AllocBytes: inv.AllocBytes,
		Success:    parsed.Success,
		ResultHash: parsed.ResultHash,
		Error:      parsed.Error,
	}

	// Platform metrics replace the wall clock, which includes the network.
	if rep := inv.Report; rep != nil {
		if rep.DurationMs > 0 {
			sample.ElapsedMs = rep.DurationMs
		}

		sample.BilledMs = rep.BilledDurationMs
		sample.MemoryUsedMB = rep.MaxMemoryUsedMB
		sample.InitMs = rep.InitDurationMs
		sample.RequestID = rep.RequestID
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		sample.Success = false
		sample.Error = fmt.Sprintf("exceeded timeout of %s", cfg.Timeout)
	}

	return sample, nil
}

// Envelope is the subset of a workload response the harness inspects.
type Envelope struct {
	Success       bool   `json:"success"`
	WorkloadType  string `json:"workloadType"`
	Architecture  string `json:"architecture"`
	MemoryLimitMB uint32 `json:"memoryLimitMb"`
	ResultHash    string `json:"resultHash"`
	Error         string `json:"error"`
}

// ParseEnvelope decodes a workload JSON response.
func ParseEnvelope(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if env.WorkloadType == "" {
		return nil, errors.New("envelope has no workloadType")
	}

	return &env, nil
}

// LoadResults decodes a JSON array of results as written by
// report.GenerateJSON.
func LoadResults(r io.Reader) ([]Result, error) {
	var results []Result
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	return results, nil
}
