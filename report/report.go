// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/weiihann/archbench/harness"
	"github.com/weiihann/archbench/workload"
)

// Generate writes a markdown comparison report for the given results.
func Generate(w io.Writer, results []harness.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fastest := findFastest(results)

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	// Digest parity: the hash chain must agree across every run,
	// architecture and runtime for the same request.
	for _, p := range checkDigests(results) {
		if p.match {
			fmt.Fprintf(w, "Digest parity %s: **all match**\n", p.payload)

			continue
		}

		fmt.Fprintf(w, "Digest parity %s: **MISMATCH**\n", p.payload)

		for _, r := range p.results {
			fmt.Fprintf(w, "  - %s/%s: %s\n",
				r.Runtime, r.Architecture, strings.Join(uniq(r.Hashes()), ", "))
		}
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Workload | Runtime | Arch | Memory | Runs | Failures "+
		"| Mean | p50 | p90 | p99 | Billed | Peak Alloc | Cost/1M | Relative |")
	fmt.Fprintln(w, "|----------|---------|------|--------|------|----------"+
		"|------|-----|-----|-----|--------|------------|---------|----------|")

	for _, r := range results {
		relative := 1.0
		if f := fastest[r.Workload]; f > 0 && r.Duration.Mean > 0 {
			relative = r.Duration.Mean / f
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %d | %d | %s | %s | %s | %s | %s | %s | %s | %.2fx |\n",
			r.Workload,
			r.Runtime,
			r.Architecture,
			formatMemory(r.MemoryLimitMB),
			r.Runs,
			r.Failures,
			formatMs(r.Duration.Mean),
			formatMs(r.Duration.P50),
			formatMs(r.Duration.P90),
			formatMs(r.Duration.P99),
			formatMs(r.BilledDuration.Mean),
			formatBytes(r.PeakAllocBytes),
			formatCost(resultCost(r)),
			relative,
		)
	}

	writeSavings(w, results)

	return nil
}

// resultCost prices r per million invocations from its mean billed
// duration. Results without billing data report false.
func resultCost(r harness.Result) (float64, bool) {
	if r.BilledDuration.Mean <= 0 || r.MemoryLimitMB == 0 {
		return 0, false
	}

	return CostPerMillion(r.BilledDuration.Mean, r.MemoryLimitMB, r.Architecture, r.Region), true
}

type costKey struct {
	workload string
	runtime  string
	memoryMB uint32
}

type costPair struct {
	key      costKey
	arm, x86 float64
	hasArm   bool
	hasX86   bool
}

// writeSavings compares the cost of aarch64 and x86_64 results sharing a
// workload, runtime and memory size.
func writeSavings(w io.Writer, results []harness.Result) {
	var pairs []costPair

	for _, r := range results {
		cost, ok := resultCost(r)
		if !ok {
			continue
		}

		key := costKey{workload: r.Workload, runtime: r.Runtime, memoryMB: r.MemoryLimitMB}

		i := slices.IndexFunc(pairs, func(p costPair) bool { return p.key == key })
		if i < 0 {
			pairs = append(pairs, costPair{key: key})
			i = len(pairs) - 1
		}

		switch r.Architecture {
		case "aarch64", "arm64":
			if !pairs[i].hasArm {
				pairs[i].arm, pairs[i].hasArm = cost, true
			}
		default:
			if !pairs[i].hasX86 {
				pairs[i].x86, pairs[i].hasX86 = cost, true
			}
		}
	}

	pairs = slices.DeleteFunc(pairs, func(p costPair) bool { return !p.hasArm || !p.hasX86 })
	if len(pairs) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Cost per 1M invocations")
	fmt.Fprintln(w)

	for _, p := range pairs {
		pct, abs := Savings(p.arm, p.x86)

		fmt.Fprintf(w, "- %s %s %d MB: aarch64 %s, x86_64 %s, aarch64 saves %.2f%% (%s)\n",
			p.key.workload, p.key.runtime, p.key.memoryMB,
			formatDollars(p.arm), formatDollars(p.x86), pct, formatDollars(abs))
	}
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []harness.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

type parity struct {
	payload string
	match   bool
	results []harness.Result
}

// checkDigests groups hash-chain results by request payload and reports
// whether every successful sample in a group produced the same digest.
func checkDigests(results []harness.Result) []parity {
	var groups []parity

	for _, r := range results {
		if r.Workload != workload.HashChainType {
			continue
		}

		payload := r.Payload
		if payload == "" {
			payload = "{}"
		}

		i := slices.IndexFunc(groups, func(p parity) bool { return p.payload == payload })
		if i < 0 {
			groups = append(groups, parity{payload: payload, match: true})
			i = len(groups) - 1
		}

		groups[i].results = append(groups[i].results, r)
	}

	for i := range groups {
		var first string

		for _, r := range groups[i].results {
			for _, h := range r.Hashes() {
				if first == "" {
					first = h
				} else if h != first {
					groups[i].match = false
				}
			}
		}
	}

	return groups
}

// findFastest returns the lowest positive mean duration per workload.
func findFastest(results []harness.Result) map[string]float64 {
	fastest := make(map[string]float64)

	for _, r := range results {
		if r.Duration.Mean <= 0 {
			continue
		}

		cur, ok := fastest[r.Workload]
		if !ok || r.Duration.Mean < cur {
			fastest[r.Workload] = r.Duration.Mean
		}
	}

	return fastest
}

func uniq(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)

	return slices.Compact(out)
}

func formatMs(ms float64) string {
	if math.IsNaN(ms) || ms <= 0 {
		return "-"
	}

	if ms < 1000 {
		return fmt.Sprintf("%.2fms", ms)
	}

	return fmt.Sprintf("%.2fs", ms/1000)
}

func formatCost(dollars float64, ok bool) string {
	if !ok {
		return "-"
	}

	return formatDollars(dollars)
}

func formatDollars(dollars float64) string {
	if dollars < 0 {
		return fmt.Sprintf("-$%.4f", -dollars)
	}

	return fmt.Sprintf("$%.4f", dollars)
}

func formatMemory(mb uint32) string {
	if mb == 0 {
		return "-"
	}

	return fmt.Sprintf("%d MB", mb)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
