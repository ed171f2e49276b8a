// Package workload implements the standardized benchmark workloads. Each
// workload isolates one resource dimension (CPU, memory bandwidth, I/O
// round-trip) and answers every invocation with exactly one Envelope, so
// runs can be compared across architectures and language runtimes.
package workload

import "context"

// Workload type identifiers. These are fixed per workload and never
// derived from request input.
const (
	HashChainType = "cpu-intensive"
	BulkArrayType = "memory-intensive"
	RoundTripType = "light"
)

// Workload is a single benchmark unit invoked with a raw JSON request.
type Workload interface {
	// Type returns the workload type identifier.
	Type() string

	// Invoke performs one bounded unit of work and returns its envelope.
	Invoke(ctx context.Context, payload []byte) Envelope
}

// Types returns the known workload types in their canonical order.
func Types() []string {
	return []string{HashChainType, BulkArrayType, RoundTripType}
}
