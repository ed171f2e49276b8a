package workload

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// MemorySizeEnv is the variable the host uses to report the configured
// memory ceiling of the function.
const MemorySizeEnv = "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"

// Environment carries the process-wide values every invocation reports.
// It is built once at process start and never mutated.
type Environment struct {
	// Architecture is the instruction-set family of the running binary.
	Architecture string
	// Runtime identifies the language runtime, e.g. go1.24.0.
	Runtime string

	lookup func(string) (string, bool)
}

// NewEnvironment resolves the environment of the current process.
func NewEnvironment() Environment {
	return Environment{
		Architecture: ResolveArchitecture(runtime.GOARCH),
		Runtime:      runtime.Version(),
		lookup:       os.LookupEnv,
	}
}

// WithLookup returns a copy of e that reads host variables through fn.
func (e Environment) WithLookup(fn func(string) (string, bool)) Environment {
	e.lookup = fn

	return e
}

// ResolveArchitecture maps a GOARCH value onto the instruction-set names
// used by the other runtimes of the benchmark.
func ResolveArchitecture(goarch string) string {
	switch goarch {
	case "arm64":
		return "aarch64"
	case "amd64":
		return "x86_64"
	default:
		return goarch
	}
}

// MemoryLimitMB returns the host-reported memory limit, or 0 when the
// signal is absent or malformed. It is read on every call.
func (e Environment) MemoryLimitMB() uint32 {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	raw, ok := lookup(MemorySizeEnv)
	if !ok {
		return 0
	}

	mb, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0
	}

	return uint32(mb)
}

func (e Environment) meta(workloadType string) Meta {
	return Meta{
		Success:       true,
		WorkloadType:  workloadType,
		Architecture:  e.Architecture,
		MemoryLimitMB: e.MemoryLimitMB(),
	}
}
