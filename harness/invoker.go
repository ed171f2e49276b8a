package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/weiihann/archbench/workload"
)

// Invoker performs one invocation of a workload and returns its raw JSON
// response.
type Invoker interface {
	Type() string
	Invoke(ctx context.Context, payload []byte) (Invocation, error)
}

// Invocation is the raw outcome of one call.
type Invocation struct {
	// Response is the JSON envelope returned by the workload.
	Response []byte
	// AllocBytes is the heap allocated by an in-process call.
	AllocBytes uint64
	// Report holds the platform metrics of a remote call, nil otherwise.
	Report *Report
}

type local struct {
	w workload.Workload
}

// Local invokes w in the current process.
func Local(w workload.Workload) Invoker {
	return local{w: w}
}

func (l local) Type() string { return l.w.Type() }

func (l local) Invoke(ctx context.Context, payload []byte) (Invocation, error) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	env := l.w.Invoke(ctx, payload)

	runtime.ReadMemStats(&after)

	raw, err := json.Marshal(env)
	if err != nil {
		return Invocation{}, fmt.Errorf("marshal envelope: %w", err)
	}

	return Invocation{
		Response:   raw,
		AllocBytes: after.TotalAlloc - before.TotalAlloc,
	}, nil
}
