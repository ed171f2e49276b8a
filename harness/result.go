// Package harness runs workloads locally and collects per-run samples.
package harness

// Sample is the outcome of a single measured invocation.
type Sample struct {
	Run        int     `json:"run"`
	ElapsedMs  float64 `json:"elapsed_ms"`
	AllocBytes uint64  `json:"alloc_bytes"`
	Success    bool    `json:"success"`
	ResultHash string  `json:"result_hash,omitempty"`
	Error      string  `json:"error,omitempty"`

	// Platform metrics, present for remote invocations only.
	BilledMs     float64 `json:"billed_ms,omitempty"`
	MemoryUsedMB uint32  `json:"memory_used_mb,omitempty"`
	InitMs       float64 `json:"init_ms,omitempty"`
	RequestID    string  `json:"request_id,omitempty"`
}

// Result aggregates the samples of one workload on one process.
type Result struct {
	Workload       string   `json:"workload"`
	Architecture   string   `json:"architecture"`
	Runtime        string   `json:"runtime"`
	MemoryLimitMB  uint32   `json:"memory_limit_mb"`
	Payload        string   `json:"payload,omitempty"`
	Runs           int      `json:"runs"`
	Failures       int      `json:"failures"`
	Duration       Stats    `json:"duration_ms"`
	PeakAllocBytes uint64   `json:"peak_alloc_bytes"`
	Samples        []Sample `json:"samples"`

	// Function and Region identify a deployed function.
	Function        string `json:"function,omitempty"`
	Region          string `json:"region,omitempty"`
	BilledDuration  Stats  `json:"billed_duration_ms"`
	MaxMemoryUsedMB uint32 `json:"max_memory_used_mb,omitempty"`
	ColdStarts      int    `json:"cold_starts,omitempty"`
}

// Hashes returns the result hashes of the successful samples.
func (r Result) Hashes() []string {
	hashes := make([]string, 0, len(r.Samples))
	for _, s := range r.Samples {
		if s.Success && s.ResultHash != "" {
			hashes = append(hashes, s.ResultHash)
		}
	}

	return hashes
}
