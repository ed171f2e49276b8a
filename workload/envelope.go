package workload

// Envelope is the uniform response of every workload. It is either a
// Failure or one of the workload-specific success results.
type Envelope interface {
	Succeeded() bool
	Workload() string
}

// Meta holds the fields common to every successful envelope.
type Meta struct {
	Success       bool   `json:"success"`
	WorkloadType  string `json:"workloadType"`
	Architecture  string `json:"architecture"`
	MemoryLimitMB uint32 `json:"memoryLimitMb"`
}

// Succeeded reports whether the envelope is a success.
func (m Meta) Succeeded() bool { return m.Success }

// Workload returns the workload type of the envelope.
func (m Meta) Workload() string { return m.WorkloadType }

// Failure is returned when an invocation could not complete. No partial
// result fields are carried.
type Failure struct {
	Success      bool   `json:"success"`
	WorkloadType string `json:"workloadType"`
	Error        string `json:"error"`
}

// Succeeded always returns false.
func (f Failure) Succeeded() bool { return false }

// Workload returns the workload type of the envelope.
func (f Failure) Workload() string { return f.WorkloadType }

func fail(workloadType, msg string) Failure {
	return Failure{Success: false, WorkloadType: workloadType, Error: msg}
}

// HashChainResult is the success envelope of the cpu-intensive workload.
type HashChainResult struct {
	Meta
	Iterations uint32 `json:"iterations"`
	ResultHash string `json:"resultHash"`
}

// BulkArrayResult is the success envelope of the memory-intensive workload.
type BulkArrayResult struct {
	Meta
	SizeMB     uint32 `json:"sizeMb"`
	ResultHash string `json:"resultHash"`
}

// RoundTripResult is the success envelope of the light workload.
type RoundTripResult struct {
	Meta
	ItemsWritten   int    `json:"itemsWritten"`
	ItemsRead      int    `json:"itemsRead"`
	WriteRequestID string `json:"writeRequestId"`
	ReadRequestID  string `json:"readRequestId"`
	AllDataMatches bool   `json:"allDataMatches"`
}
