package workload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashChainSeed is hashed by the first iteration of the chain. It must be
// byte-identical across every implementation of the workload.
const HashChainSeed = "benchmark data for Lambda ARM vs x86 performance testing"

const (
	// DefaultIterations is used when the request omits iterations.
	DefaultIterations uint32 = 500_000
	// MaxIterations bounds a single invocation.
	MaxIterations uint32 = 10_000_000
)

// HashChainVectors maps iteration counts to the expected lowercase hex
// digest. Every implementation must reproduce these exactly.
var HashChainVectors = map[uint32]string{
	1:       "6b6e548e594e53ce566337aea06fedd1256f903086920dd30ab88ddd089b4cf9",
	2:       "34e605984b96799c2725c2b6f61c04988d6cf53d99370bf559e4e859cdd9ea83",
	1000:    "dd616d600a5889575a59d741a505657dbc2d2ceca0588d62d8af79e2255461da",
	500_000: "52662a4ed3c1e9b0bf4ce59d97c377d280c082585794b9d559e5bae280a6cd22",
}

// HashChainRequest is the cpu-intensive request. Iterations is signed so
// that negative counts reach range validation instead of failing to decode.
type HashChainRequest struct {
	Iterations int64 `json:"iterations"`
}

// UnmarshalJSON applies DefaultIterations when the field is absent.
func (r *HashChainRequest) UnmarshalJSON(data []byte) error {
	type plain HashChainRequest

	req := plain{Iterations: int64(DefaultIterations)}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	*r = HashChainRequest(req)

	return nil
}

// HashChain is the CPU-bound workload: a SHA-256 digest chain.
type HashChain struct {
	env Environment
}

// NewHashChain creates the cpu-intensive workload.
func NewHashChain(env Environment) *HashChain {
	return &HashChain{env: env}
}

// Type returns HashChainType.
func (h *HashChain) Type() string { return HashChainType }

// Invoke decodes the request and runs the chain.
func (h *HashChain) Invoke(_ context.Context, payload []byte) Envelope {
	req := HashChainRequest{Iterations: int64(DefaultIterations)}

	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return fail(HashChainType, "invalid 'iterations' (must be an integer)")
		}
	}

	return h.Run(req)
}

// Run validates the iteration count and computes the chain.
func (h *HashChain) Run(req HashChainRequest) Envelope {
	if req.Iterations <= 0 {
		return fail(HashChainType, "iterations must be > 0")
	}
	if req.Iterations > int64(MaxIterations) {
		return fail(HashChainType,
			fmt.Sprintf("iterations too high (max %d)", MaxIterations))
	}

	n := uint32(req.Iterations)

	return HashChainResult{
		Meta:       h.env.meta(HashChainType),
		Iterations: n,
		ResultHash: ChainDigest(n),
	}
}

// ChainDigest hashes HashChainSeed once and then re-hashes the raw digest
// until iterations digests have been computed. It returns lowercase hex.
// iterations must be at least 1.
func ChainDigest(iterations uint32) string {
	sum := sha256.Sum256([]byte(HashChainSeed))

	for i := uint32(1); i < iterations; i++ {
		sum = sha256.Sum256(sum[:])
	}

	return hex.EncodeToString(sum[:])
}
