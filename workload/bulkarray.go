package workload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	// ArraySizeMB is the fixed buffer size. It is deliberately not taken
	// from the request or the memory configuration.
	ArraySizeMB = 100
	// ArrayElements is the number of int64 slots in the buffer.
	ArrayElements = (ArraySizeMB * 1024 * 1024) / 8
	// SampleSize is the number of sorted elements that get digested.
	SampleSize = 1000

	valueBound = 1 << 30
)

// BulkArray is the memory-bound workload: fill, sort and sample a fixed
// 100 MiB buffer of random integers.
type BulkArray struct {
	env Environment
}

// NewBulkArray creates the memory-intensive workload.
func NewBulkArray(env Environment) *BulkArray {
	return &BulkArray{env: env}
}

// Type returns BulkArrayType.
func (b *BulkArray) Type() string { return BulkArrayType }

// Invoke ignores the payload; the buffer size never depends on input.
func (b *BulkArray) Invoke(_ context.Context, _ []byte) Envelope {
	return b.Run()
}

// Run allocates, fills, sorts and samples the buffer.
func (b *BulkArray) Run() Envelope {
	// Entropy-seeded on purpose: results must not repeat across runs.
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	data := fillSorted(ArrayElements, rng)

	return BulkArrayResult{
		Meta:       b.env.meta(BulkArrayType),
		SizeMB:     ArraySizeMB,
		ResultHash: SampleDigest(data),
	}
}

func fillSorted(n int, rng *rand.Rand) []int64 {
	data := make([]int64, n)
	for i := range data {
		data[i] = rng.Int64N(valueBound)
	}

	slices.Sort(data)

	return data
}

// SampleDigest serializes the first min(SampleSize, len(sorted)) elements
// as a compact JSON array and returns the lowercase hex SHA-256 of it.
func SampleDigest(sorted []int64) string {
	sample := sorted[:min(SampleSize, len(sorted))]
	if sample == nil {
		sample = []int64{}
	}

	text, err := json.Marshal(sample)
	if err != nil {
		// []int64 always marshals.
		panic(fmt.Sprintf("marshal sample: %v", err))
	}

	sum := sha256.Sum256(text)

	return hex.EncodeToString(sum[:])
}
