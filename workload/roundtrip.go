package workload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/archbench/store"
)

const (
	// BatchSize is the number of records written and read per invocation.
	BatchSize = 5

	recordTTL = 24 * time.Hour
)

// Phase is a step of the round-trip state machine.
type Phase int

// Round-trip phases in execution order. PhaseWriteFailed, PhaseReadFailed
// and PhaseCountMismatch are terminal failures; PhaseDone is the only
// terminal success.
const (
	PhaseIdle Phase = iota
	PhaseWriting
	PhaseWriteFailed
	PhaseWritten
	PhaseReading
	PhaseReadFailed
	PhaseCountMismatch
	PhaseRead
	PhaseVerifying
	PhaseDone
)

var phaseNames = [...]string{
	PhaseIdle:          "idle",
	PhaseWriting:       "writing",
	PhaseWriteFailed:   "write_failed",
	PhaseWritten:       "written",
	PhaseReading:       "reading",
	PhaseReadFailed:    "read_failed",
	PhaseCountMismatch: "count_mismatch",
	PhaseRead:          "read",
	PhaseVerifying:     "verifying",
	PhaseDone:          "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}

	return phaseNames[p]
}

// RoundTrip is the I/O-bound workload: batch-write five records to the
// store, batch-read them back and verify their payloads.
type RoundTrip struct {
	env    Environment
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// RoundTripOption configures a RoundTrip.
type RoundTripOption func(*RoundTrip)

// WithClock overrides the time source used for keys, timestamps and TTL.
func WithClock(now func() time.Time) RoundTripOption {
	return func(r *RoundTrip) { r.now = now }
}

// WithLogger logs state transitions at debug level.
func WithLogger(logger *slog.Logger) RoundTripOption {
	return func(r *RoundTrip) { r.logger = logger }
}

// NewRoundTrip creates the light workload on top of s. The store is shared
// read-only across invocations.
func NewRoundTrip(env Environment, s store.Store, opts ...RoundTripOption) *RoundTrip {
	r := &RoundTrip{
		env:    env,
		store:  s,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Type returns RoundTripType.
func (r *RoundTrip) Type() string { return RoundTripType }

// Invoke ignores the payload and runs one round-trip.
func (r *RoundTrip) Invoke(ctx context.Context, _ []byte) Envelope {
	return r.Run(ctx)
}

// Run performs the write, read and verification steps.
func (r *RoundTrip) Run(ctx context.Context) Envelope {
	env, _ := r.run(ctx)

	return env
}

func (r *RoundTrip) run(ctx context.Context) (Envelope, Phase) {
	phase := PhaseIdle
	enter := func(p Phase) {
		r.logger.DebugContext(ctx, "round-trip transition",
			slog.String("from", phase.String()),
			slog.String("to", p.String()),
		)
		phase = p
	}

	records := r.buildRecords()

	enter(PhaseWriting)

	writeID, err := r.store.BatchPut(ctx, records)
	if err != nil {
		enter(PhaseWriteFailed)

		return fail(RoundTripType, fmt.Sprintf("batch write failed: %v", err)), phase
	}

	enter(PhaseWritten)
	enter(PhaseReading)

	keys := make([]store.Key, len(records))
	for i, rec := range records {
		keys[i] = rec.Key()
	}

	got, readID, err := r.store.BatchGet(ctx, keys)
	if err != nil {
		enter(PhaseReadFailed)

		return fail(RoundTripType, fmt.Sprintf("batch read failed: %v", err)), phase
	}

	if len(got) != BatchSize {
		enter(PhaseCountMismatch)

		return fail(RoundTripType,
			fmt.Sprintf("expected %d items, got %d", BatchSize, len(got))), phase
	}

	enter(PhaseRead)
	enter(PhaseVerifying)

	matches := verify(records, got)

	enter(PhaseDone)

	return RoundTripResult{
		Meta:           r.env.meta(RoundTripType),
		ItemsWritten:   len(records),
		ItemsRead:      len(got),
		WriteRequestID: writeID,
		ReadRequestID:  readID,
		AllDataMatches: matches,
	}, phase
}

func (r *RoundTrip) buildRecords() []store.Record {
	now := r.now()
	nowMs := now.UnixMilli()
	ttl := now.Add(recordTTL).Unix()

	records := make([]store.Record, BatchSize)
	for i := range records {
		records[i] = store.Record{
			PK:           fmt.Sprintf("test-%d-%d", nowMs, i),
			SK:           RoundTripType,
			Timestamp:    nowMs + int64(i),
			TTL:          ttl,
			Workload:     RoundTripType,
			Runtime:      r.env.Runtime,
			Architecture: r.env.Architecture,
			Data:         payload(r.env, i),
		}
	}

	return records
}

func payload(env Environment, index int) string {
	return fmt.Sprintf("benchmark test data - %s %s - item %d",
		env.Runtime, env.Architecture, index)
}

// verify matches records by partition key because batch reads are
// unordered. It stops at the first missing or differing payload.
func verify(want, got []store.Record) bool {
	byPK := make(map[string]string, len(got))
	for _, rec := range got {
		byPK[rec.PK] = rec.Data
	}

	for _, rec := range want {
		data, ok := byPK[rec.PK]
		if !ok || data != rec.Data {
			return false
		}
	}

	return true
}
