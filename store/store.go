// Package store defines the key-value store contract used by the light
// workload and provides DynamoDB, Redis and in-memory backends.
package store

import (
	"context"
	"errors"
	"fmt"
)

// DefaultTable is used when no table override is configured.
const DefaultTable = "benchmark-test-data"

// UnknownRequestID is reported when a backend returns no request id.
const UnknownRequestID = "unknown"

// Backend names accepted by Open.
const (
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Key addresses a record by partition and sort key.
type Key struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
}

// Record is one item written by the light workload.
type Record struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	Timestamp    int64  `dynamodbav:"timestamp"`
	TTL          int64  `dynamodbav:"ttl"`
	Workload     string `dynamodbav:"workload"`
	Runtime      string `dynamodbav:"runtime"`
	Architecture string `dynamodbav:"architecture"`
	Data         string `dynamodbav:"data"`
}

// Key returns the record's primary key.
func (r Record) Key() Key {
	return Key{PK: r.PK, SK: r.SK}
}

// Store is a durable key-value store supporting single-request batch
// operations. Implementations do not retry; errors surface immediately.
// BatchGet results are returned in no particular order.
type Store interface {
	BatchPut(ctx context.Context, records []Record) (requestID string, err error)
	BatchGet(ctx context.Context, keys []Key) (records []Record, requestID string, err error)
}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Table     string
	RedisAddr string
}

// Open constructs the configured backend. The returned store is safe to
// share across invocations.
func Open(ctx context.Context, opts Options) (Store, error) {
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}

	switch opts.Backend {
	case BackendDynamoDB, "":
		return NewDynamoDBFromEnv(ctx, table)
	case BackendRedis:
		return NewRedisFromAddr(opts.RedisAddr, table), nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, opts.Backend)
	}
}
