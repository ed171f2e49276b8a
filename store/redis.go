package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis stores each record as a hash under "<table>:<pk>:<sk>" with a TTL
// matching the record's ttl attribute. Redis assigns no request ids, so one
// is generated per call.
type Redis struct {
	client *redis.Client
	table  string
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, table string) *Redis {
	return &Redis{client: client, table: table}
}

// NewRedisFromAddr connects to addr with client-side retries disabled.
func NewRedisFromAddr(addr, table string) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: -1,
	}), table)
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(k Key) string {
	return fmt.Sprintf("%s:%s:%s", r.table, k.PK, k.SK)
}

// BatchPut writes all records in one MULTI/EXEC pipeline.
func (r *Redis) BatchPut(ctx context.Context, records []Record) (string, error) {
	pipe := r.client.TxPipeline()

	for _, rec := range records {
		key := r.key(rec.Key())

		pipe.HSet(ctx, key, map[string]any{
			"pk":           rec.PK,
			"sk":           rec.SK,
			"timestamp":    rec.Timestamp,
			"ttl":          rec.TTL,
			"workload":     rec.Workload,
			"runtime":      rec.Runtime,
			"architecture": rec.Architecture,
			"data":         rec.Data,
		})

		if rec.TTL > 0 {
			pipe.ExpireAt(ctx, key, time.Unix(rec.TTL, 0))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redis batch write: %w", err)
	}

	return uuid.NewString(), nil
}

// BatchGet reads the keys in one pipeline. Missing keys are omitted.
func (r *Redis) BatchGet(ctx context.Context, keys []Key) ([]Record, string, error) {
	pipe := r.client.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, r.key(k))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("redis batch read: %w", err)
	}

	records := make([]Record, 0, len(keys))

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		rec, err := recordFromHash(fields)
		if err != nil {
			return nil, "", err
		}

		records = append(records, rec)
	}

	return records, uuid.NewString(), nil
}

func recordFromHash(fields map[string]string) (Record, error) {
	rec := Record{
		PK:           fields["pk"],
		SK:           fields["sk"],
		Workload:     fields["workload"],
		Runtime:      fields["runtime"],
		Architecture: fields["architecture"],
		Data:         fields["data"],
	}

	var err error

	if rec.Timestamp, err = parseInt(fields["timestamp"]); err != nil {
		return Record{}, fmt.Errorf("record %s timestamp: %w", rec.PK, err)
	}

	if rec.TTL, err = parseInt(fields["ttl"]); err != nil {
		return Record{}, fmt.Errorf("record %s ttl: %w", rec.PK, err)
	}

	return rec, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	return strconv.ParseInt(s, 10, 64)
}
