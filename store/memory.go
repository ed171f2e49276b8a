package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process store for local runs and tests. TTLs are kept
// but not enforced.
type Memory struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Key]Record)}
}

// BatchPut stores or replaces every record.
func (m *Memory) BatchPut(ctx context.Context, records []Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		m.records[rec.Key()] = rec
	}

	return uuid.NewString(), nil
}

// BatchGet returns the records present for keys. Missing keys are omitted.
func (m *Memory) BatchGet(ctx context.Context, keys []Key) ([]Record, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := m.records[k]; ok {
			out = append(out, rec)
		}
	}

	return out, uuid.NewString(), nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}
