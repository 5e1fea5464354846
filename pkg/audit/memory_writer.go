package audit

import (
	"context"
	"sync"
)

// MemoryWriter keeps records in memory, for tests and the in-memory storage mode.
type MemoryWriter struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryWriter creates an empty writer
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

// Append stores a copy of rec
func (w *MemoryWriter) Append(_ context.Context, rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, *rec)
	return nil
}

// Records returns a snapshot of everything appended so far
func (w *MemoryWriter) Records() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// ByAction returns the records with the given action
func (w *MemoryWriter) ByAction(action Action) []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Record
	for _, rec := range w.records {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}
