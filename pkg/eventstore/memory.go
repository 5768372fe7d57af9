package eventstore

import (
	"context"
	"sync"

	"github.com/dipeoflow/engine/pkg/scheduler"
)

// MemoryStore is an in-process append-only event log keyed by execution ID,
// suitable for tests and single-process runs where durability across
// restarts isn't required (spec.md's Non-goals explicitly excludes durable
// checkpoint/restart across crashes).
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]StoredEvent
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]StoredEvent)}
}

func (s *MemoryStore) Append(ctx context.Context, executionID string, e scheduler.Event) (StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := int64(len(s.events[executionID])) + 1
	stored := StoredEvent{
		ExecutionID: executionID,
		Sequence:    seq,
		Type:        e.Type,
		NodeID:      e.NodeID,
		NodeType:    e.NodeType,
		Status:      e.Status,
		Error:       e.Error,
		Payload:     eventPayload(e),
		CreatedAt:   e.Timestamp,
	}
	s.events[executionID] = append(s.events[executionID], stored)
	return stored, nil
}

func (s *MemoryStore) EventsSince(ctx context.Context, executionID string, after int64) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.events[executionID]
	var out []StoredEvent
	for _, e := range all {
		if e.Sequence > after {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) AllEvents(ctx context.Context, executionID string) ([]StoredEvent, error) {
	return s.EventsSince(ctx, executionID, 0)
}

// eventPayload flattens a scheduler.Event's non-indexed fields into the
// jsonb-shaped payload the durable backend also stores, so replay behaves
// identically against either backend.
func eventPayload(e scheduler.Event) map[string]any {
	return map[string]any{
		"output":      e.Output,
		"duration_ms": e.DurationMs,
		"retry_count": e.RetryCount,
		"message":     e.Message,
	}
}
