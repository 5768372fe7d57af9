// Package eventstore implements C9, the append-only event log. No state
// snapshot is stored; a replay capability rebuilds a
// pkg/state.ExecutionState from its recorded events. Two backends are
// provided: an in-memory one (memory.go) and a durable bun/postgres one
// (postgres.go) grounded on the teacher's
// internal/infrastructure/storage/models/event_model.go.
package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/scheduler"
)

// StoredEvent is one durably-recorded execution event, carrying a
// monotonically increasing per-execution Sequence the way the teacher's
// EventModel does via its bun autoincrement column.
type StoredEvent struct {
	ExecutionID string
	Sequence    int64
	Type        scheduler.EventType
	NodeID      diagram.NodeID
	NodeType    diagram.NodeType
	Status      string
	Error       string
	Payload     map[string]any
	CreatedAt   time.Time
}

// Store is the interface both backends implement. Append assigns each
// event the next sequence number itself, so no two events of an execution
// share a sequence number and nothing is overwritten; it does not detect
// the same event appended twice (each call records a new event).
type Store interface {
	// Append records a new event for executionID, assigning it the next
	// sequence number for that execution.
	Append(ctx context.Context, executionID string, e scheduler.Event) (StoredEvent, error)

	// EventsSince returns every event for executionID with Sequence > after,
	// in ascending sequence order.
	EventsSince(ctx context.Context, executionID string, after int64) ([]StoredEvent, error)

	// AllEvents returns every recorded event for executionID in ascending
	// sequence order, used by Replay.
	AllEvents(ctx context.Context, executionID string) ([]StoredEvent, error)
}

// ErrDuplicateSequence describes an event at a sequence number already
// recorded. Neither MemoryStore nor PostgresStore returns it, since both
// assign sequence numbers themselves.
type ErrDuplicateSequence struct {
	ExecutionID string
	Sequence    int64
}

func (e ErrDuplicateSequence) Error() string {
	return fmt.Sprintf("eventstore: duplicate sequence %s#%d", e.ExecutionID, e.Sequence)
}
