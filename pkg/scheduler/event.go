package scheduler

import (
	"time"

	"github.com/dipeoflow/engine/pkg/diagram"
)

// EventType enumerates the execution lifecycle events a Scheduler emits,
// grounded on the teacher's internal/application/observer/observer.go
// dot-notation EventType constants.
type EventType string

const (
	EventExecutionStarted   EventType = "execution.started"
	EventExecutionCompleted EventType = "execution.completed"
	EventExecutionFailed    EventType = "execution.failed"
	EventExecutionPaused    EventType = "execution.paused"
	EventExecutionResumed   EventType = "execution.resumed"
	EventExecutionAborted   EventType = "execution.aborted"
	EventNodeStarted        EventType = "node.started"
	EventNodeCompleted      EventType = "node.completed"
	EventNodeFailed         EventType = "node.failed"
	EventNodeSkipped        EventType = "node.skipped"
	EventNodeRetrying       EventType = "node.retrying"
)

// Event is the structured record a Scheduler hands to its Sink for every
// lifecycle transition. Grounded on the teacher's observer.Event, flattened
// to the fields this module actually populates.
type Event struct {
	Type        EventType
	ExecutionID string
	DiagramID   string
	NodeID      diagram.NodeID
	NodeType    diagram.NodeType
	Status      string
	Error       string
	Output      any
	DurationMs  int64
	RetryCount  int
	Timestamp   time.Time
	Message     string
}

// Sink receives scheduler events as they occur. pkg/eventstore.StoreSink
// and pkg/router.Hub both implement this so the scheduler can fan out to
// persistence and live subscribers through the same call.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// NullSink discards every event; the zero-value default when a caller
// doesn't need event observation.
type NullSink struct{}

func (NullSink) Emit(Event) {}

// MultiSink fans a single Emit call out to every wrapped Sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
