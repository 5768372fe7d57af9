// Package router implements C10, the message router: subscription fan-out
// filtered by execution id / event kind, with backpressure that drops
// events for a slow subscriber rather than blocking it or the scheduler
// itself (see Hub for which events are dropped). Grounded on the teacher's
// internal/application/observer/{manager,observer}.go for the
// subscription/filter model and, for the WebSocket transport and its
// buffer-full drop policy specifically, the go/-tree
// internal/application/observer/websocket_observer.go.
package router

import "github.com/dipeoflow/engine/pkg/scheduler"

// EventFilter decides whether a subscriber wants to see a given event.
// Grounded on the teacher's observer.EventFilter.
type EventFilter interface {
	Matches(e scheduler.Event) bool
}

// ExecutionIDFilter passes only events for one execution.
type ExecutionIDFilter struct {
	ExecutionID string
}

func (f ExecutionIDFilter) Matches(e scheduler.Event) bool {
	return e.ExecutionID == f.ExecutionID
}

// EventTypeFilter passes only events of the given types.
type EventTypeFilter struct {
	Types map[scheduler.EventType]bool
}

// NewEventTypeFilter builds a filter over the given type set.
func NewEventTypeFilter(types ...scheduler.EventType) EventTypeFilter {
	set := make(map[scheduler.EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return EventTypeFilter{Types: set}
}

func (f EventTypeFilter) Matches(e scheduler.Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	return f.Types[e.Type]
}

// CompoundFilter is a logical AND over its members, flattening nested nils,
// grounded on the teacher's CompoundEventFilter.
type CompoundFilter struct {
	filters []EventFilter
}

// NewCompoundFilter builds an AND filter, silently dropping any nil member.
func NewCompoundFilter(filters ...EventFilter) CompoundFilter {
	var nonNil []EventFilter
	for _, f := range filters {
		if f != nil {
			nonNil = append(nonNil, f)
		}
	}
	return CompoundFilter{filters: nonNil}
}

func (f CompoundFilter) Matches(e scheduler.Event) bool {
	for _, sub := range f.filters {
		if !sub.Matches(e) {
			return false
		}
	}
	return true
}

// isTerminal reports whether an event type marks the permanent end of an
// execution or node, and therefore must never be dropped under
// backpressure even when a subscriber's buffer is full.
func isTerminal(t scheduler.EventType) bool {
	switch t {
	case scheduler.EventExecutionCompleted, scheduler.EventExecutionFailed, scheduler.EventExecutionAborted,
		scheduler.EventNodeCompleted, scheduler.EventNodeFailed, scheduler.EventNodeSkipped:
		return true
	default:
		return false
	}
}
