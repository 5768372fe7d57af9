package eventstore

import (
	"context"
	"io"
	"log/slog"

	"github.com/dipeoflow/engine/pkg/scheduler"
)

// StoreSink adapts a Store into a scheduler.Sink so a running execution's
// events are durably appended as they're emitted, without the scheduler
// itself knowing anything about persistence.
type StoreSink struct {
	store Store
	log   *slog.Logger
}

// NewStoreSink builds a sink over store. log may be nil; a nop logger is
// used in that case.
func NewStoreSink(store Store, log *slog.Logger) *StoreSink {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StoreSink{store: store, log: log}
}

// Emit implements scheduler.Sink. Append failures are logged rather than
// panicking — losing one event to a transient storage hiccup shouldn't
// crash a running execution, matching the teacher's Notify() pattern of
// isolating observer failures from the execution path.
func (s *StoreSink) Emit(e scheduler.Event) {
	if _, err := s.store.Append(context.Background(), e.ExecutionID, e); err != nil {
		s.log.Error("eventstore: failed to append event", "execution_id", e.ExecutionID, "event_type", e.Type, "error", err)
	}
}
