package eventstore

import (
	"context"
	"fmt"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/scheduler"
	"github.com/dipeoflow/engine/pkg/state"
)

// Replay rebuilds a pkg/state.ExecutionState by folding every stored event
// for executionID back over a fresh state seeded from d, in sequence order.
// Used to verify "replay equals the live snapshot" (spec.md §8) and to
// resume observability tooling against a past execution without re-running
// it.
func Replay(ctx context.Context, store Store, d *diagram.ExecutableDiagram, executionID string) (*state.ExecutionState, error) {
	events, err := store.AllEvents(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("eventstore: replay: %w", err)
	}

	es := state.NewExecutionState(d)
	es.ExecutionID = executionID

	var lastSeq int64
	for _, e := range events {
		if e.Sequence <= lastSeq {
			return nil, fmt.Errorf("eventstore: replay: out-of-order or duplicate sequence %d (last was %d)", e.Sequence, lastSeq)
		}
		lastSeq = e.Sequence

		switch e.Type {
		case scheduler.EventNodeStarted:
			es.MarkRunning(e.NodeID)
		case scheduler.EventNodeCompleted:
			output, _ := e.Payload["output"]
			var cond *state.ConditionOutput
			node := d.Index.NodesByID[e.NodeID]
			if node != nil && node.Type == diagram.NodeTypeCondition {
				if result, ok := output.(bool); ok {
					c := state.ConditionOutput{Result: result}
					if result {
						c.CondTrue = output
					} else {
						c.CondFalse = output
					}
					cond = &c
				}
			}
			es.MarkCompleted(e.NodeID, output, cond)
		case scheduler.EventNodeFailed:
			es.MarkFailed(e.NodeID, fmt.Errorf("%s", e.Error))
		case scheduler.EventNodeSkipped:
			es.MarkSkipped(e.NodeID)
		}
	}

	return es, nil
}
