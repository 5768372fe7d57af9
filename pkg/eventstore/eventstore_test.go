package eventstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/scheduler"
)

func TestMemoryStore_AppendAssignsIncreasingSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	e1, err := store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventExecutionStarted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.Sequence)

	e2, err := store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.Sequence)

	events, err := store.AllEvents(ctx, "exec1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Sequence < events[1].Sequence, "events must be strictly increasing in sequence")
}

func TestMemoryStore_EventsSinceFiltersBySequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventExecutionStarted})
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "n1"})
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeCompleted, NodeID: "n1"})

	since, err := store.EventsSince(ctx, "exec1", 1)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(2), since[0].Sequence)
}

func TestReplay_RebuildsStateFromEvents(t *testing.T) {
	raw := diagram.RawDiagram{
		ID: "linear",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "job", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "job"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)

	store := NewMemoryStore()
	ctx := context.Background()
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "start"})
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeCompleted, NodeID: "start", Output: "hi"})
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "job"})
	store.Append(ctx, "exec1", scheduler.Event{Type: scheduler.EventNodeCompleted, NodeID: "job", Output: "done"})

	es, err := Replay(ctx, store, d, "exec1")
	require.NoError(t, err)
	assert.Equal(t, "hi", es.Output("start").Value)
	assert.Equal(t, "done", es.Output("job").Value)
	assert.Equal(t, 1, es.ExecCount("job"))
}
