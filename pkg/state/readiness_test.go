package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/diagram"
)

func compileLinear(t *testing.T) *diagram.ExecutableDiagram {
	t.Helper()
	raw := diagram.RawDiagram{
		ID: "linear",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "job", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
			{ID: "end", Type: diagram.NodeTypeEndpoint, Props: diagram.EndpointProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "job"},
			{ID: "a2", Source: "job", Target: "end"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)
	return d
}

func TestReadiness_StartThenJob(t *testing.T) {
	d := compileLinear(t)
	es := NewExecutionState(d)

	assert.True(t, IsReady(es, "start"))
	assert.False(t, IsReady(es, "job"))

	es.MarkRunning("start")
	es.MarkCompleted("start", nil, nil)

	assert.False(t, IsReady(es, "start"), "start should not re-fire after completion")
	assert.True(t, IsReady(es, "job"))

	es.MarkRunning("job")
	es.MarkCompleted("job", "out", nil)
	assert.True(t, IsReady(es, "end"))

	es.MarkRunning("end")
	es.MarkCompleted("end", "final", nil)
	assert.True(t, IsComplete(es))
}

func compileConditionBranch(t *testing.T) *diagram.ExecutableDiagram {
	t.Helper()
	raw := diagram.RawDiagram{
		ID: "branch",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "cond", Type: diagram.NodeTypeCondition, Props: diagram.ConditionProps{Expression: "true"}},
			{ID: "onTrue", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
			{ID: "onFalse", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
			{ID: "end", Type: diagram.NodeTypeEndpoint, Props: diagram.EndpointProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "cond"},
			{ID: "a2", Source: "cond", Target: "onTrue", Branch: "true"},
			{ID: "a3", Source: "cond", Target: "onFalse", Branch: "false"},
			{ID: "a4", Source: "onTrue", Target: "end"},
			{ID: "a5", Source: "onFalse", Target: "end"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)
	return d
}

func TestReadiness_ConditionPrunesInactiveBranch(t *testing.T) {
	d := compileConditionBranch(t)
	es := NewExecutionState(d)

	es.MarkCompleted("start", nil, nil)
	es.MarkCompleted("cond", true, &ConditionOutput{Result: true, CondTrue: true, CondFalse: nil})

	assert.True(t, IsReady(es, "onTrue"))
	assert.False(t, IsReady(es, "onFalse"))

	reachable := ReachableFromActive(es)
	assert.True(t, reachable["onTrue"])
	assert.False(t, reachable["onFalse"], "false branch should be pruned once cond fired true")

	es.MarkCompleted("onTrue", "v", nil)
	es.MarkSkipped("onFalse")
	es.MarkCompleted("end", "v", nil)
	assert.True(t, IsComplete(es))
}

func TestEffectiveIncomingEdges_PersonJobFirstInputAxis(t *testing.T) {
	raw := diagram.RawDiagram{
		ID: "person",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "person", Type: diagram.NodeTypePersonJob, Props: diagram.PersonJobProps{MaxIteration: 3}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "person:first"},
			{ID: "a2", Source: "person", Target: "person", Transform: diagram.TransformRule{ContentType: "conversation_state"}},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)

	es := NewExecutionState(d)

	effective := EffectiveIncomingEdges(es, "person")
	ids := map[diagram.EdgeID]bool{}
	for _, e := range effective {
		ids[e.ID] = true
	}
	assert.True(t, ids["a1"], "first execution with a has_first_inputs edge set should gate on the \"first\" edge")
	assert.False(t, ids["a2"], "on the first run only the \"first\" edge gates readiness, not the conversation_state loop edge")

	es.MarkCompleted("start", "hi", nil)
	assert.True(t, IsReady(es, "person"), "the \"first\" edge satisfied should make person ready on its first run")

	es.MarkCompleted("person", "round1", nil)
	effective2 := EffectiveIncomingEdges(es, "person")
	ids2 := map[diagram.EdgeID]bool{}
	for _, e := range effective2 {
		ids2[e.ID] = true
	}
	assert.False(t, ids2["a1"], "subsequent executions must not re-gate on the \"first\" edge")
	assert.True(t, ids2["a2"])
}

func TestIsFirstExecution(t *testing.T) {
	d := compileLinear(t)
	es := NewExecutionState(d)
	assert.True(t, es.IsFirstExecution("job"))
	es.MarkCompleted("job", "x", nil)
	assert.False(t, es.IsFirstExecution("job"))
	assert.Equal(t, 1, es.ExecCount("job"))
}
