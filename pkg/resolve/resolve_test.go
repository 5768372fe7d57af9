package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/state"
)

func compileSingleParent(t *testing.T) *diagram.ExecutableDiagram {
	t.Helper()
	raw := diagram.RawDiagram{
		ID: "single",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "job", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "job", Label: "payload"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)
	return d
}

func TestResolve_SingleParentByLabel(t *testing.T) {
	d := compileSingleParent(t)
	es := state.NewExecutionState(d)
	es.MarkCompleted("start", map[string]any{"x": 1}, nil)

	inputs, err := Resolve(es, "job")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, inputs["payload"])
}

func TestInputKey_UnlabeledEdgeDefaultsToDefault(t *testing.T) {
	raw := diagram.RawDiagram{
		ID: "unlabeled",
		Nodes: []diagram.Node{
			{ID: "A", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "E", Type: diagram.NodeTypeEndpoint, Props: diagram.EndpointProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "A", Target: "E"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)

	es := state.NewExecutionState(d)
	es.MarkCompleted("A", "payload", nil)

	inputs, err := Resolve(es, "E")
	require.NoError(t, err)
	assert.Equal(t, "payload", inputs["default"], "an unlabeled edge with no declared target handle keys its value under \"default\"")
}

func TestResolve_ConditionDualBranchSynthesis(t *testing.T) {
	raw := diagram.RawDiagram{
		ID: "cond",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "cond", Type: diagram.NodeTypeCondition, Props: diagram.ConditionProps{Expression: "true"}},
			{ID: "sink", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "cond"},
			{ID: "a2", Source: "cond:condtrue", Target: "sink:in", Label: "whenTrue"},
			{ID: "a3", Source: "cond:condfalse", Target: "sink:in2", Label: "whenFalse"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)

	es := state.NewExecutionState(d)
	es.MarkCompleted("start", nil, nil)
	es.MarkCompleted("cond", true, &state.ConditionOutput{Result: true, CondTrue: "yes", CondFalse: nil})

	inputs, err := Resolve(es, "sink")
	require.NoError(t, err)
	assert.Equal(t, "yes", inputs["whenTrue"])
	assert.Nil(t, inputs["whenFalse"], "inactive branch resolves to nil rather than erroring")
}

func TestResolve_PersonJobFirstVsSubsequent(t *testing.T) {
	raw := diagram.RawDiagram{
		ID: "person",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "person", Type: diagram.NodeTypePersonJob, Props: diagram.PersonJobProps{MaxIteration: 3}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "person:first", Label: "firstPrompt"},
			{ID: "a2", Source: "person", Target: "person", Label: "loopback", Transform: diagram.TransformRule{ContentType: "conversation_state"}},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)

	es := state.NewExecutionState(d)
	es.MarkCompleted("start", "hello", nil)

	inputs, err := Resolve(es, "person")
	require.NoError(t, err)
	assert.Equal(t, "hello", inputs["firstPrompt"], "first execution should read the \"first\"-targeted edge")
	assert.NotContains(t, inputs, "loopback", "the conversation_state edge has no output yet on the first run")

	es.MarkCompleted("person", "round1", nil)
	inputs2, err := Resolve(es, "person")
	require.NoError(t, err)
	assert.Equal(t, "round1", inputs2["loopback"], "subsequent execution should read the conversation_state edge")
	assert.NotContains(t, inputs2, "firstPrompt", "the \"first\"-targeted edge must not re-gate after the first execution")
}

func TestApplyTransform_ExtractVariableThenFormat(t *testing.T) {
	rule := diagram.TransformRule{ExtractVariable: "name", Format: "string"}
	out := ApplyTransform(rule, map[string]any{"name": "ada"})
	assert.Equal(t, "ada", out)
}

func TestPreview_DoesNotTouchLiveState(t *testing.T) {
	d := compileSingleParent(t)
	inputs, err := Preview(d, "job", map[diagram.NodeID]any{"start": "fake"}, true)
	require.NoError(t, err)
	assert.Equal(t, "fake", inputs["payload"])
}
