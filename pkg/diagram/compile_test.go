package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepLinear() RawDiagram {
	return RawDiagram{
		ID: "linear",
		Nodes: []Node{
			{ID: "start", Type: NodeTypeStart, Props: StartProps{InitialValue: "hi"}},
			{ID: "end", Type: NodeTypeEndpoint, Props: EndpointProps{}},
		},
		Arrows: []RawArrow{
			{ID: "a1", Source: "start", Target: "end"},
		},
	}
}

func TestCompile_LinearPipeline(t *testing.T) {
	diagram, issues := Compile(twoStepLinear())
	require.NotNil(t, diagram)
	for _, i := range issues {
		assert.NotEqual(t, SeverityError, i.Severity, i.String())
	}
	assert.Equal(t, []NodeID{"start"}, diagram.StartNodes)
	assert.Len(t, diagram.Edges, 1)
	assert.Equal(t, NodeID("start"), diagram.Edges[0].SourceNodeID)
	assert.Equal(t, NodeID("end"), diagram.Edges[0].TargetNodeID)
	require.Len(t, diagram.Layers, 2)
	assert.Equal(t, []NodeID{"start"}, diagram.Layers[0])
	assert.Equal(t, []NodeID{"end"}, diagram.Layers[1])
}

func TestCompile_NoStartNode(t *testing.T) {
	raw := twoStepLinear()
	raw.Nodes[0].Type = NodeTypeEndpoint
	diagram, issues := Compile(raw)
	assert.Nil(t, diagram)
	found := false
	for _, i := range issues {
		if i.Severity == SeverityError {
			found = true
		}
	}
	assert.True(t, found, "expected a fatal issue when no start node is present")
}

func TestCompile_CyclicDependency(t *testing.T) {
	raw := RawDiagram{
		ID: "cyclic",
		Nodes: []Node{
			{ID: "start", Type: NodeTypeStart, Props: StartProps{}},
			{ID: "a", Type: NodeTypeCodeJob, Props: CodeJobProps{}},
			{ID: "b", Type: NodeTypeCodeJob, Props: CodeJobProps{}},
		},
		Arrows: []RawArrow{
			{ID: "a1", Source: "start", Target: "a"},
			{ID: "a2", Source: "a", Target: "b"},
			{ID: "a3", Source: "b", Target: "a"},
		},
	}
	diagram, issues := Compile(raw)
	assert.Nil(t, diagram)
	found := false
	for _, i := range issues {
		if i.Severity == SeverityError {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompile_DuplicateNodeID(t *testing.T) {
	raw := twoStepLinear()
	raw.Nodes = append(raw.Nodes, Node{ID: "start", Type: NodeTypeStart})
	diagram, issues := Compile(raw)
	assert.Nil(t, diagram)
	found := false
	for _, i := range issues {
		if i.Severity == SeverityError {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompile_UnknownNodeReference(t *testing.T) {
	raw := twoStepLinear()
	raw.Arrows = append(raw.Arrows, RawArrow{ID: "a2", Source: "start", Target: "missing"})
	diagram, issues := Compile(raw)
	assert.Nil(t, diagram)
	found := false
	for _, i := range issues {
		if i.Severity == SeverityError {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompile_OrphanWarning(t *testing.T) {
	raw := twoStepLinear()
	raw.Nodes = append(raw.Nodes, Node{ID: "orphan", Type: NodeTypeCodeJob, Props: CodeJobProps{}})
	diagram, issues := Compile(raw)
	require.NotNil(t, diagram)
	found := false
	for _, i := range issues {
		if i.Severity == SeverityWarning && i.NodeID == "orphan" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTransformMergeOrder(t *testing.T) {
	merged := ResolveTransform(NodeTypePersonJob, TransformRule{Format: "json"}, TransformRule{ContentType: "raw_text"})
	assert.Equal(t, "raw_text", merged.ContentType) // override wins over default
	assert.Equal(t, "json", merged.Format)           // declared survives when override doesn't touch it
}

func TestParseHandle(t *testing.T) {
	h, err := ParseHandle("node1:out1:output", DirectionOutput)
	require.NoError(t, err)
	assert.Equal(t, Handle{NodeID: "node1", Name: "out1", Direction: DirectionOutput}, h)

	h2, err := ParseHandle("node1", DirectionInput)
	require.NoError(t, err)
	assert.Equal(t, Handle{NodeID: "node1", Name: "default", Direction: DirectionInput}, h2)

	_, err = ParseHandle("a:b:sideways", DirectionInput)
	assert.Error(t, err)
}

func TestLightYAMLRoundTrip(t *testing.T) {
	raw := twoStepLinear()
	encoded, err := EncodeLightYAML(raw)
	require.NoError(t, err)

	decoded, err := DecodeLightYAML(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw.ID, decoded.ID)
	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, NodeID("start"), decoded.Nodes[0].ID)
	assert.Equal(t, NodeTypeStart, decoded.Nodes[0].Type)

	diagram, issues := Compile(decoded)
	require.NotNil(t, diagram)
	for _, i := range issues {
		assert.NotEqual(t, SeverityError, i.Severity)
	}
}
