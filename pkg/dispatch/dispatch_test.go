package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/diagram"
)

type fakeHandler struct {
	nodeType    diagram.NodeType
	requires    []string
	validateErr error
	result      NodeOutput
	execErr     error
}

func (f fakeHandler) NodeType() diagram.NodeType      { return f.nodeType }
func (f fakeHandler) RequiresServices() []string       { return f.requires }
func (f fakeHandler) Validate(p diagram.NodeProps) error { return f.validateErr }
func (f fakeHandler) Execute(ctx context.Context, ec ExecutionContext, p diagram.NodeProps, inputs map[string]any) (NodeOutput, error) {
	return f.result, f.execErr
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandler{nodeType: diagram.NodeTypeCodeJob, result: NodeOutput{Value: "ok"}})

	assert.True(t, r.Has(diagram.NodeTypeCodeJob))
	out, err := r.Dispatch(context.Background(), ExecutionContext{}, &diagram.Node{Type: diagram.NodeTypeCodeJob}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestRegistry_DispatchUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), ExecutionContext{}, &diagram.Node{Type: diagram.NodeTypeCodeJob}, nil)
	assert.Error(t, err)
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandler{nodeType: diagram.NodeTypeCodeJob})
	assert.Panics(t, func() {
		r.Register(fakeHandler{nodeType: diagram.NodeTypeCodeJob})
	})
}

func TestRegistry_ValidateDiagramAggregatesIssues(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandler{nodeType: diagram.NodeTypeCodeJob, validateErr: errors.New("bad config")})

	d := &diagram.ExecutableDiagram{
		Nodes: []diagram.Node{
			{ID: "a", Type: diagram.NodeTypeCodeJob},
			{ID: "b", Type: diagram.NodeTypeDB},
		},
	}
	issues := r.ValidateDiagram(d)
	require.Len(t, issues, 2)
}
