package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

type echoHandler struct {
	nodeType diagram.NodeType
	fail     bool
}

func (h echoHandler) NodeType() diagram.NodeType      { return h.nodeType }
func (h echoHandler) RequiresServices() []string       { return nil }
func (h echoHandler) Validate(p diagram.NodeProps) error { return nil }
func (h echoHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, p diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	if h.fail {
		return dispatch.NodeOutput{}, fmt.Errorf("boom")
	}
	if v, ok := inputs["__execution_input"]; ok {
		return dispatch.NodeOutput{Value: v}, nil
	}
	for _, v := range inputs {
		return dispatch.NodeOutput{Value: v}, nil
	}
	return dispatch.NodeOutput{Value: nil}, nil
}

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

func TestScheduler_RunsLinearPipelineToCompletion(t *testing.T) {
	r := dispatch.NewRegistry()
	r.Register(echoHandler{nodeType: diagram.NodeTypeStart})
	r.Register(echoHandler{nodeType: diagram.NodeTypeCodeJob})
	r.Register(echoHandler{nodeType: diagram.NodeTypeEndpoint})

	opts := DefaultOptions()
	opts.PollInterval = 5 * time.Millisecond
	s := New(r, NullSink{}, nil, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resultCh := s.Run(ctx, compileLinear(t), "hello")
	res := <-resultCh
	require.NoError(t, res.Err)
	assert.Equal(t, "hello", res.Output)
}

func TestScheduler_NodeFailureFailsExecution(t *testing.T) {
	r := dispatch.NewRegistry()
	r.Register(echoHandler{nodeType: diagram.NodeTypeStart})
	r.Register(echoHandler{nodeType: diagram.NodeTypeCodeJob, fail: true})
	r.Register(echoHandler{nodeType: diagram.NodeTypeEndpoint})

	opts := DefaultOptions()
	opts.PollInterval = 5 * time.Millisecond
	opts.RetryPolicy = NoRetryPolicy()
	s := New(r, NullSink{}, nil, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resultCh := s.Run(ctx, compileLinear(t), "hello")
	res := <-resultCh
	assert.Error(t, res.Err)
}

func TestScheduler_DeadlockDetection(t *testing.T) {
	// b's only incoming edge carries a "true" branch marker, but its source
	// a is a code_job, which never records an active branch; so b never
	// becomes ready while it stays reachable and pending, and the empty
	// polls run out.
	raw := diagram.RawDiagram{
		ID: "stuck",
		Nodes: []diagram.Node{
			{ID: "start", Type: diagram.NodeTypeStart, Props: diagram.StartProps{}},
			{ID: "a", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
			{ID: "b", Type: diagram.NodeTypeCodeJob, Props: diagram.CodeJobProps{}},
		},
		Arrows: []diagram.RawArrow{
			{ID: "a1", Source: "start", Target: "a"},
			{ID: "a2", Source: "a", Target: "b", Branch: "true"},
		},
	}
	d, issues := diagram.Compile(raw)
	for _, i := range issues {
		require.NotEqual(t, diagram.SeverityError, i.Severity, i.String())
	}
	require.NotNil(t, d)

	r := dispatch.NewRegistry()
	r.Register(echoHandler{nodeType: diagram.NodeTypeStart})
	r.Register(echoHandler{nodeType: diagram.NodeTypeCodeJob})

	opts := DefaultOptions()
	opts.PollInterval = 2 * time.Millisecond
	opts.MaxPollRetries = 5
	s := New(r, NullSink{}, nil, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resultCh := s.Run(ctx, d, "x")
	res := <-resultCh
	assert.ErrorIs(t, res.Err, ErrDeadlock)
}

func TestScheduler_AbortViaController(t *testing.T) {
	r := dispatch.NewRegistry()
	r.Register(echoHandler{nodeType: diagram.NodeTypeStart})
	r.Register(echoHandler{nodeType: diagram.NodeTypeCodeJob})
	r.Register(echoHandler{nodeType: diagram.NodeTypeEndpoint})

	opts := DefaultOptions()
	opts.PollInterval = 5 * time.Millisecond
	s := New(r, NullSink{}, nil, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ctrl, resultCh := s.Run(ctx, compileLinear(t), "hello")
	ctrl.Abort()
	res := <-resultCh
	assert.ErrorIs(t, res.Err, ErrAborted)
}
