package handlers

import (
	"context"
	"fmt"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// StartHandler seeds an execution's initial value. Start nodes have no
// incoming edges, so inputs is always empty; the configured InitialValue
// is emitted as-is, falling back to the execution-level input payload the
// scheduler stamps into inputs["__execution_input"] when no InitialValue is
// set on the node itself.
type StartHandler struct{}

func (StartHandler) NodeType() diagram.NodeType { return diagram.NodeTypeStart }

func (StartHandler) RequiresServices() []string { return nil }

func (StartHandler) Validate(props diagram.NodeProps) error {
	if _, ok := props.(diagram.StartProps); !ok {
		return fmt.Errorf("handlers: start node given wrong props type %T", props)
	}
	return nil
}

func (StartHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.StartProps)
	if p.InitialValue != nil {
		return dispatch.NodeOutput{Value: p.InitialValue}, nil
	}
	return dispatch.NodeOutput{Value: inputs["__execution_input"]}, nil
}
