package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// EndpointHandler is a terminal sink: it passes its resolved input through
// as the execution's final output and, when configured, also writes it to
// a file as JSON.
type EndpointHandler struct{}

func (EndpointHandler) NodeType() diagram.NodeType { return diagram.NodeTypeEndpoint }

func (EndpointHandler) RequiresServices() []string { return nil }

func (EndpointHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.EndpointProps)
	if !ok {
		return fmt.Errorf("handlers: endpoint node given wrong props type %T", props)
	}
	if p.SaveToFile && p.FileName == "" {
		return fmt.Errorf("handlers: endpoint node with save_to_file requires a file_name")
	}
	return nil
}

func (EndpointHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.EndpointProps)

	var value any = inputs
	if len(inputs) == 1 {
		for _, v := range inputs {
			value = v
		}
	}

	if p.SaveToFile {
		b, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: endpoint marshaling output: %w", err)
		}
		if err := os.WriteFile(p.FileName, b, 0o644); err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: endpoint writing output file: %w", err)
		}
	}

	return dispatch.NodeOutput{Value: value}, nil
}
