package handlers

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// CodeJobHandler runs a shell snippet as a subprocess, the only language
// this core executes directly; "go"/"python"/"javascript" snippets are
// expected to be shell-wrapped by the diagram author (e.g. `python3 -c ...`)
// since no in-process interpreter for those languages is in scope.
// Grounded on the teacher's BaseExecutor config-coercion helpers for
// Validate, stdlib os/exec for Execute since nothing in the retrieval pack
// offers a sandboxed code-execution library.
type CodeJobHandler struct{}

func (CodeJobHandler) NodeType() diagram.NodeType { return diagram.NodeTypeCodeJob }

func (CodeJobHandler) RequiresServices() []string { return nil }

func (CodeJobHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.CodeJobProps)
	if !ok {
		return fmt.Errorf("handlers: code_job node given wrong props type %T", props)
	}
	if p.Code == "" {
		return fmt.Errorf("handlers: code_job node requires non-empty code")
	}
	return nil
}

func (CodeJobHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.CodeJobProps)

	timeout := time.Duration(p.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", p.Code)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: code_job execution failed: %w (output: %s)", err, out)
	}
	return dispatch.NodeOutput{Value: string(out)}, nil
}
