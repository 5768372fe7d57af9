package handlers

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// HookHandler fires an out-of-band side effect and passes its input
// straight through as output — a hook node's purpose is the side effect,
// not a transformed value. Only the "shell" kind is implemented directly;
// "webhook" is left as a thin wrapper over APIJobHandler's HTTP path since
// nothing in the retrieval pack suggests a dedicated webhook-dispatch
// library.
type HookHandler struct {
	api *APIJobHandler
}

// NewHookHandler builds a handler, reusing an APIJobHandler for the
// webhook kind.
func NewHookHandler(api *APIJobHandler) *HookHandler {
	return &HookHandler{api: api}
}

func (h *HookHandler) NodeType() diagram.NodeType { return diagram.NodeTypeHook }

func (h *HookHandler) RequiresServices() []string { return nil }

func (h *HookHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.HookProps)
	if !ok {
		return fmt.Errorf("handlers: hook node given wrong props type %T", props)
	}
	switch p.Kind {
	case "shell":
		if p.Target == "" {
			return fmt.Errorf("handlers: hook node of kind shell requires a target command")
		}
	case "webhook":
		if p.Target == "" {
			return fmt.Errorf("handlers: hook node of kind webhook requires a target url")
		}
	default:
		return fmt.Errorf("handlers: hook node has unknown kind %q", p.Kind)
	}
	return nil
}

func (h *HookHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.HookProps)

	switch p.Kind {
	case "shell":
		cmd := exec.CommandContext(ctx, "sh", "-c", p.Target)
		if _, err := cmd.CombinedOutput(); err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: hook shell command failed: %w", err)
		}
	case "webhook":
		webProps := diagram.APIJobProps{Method: "POST", URL: p.Target}
		if _, err := h.api.Execute(ctx, ec, webProps, inputs); err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: hook webhook call failed: %w", err)
		}
	}

	var passthrough any = inputs
	if len(inputs) == 1 {
		for _, v := range inputs {
			passthrough = v
		}
	}
	return dispatch.NodeOutput{Value: passthrough}, nil
}
