package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// ResponseWaiter is the seam through which a user_response node receives a
// human's answer. pkg/scheduler does not forward its interactive_response
// control messages to it; an implementation receives answers by its own
// means. Injected rather than hardcoded so handler tests can fake it
// without a running scheduler.
type ResponseWaiter interface {
	Wait(ctx context.Context, executionID string, nodeID diagram.NodeID, timeout time.Duration) (any, error)
}

// UserResponseHandler parks until its ResponseWaiter returns a value, or
// returns DefaultOnIdle once the wait fails (e.g. its timeout elapses).
type UserResponseHandler struct {
	waiter ResponseWaiter
}

// NewUserResponseHandler builds a handler over the given waiter.
func NewUserResponseHandler(waiter ResponseWaiter) *UserResponseHandler {
	return &UserResponseHandler{waiter: waiter}
}

func (h *UserResponseHandler) NodeType() diagram.NodeType { return diagram.NodeTypeUserResponse }

func (h *UserResponseHandler) RequiresServices() []string { return nil }

func (h *UserResponseHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.UserResponseProps)
	if !ok {
		return fmt.Errorf("handlers: user_response node given wrong props type %T", props)
	}
	if p.Prompt == "" {
		return fmt.Errorf("handlers: user_response node requires a prompt")
	}
	return nil
}

func (h *UserResponseHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.UserResponseProps)

	timeout := time.Duration(p.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	value, err := h.waiter.Wait(ctx, ec.ExecutionID, ec.NodeID, timeout)
	if err != nil {
		if p.DefaultOnIdle != nil {
			return dispatch.NodeOutput{Value: p.DefaultOnIdle}, nil
		}
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: user_response timed out waiting for input: %w", err)
	}
	return dispatch.NodeOutput{Value: value}, nil
}
