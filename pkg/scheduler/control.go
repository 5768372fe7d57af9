package scheduler

import "github.com/dipeoflow/engine/pkg/diagram"

// ControlKind enumerates the mid-execution control messages spec.md §4.7
// requires the scheduler to accept: pause/resume/abort and a targeted
// skip_node.
type ControlKind string

const (
	ControlPause    ControlKind = "pause"
	ControlResume   ControlKind = "resume"
	ControlAbort    ControlKind = "abort"
	ControlSkipNode ControlKind = "skip_node"

	// ControlInteractiveResponse carries a human's answer to a parked
	// user_response node. The step loop reads and discards it; it is not
	// forwarded to any ResponseWaiter.
	ControlInteractiveResponse ControlKind = "interactive_response"
)

// Control is one control-channel message sent to a running Scheduler.Run
// call via its Controller.
type Control struct {
	Kind   ControlKind
	NodeID diagram.NodeID // only meaningful for skip_node / interactive_response
	Value  any            // only meaningful for interactive_response
}

// Controller is the handle a caller uses to send control messages into a
// running execution and to observe pause state.
type Controller struct {
	ch chan Control
}

// newController builds a Controller with a small buffer so a caller's Send
// doesn't block behind the scheduler's own poll cadence.
func newController() *Controller {
	return &Controller{ch: make(chan Control, 8)}
}

// Send enqueues a control message for the running execution to observe on
// its next poll tick. Returns false if the control buffer is full; a
// message sent after the execution has finished is accepted but never read.
func (c *Controller) Send(msg Control) bool {
	select {
	case c.ch <- msg:
		return true
	default:
		return false
	}
}

// Pause requests the execution pause before its next node dispatch.
func (c *Controller) Pause() bool { return c.Send(Control{Kind: ControlPause}) }

// Resume requests a paused execution continue.
func (c *Controller) Resume() bool { return c.Send(Control{Kind: ControlResume}) }

// Abort requests the execution stop entirely, failing any in-flight nodes.
func (c *Controller) Abort() bool { return c.Send(Control{Kind: ControlAbort}) }

// SkipNode requests a specific pending node be marked skipped rather than
// ever dispatched.
func (c *Controller) SkipNode(id diagram.NodeID) bool {
	return c.Send(Control{Kind: ControlSkipNode, NodeID: id})
}

// RespondTo sends a human response for a parked user_response node as an
// interactive_response message (see ControlInteractiveResponse).
func (c *Controller) RespondTo(id diagram.NodeID, value any) bool {
	return c.Send(Control{Kind: ControlInteractiveResponse, NodeID: id, Value: value})
}
