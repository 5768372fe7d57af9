package diagram

import (
	"fmt"
	"strings"
)

// RawArrow is the author-facing, uncompiled connection between two handles.
// A wire format decoder produces these from the loaded diagram; the light
// YAML decoder in lightyaml.go is the only one this package provides.
type RawArrow struct {
	ID        ArrowID
	Source    string // "<NodeID>:<name>" or "<NodeID>" (direction implied)
	Target    string
	Transform TransformRule
	Label     string
	Branch    string
}

// ParseHandle parses a "<NodeID>:<name>:<direction>" or "<NodeID>:<name>"
// reference. When the direction segment is omitted, wantDirection is used,
// which lets the caller supply "output" for arrow sources and "input" for
// arrow targets.
func ParseHandle(raw string, wantDirection Direction) (Handle, error) {
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 1:
		return Handle{NodeID: NodeID(parts[0]), Name: "default", Direction: wantDirection}, nil
	case 2:
		return Handle{NodeID: NodeID(parts[0]), Name: parts[1], Direction: wantDirection}, nil
	case 3:
		dir := Direction(parts[2])
		if dir != DirectionInput && dir != DirectionOutput {
			return Handle{}, fmt.Errorf("diagram: invalid handle direction %q in %q", parts[2], raw)
		}
		return Handle{NodeID: NodeID(parts[0]), Name: parts[1], Direction: dir}, nil
	default:
		return Handle{}, fmt.Errorf("diagram: malformed handle reference %q", raw)
	}
}

// HandleResolver resolves arrow endpoint strings to handles against a known
// set of node IDs, reporting every unresolved reference rather than failing
// on the first one (C1).
type HandleResolver struct {
	nodeIDs map[NodeID]struct{}
}

// NewHandleResolver builds a resolver over the given node set.
func NewHandleResolver(nodes []Node) *HandleResolver {
	ids := make(map[NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	return &HandleResolver{nodeIDs: ids}
}

// Resolve parses an arrow's source/target strings into handles and
// validates that both referenced nodes exist. Returns accumulated
// ValidationIssues instead of stopping at the first problem.
func (r *HandleResolver) Resolve(arrow RawArrow) (source, target Handle, issues []ValidationIssue) {
	source, err := ParseHandle(arrow.Source, DirectionOutput)
	if err != nil {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			ArrowID:  arrow.ID,
			Message:  err.Error(),
		})
	} else if _, ok := r.nodeIDs[source.NodeID]; !ok {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			ArrowID:  arrow.ID,
			NodeID:   source.NodeID,
			Message:  fmt.Sprintf("diagram: arrow %s references unknown source node %q", arrow.ID, source.NodeID),
		})
	}

	target, err = ParseHandle(arrow.Target, DirectionInput)
	if err != nil {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			ArrowID:  arrow.ID,
			Message:  err.Error(),
		})
	} else if _, ok := r.nodeIDs[target.NodeID]; !ok {
		issues = append(issues, ValidationIssue{
			Severity: SeverityError,
			ArrowID:  arrow.ID,
			NodeID:   target.NodeID,
			Message:  fmt.Sprintf("diagram: arrow %s references unknown target node %q", arrow.ID, target.NodeID),
		})
	}

	return source, target, issues
}

// Severity classifies a ValidationIssue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one diagnostic raised while compiling a diagram.
type ValidationIssue struct {
	Severity Severity
	NodeID   NodeID
	ArrowID  ArrowID
	Message  string
}

func (v ValidationIssue) String() string {
	switch {
	case v.NodeID != "" && v.ArrowID != "":
		return fmt.Sprintf("[%s] node=%s arrow=%s: %s", v.Severity, v.NodeID, v.ArrowID, v.Message)
	case v.NodeID != "":
		return fmt.Sprintf("[%s] node=%s: %s", v.Severity, v.NodeID, v.Message)
	case v.ArrowID != "":
		return fmt.Sprintf("[%s] arrow=%s: %s", v.Severity, v.ArrowID, v.Message)
	default:
		return fmt.Sprintf("[%s] %s", v.Severity, v.Message)
	}
}
