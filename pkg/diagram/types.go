// Package diagram defines the immutable domain and executable diagram model:
// typed nodes, edges, handles, and the compiled ExecutableDiagram produced
// by Compile. See handles.go, transform.go, order.go and compile.go for the
// four compiler stages (C1-C4 in the design).
package diagram

import "fmt"

// NodeID, ArrowID, EdgeID and HandleID are opaque identifiers.
type NodeID string
type ArrowID string
type EdgeID string
type HandleID string

// Direction is the direction of a handle.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// NodeType is the variant tag that dictates a node's fields and handler.
type NodeType string

const (
	NodeTypeStart          NodeType = "start"
	NodeTypeEndpoint       NodeType = "endpoint"
	NodeTypeCondition      NodeType = "condition"
	NodeTypePersonJob      NodeType = "person_job"
	NodeTypePersonBatchJob NodeType = "person_batch_job"
	NodeTypeCodeJob        NodeType = "code_job"
	NodeTypeAPIJob         NodeType = "api_job"
	NodeTypeDB             NodeType = "db"
	NodeTypeUserResponse   NodeType = "user_response"
	NodeTypeHook           NodeType = "hook"
	NodeTypeNotion         NodeType = "notion"
	NodeTypeTemplateJob    NodeType = "template_job"
)

// Position is opaque to the core; carried through for editor round-tripping.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is the compiled, immutable representation of a diagram node.
// Dynamic Any dicts from the diagram's author-facing form are resolved at
// compile time into one of the typed variants below (Props); the core never
// re-inspects a node's config as a map[string]any once compiled.
type Node struct {
	ID       NodeID
	Type     NodeType
	Position Position
	Props    NodeProps

	// Extensions carries unknown-at-compile-time fields forward so a newer
	// diagram format or editor can round-trip fields this core doesn't
	// understand. Never read by the core itself.
	Extensions map[string]any
}

// NodeProps is implemented by every node-type-specific variant. It exists
// purely to let Node.Props be a closed sum type instead of `any`.
type NodeProps interface {
	nodeProps()
}

// StartProps carries the fields of a start node. Start nodes have no
// incoming edges and seed the diagram's initial output.
type StartProps struct {
	InitialValue any
}

func (StartProps) nodeProps() {}

// EndpointProps carries the fields of an endpoint node.
type EndpointProps struct {
	SaveToFile bool
	FileName   string
}

func (EndpointProps) nodeProps() {}

// ConditionKind distinguishes how a condition node's boolean is computed.
type ConditionKind string

const (
	ConditionKindExpression ConditionKind = "expression"
	ConditionKindDetectMax  ConditionKind = "detect_max_iterations"
)

// ConditionProps carries the fields of a condition node.
type ConditionProps struct {
	Kind       ConditionKind
	Expression string
}

func (ConditionProps) nodeProps() {}

// PersonJobProps carries the fields of a person_job / person_batch_job node:
// an LLM interaction with a distinct first-run vs subsequent-run input
// policy and a per-node iteration cap.
type PersonJobProps struct {
	PersonID        string
	Model           string
	Provider        string
	MaxIteration    int
	FirstOnlyPrompt string
	DefaultPrompt   string
	Batch           bool // true for person_batch_job
}

func (PersonJobProps) nodeProps() {}

// CodeLanguage enumerates the languages a code_job node may run.
type CodeLanguage string

const (
	CodeLanguageGo         CodeLanguage = "go"
	CodeLanguagePython     CodeLanguage = "python"
	CodeLanguageJavaScript CodeLanguage = "javascript"
	CodeLanguageShell      CodeLanguage = "shell"
)

// CodeJobProps carries the fields of a code_job node.
type CodeJobProps struct {
	Language   CodeLanguage
	Code       string
	TimeoutSec int
}

func (CodeJobProps) nodeProps() {}

// APIJobProps carries the fields of an api_job node (HTTP endpoint call).
type APIJobProps struct {
	Method     string
	URL        string
	Headers    map[string]string
	Body       any
	TimeoutSec int
}

func (APIJobProps) nodeProps() {}

// DBOperation enumerates the operations a db node may run.
type DBOperation string

const (
	DBOperationRead  DBOperation = "read"
	DBOperationWrite DBOperation = "write"
)

// DBProps carries the fields of a db node.
type DBProps struct {
	Operation DBOperation
	Query     string
	Resource  string
}

func (DBProps) nodeProps() {}

// UserResponseProps carries the fields of a user_response node: an
// interactive prompt that parks the node until a matching
// interactive_response control message arrives.
type UserResponseProps struct {
	Prompt        string
	TimeoutSec    int
	DefaultOnIdle any
}

func (UserResponseProps) nodeProps() {}

// HookProps carries the fields of a hook node: an out-of-band callback
// fired as a side effect, without itself producing meaningful output ports
// beyond pass-through.
type HookProps struct {
	Kind   string // e.g. "webhook", "shell"
	Target string
	Config map[string]any
}

func (HookProps) nodeProps() {}

// NotionProps carries the fields of a notion node.
type NotionProps struct {
	DatabaseID string
	Operation  string
	Properties map[string]any
}

func (NotionProps) nodeProps() {}

// TemplateJobProps carries the fields of a template_job node: renders a
// template string against the resolved input map.
type TemplateJobProps struct {
	Template string
	Engine   string // e.g. "text/template", "mustache"
}

func (TemplateJobProps) nodeProps() {}

// Edge is the compiled, immutable counterpart of an author-facing arrow
// with resolved endpoints and a merged transform.
type Edge struct {
	ID             EdgeID
	SourceNodeID   NodeID
	TargetNodeID   NodeID
	SourceOutput   HandleID // optional; "" means unspecified
	TargetInput    HandleID // optional; "" means unspecified
	Transform      TransformRule
	Label          string // edge.metadata.label, used as the input key when set
	Branch         string // edge.metadata.branch: "true"/"false" for condition edges, "" otherwise
}

// TransformRule is a named bag of recognized transform directives. Keys not
// recognized by ApplyTransform are preserved on the struct's Extra map but
// never applied, matching spec.md §3's "unknown rules are preserved but not
// applied."
type TransformRule struct {
	ContentType         string // "object" | "conversation_state" | "" | "raw_text" | "variable"
	ExtractVariable     string
	Format               string
	ExtractToolResults   bool
	BranchOnConditionRes bool
	Extra                map[string]any
}

// IsEmpty reports whether the transform carries no directives at all.
func (t TransformRule) IsEmpty() bool {
	return t.ContentType == "" && t.ExtractVariable == "" && t.Format == "" &&
		!t.ExtractToolResults && !t.BranchOnConditionRes && len(t.Extra) == 0
}

// Merge layers `override` on top of `t`, per-field, later-wins. Used to
// implement the merge order in spec.md §4.2: node-type defaults -> arrow
// declared transforms -> explicit connection overrides.
func (t TransformRule) Merge(override TransformRule) TransformRule {
	merged := t
	if override.ContentType != "" {
		merged.ContentType = override.ContentType
	}
	if override.ExtractVariable != "" {
		merged.ExtractVariable = override.ExtractVariable
	}
	if override.Format != "" {
		merged.Format = override.Format
	}
	if override.ExtractToolResults {
		merged.ExtractToolResults = true
	}
	if override.BranchOnConditionRes {
		merged.BranchOnConditionRes = true
	}
	if len(override.Extra) > 0 {
		extra := make(map[string]any, len(merged.Extra)+len(override.Extra))
		for k, v := range merged.Extra {
			extra[k] = v
		}
		for k, v := range override.Extra {
			extra[k] = v
		}
		merged.Extra = extra
	}
	return merged
}

// Handle is a parsed `<NodeID>:<HandleName>:<Direction>` reference.
type Handle struct {
	NodeID     NodeID
	Name       string
	Direction  Direction
}

// String renders the canonical handle form.
func (h Handle) String() string {
	return fmt.Sprintf("%s:%s:%s", h.NodeID, h.Name, h.Direction)
}
