package diagram

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// lightYAMLDoc mirrors the "light form" wire format: a terse, hand-editable
// YAML rendering of a diagram with a node list (each entry carrying its id)
// and a flat arrow list.
// Grounded on the teacher's straight-struct-tag YAML usage; no custom
// (Un)MarshalYAML beyond what the shape itself needs.
type lightYAMLDoc struct {
	ID    string                `yaml:"id"`
	Nodes []lightYAMLNode       `yaml:"nodes"`
	Arrows []lightYAMLArrow     `yaml:"arrows"`
}

type lightYAMLNode struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Position *lightYAMLPos  `yaml:"position,omitempty"`
	Props    map[string]any `yaml:"props,omitempty"`
}

type lightYAMLPos struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type lightYAMLArrow struct {
	ID        string         `yaml:"id"`
	From      string         `yaml:"from"`
	To        string         `yaml:"to"`
	Label     string         `yaml:"label,omitempty"`
	Branch    string         `yaml:"branch,omitempty"`
	Transform map[string]any `yaml:"transform,omitempty"`
}

// DecodeLightYAML parses the light-form YAML bytes into a RawDiagram ready
// for Compile. Node-type-specific props are decoded via decodeNodeProps.
func DecodeLightYAML(data []byte) (RawDiagram, error) {
	var doc lightYAMLDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawDiagram{}, fmt.Errorf("diagram: parsing light yaml: %w", err)
	}

	raw := RawDiagram{ID: doc.ID}
	for _, n := range doc.Nodes {
		props, err := decodeNodeProps(NodeType(n.Type), n.Props)
		if err != nil {
			return RawDiagram{}, fmt.Errorf("diagram: node %q: %w", n.ID, err)
		}
		node := Node{
			ID:    NodeID(n.ID),
			Type:  NodeType(n.Type),
			Props: props,
		}
		if n.Position != nil {
			node.Position = Position{X: n.Position.X, Y: n.Position.Y}
		}
		raw.Nodes = append(raw.Nodes, node)
	}

	for _, a := range doc.Arrows {
		raw.Arrows = append(raw.Arrows, RawArrow{
			ID:        ArrowID(a.ID),
			Source:    a.From,
			Target:    a.To,
			Label:     a.Label,
			Branch:    a.Branch,
			Transform: decodeTransform(a.Transform),
		})
	}
	return raw, nil
}

// EncodeLightYAML is the inverse of DecodeLightYAML, used by round-trip
// tests and diagram-export tooling.
func EncodeLightYAML(raw RawDiagram) ([]byte, error) {
	doc := lightYAMLDoc{ID: raw.ID}
	for _, n := range raw.Nodes {
		doc.Nodes = append(doc.Nodes, lightYAMLNode{
			ID:       string(n.ID),
			Type:     string(n.Type),
			Position: &lightYAMLPos{X: n.Position.X, Y: n.Position.Y},
			Props:    encodeNodeProps(n.Props),
		})
	}
	for _, a := range raw.Arrows {
		doc.Arrows = append(doc.Arrows, lightYAMLArrow{
			ID:        string(a.ID),
			From:      a.Source,
			To:        a.Target,
			Label:     a.Label,
			Branch:    a.Branch,
			Transform: encodeTransform(a.Transform),
		})
	}
	return yaml.Marshal(doc)
}

func decodeTransform(m map[string]any) TransformRule {
	t := TransformRule{}
	extra := map[string]any{}
	for k, v := range m {
		switch k {
		case "content_type":
			t.ContentType, _ = v.(string)
		case "extract_variable":
			t.ExtractVariable, _ = v.(string)
		case "format":
			t.Format, _ = v.(string)
		case "extract_tool_results":
			t.ExtractToolResults, _ = v.(bool)
		case "branch_on_condition_result":
			t.BranchOnConditionRes, _ = v.(bool)
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		t.Extra = extra
	}
	return t
}

func encodeTransform(t TransformRule) map[string]any {
	if t.IsEmpty() {
		return nil
	}
	m := map[string]any{}
	if t.ContentType != "" {
		m["content_type"] = t.ContentType
	}
	if t.ExtractVariable != "" {
		m["extract_variable"] = t.ExtractVariable
	}
	if t.Format != "" {
		m["format"] = t.Format
	}
	if t.ExtractToolResults {
		m["extract_tool_results"] = true
	}
	if t.BranchOnConditionRes {
		m["branch_on_condition_result"] = true
	}
	for k, v := range t.Extra {
		m[k] = v
	}
	return m
}

// decodeNodeProps maps a node's type-tagged props dict onto the matching
// typed variant. Unrecognized keys are dropped here and would need to be
// threaded through Node.Extensions by the caller if round-tripping is
// required beyond what EncodeLightYAML currently restores.
func decodeNodeProps(t NodeType, m map[string]any) (NodeProps, error) {
	str := func(key string) string {
		v, _ := m[key].(string)
		return v
	}
	intOf := func(key string) int {
		switch v := m[key].(type) {
		case int:
			return v
		case float64:
			return int(v)
		default:
			return 0
		}
	}
	boolOf := func(key string) bool {
		v, _ := m[key].(bool)
		return v
	}

	switch t {
	case NodeTypeStart:
		return StartProps{InitialValue: m["initial_value"]}, nil
	case NodeTypeEndpoint:
		return EndpointProps{SaveToFile: boolOf("save_to_file"), FileName: str("file_name")}, nil
	case NodeTypeCondition:
		kind := ConditionKindExpression
		if str("kind") == string(ConditionKindDetectMax) {
			kind = ConditionKindDetectMax
		}
		return ConditionProps{Kind: kind, Expression: str("expression")}, nil
	case NodeTypePersonJob, NodeTypePersonBatchJob:
		return PersonJobProps{
			PersonID:        str("person_id"),
			Model:           str("model"),
			Provider:        str("provider"),
			MaxIteration:    intOf("max_iteration"),
			FirstOnlyPrompt: str("first_only_prompt"),
			DefaultPrompt:   str("default_prompt"),
			Batch:           t == NodeTypePersonBatchJob,
		}, nil
	case NodeTypeCodeJob:
		return CodeJobProps{Language: CodeLanguage(str("language")), Code: str("code"), TimeoutSec: intOf("timeout_sec")}, nil
	case NodeTypeAPIJob:
		headers := map[string]string{}
		if hm, ok := m["headers"].(map[string]any); ok {
			for k, v := range hm {
				headers[k], _ = v.(string)
			}
		}
		return APIJobProps{Method: str("method"), URL: str("url"), Headers: headers, Body: m["body"], TimeoutSec: intOf("timeout_sec")}, nil
	case NodeTypeDB:
		return DBProps{Operation: DBOperation(str("operation")), Query: str("query"), Resource: str("resource")}, nil
	case NodeTypeUserResponse:
		return UserResponseProps{Prompt: str("prompt"), TimeoutSec: intOf("timeout_sec"), DefaultOnIdle: m["default_on_idle"]}, nil
	case NodeTypeHook:
		cfg, _ := m["config"].(map[string]any)
		return HookProps{Kind: str("kind"), Target: str("target"), Config: cfg}, nil
	case NodeTypeNotion:
		props, _ := m["properties"].(map[string]any)
		return NotionProps{DatabaseID: str("database_id"), Operation: str("operation"), Properties: props}, nil
	case NodeTypeTemplateJob:
		return TemplateJobProps{Template: str("template"), Engine: str("engine")}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}
}

func encodeNodeProps(p NodeProps) map[string]any {
	switch v := p.(type) {
	case StartProps:
		return map[string]any{"initial_value": v.InitialValue}
	case EndpointProps:
		return map[string]any{"save_to_file": v.SaveToFile, "file_name": v.FileName}
	case ConditionProps:
		return map[string]any{"kind": string(v.Kind), "expression": v.Expression}
	case PersonJobProps:
		return map[string]any{
			"person_id":         v.PersonID,
			"model":             v.Model,
			"provider":          v.Provider,
			"max_iteration":     v.MaxIteration,
			"first_only_prompt": v.FirstOnlyPrompt,
			"default_prompt":    v.DefaultPrompt,
		}
	case CodeJobProps:
		return map[string]any{"language": string(v.Language), "code": v.Code, "timeout_sec": v.TimeoutSec}
	case APIJobProps:
		headers := map[string]any{}
		for k, hv := range v.Headers {
			headers[k] = hv
		}
		return map[string]any{"method": v.Method, "url": v.URL, "headers": headers, "body": v.Body, "timeout_sec": v.TimeoutSec}
	case DBProps:
		return map[string]any{"operation": string(v.Operation), "query": v.Query, "resource": v.Resource}
	case UserResponseProps:
		return map[string]any{"prompt": v.Prompt, "timeout_sec": v.TimeoutSec, "default_on_idle": v.DefaultOnIdle}
	case HookProps:
		return map[string]any{"kind": v.Kind, "target": v.Target, "config": v.Config}
	case NotionProps:
		return map[string]any{"database_id": v.DatabaseID, "operation": v.Operation, "properties": v.Properties}
	case TemplateJobProps:
		return map[string]any{"template": v.Template, "engine": v.Engine}
	default:
		return nil
	}
}
