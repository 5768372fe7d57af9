package handlers

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// TemplateJobHandler renders a text/template string against its resolved
// inputs. Only the "text/template" engine is implemented: nothing in the
// retrieval pack pulls in a mustache/handlebars library, and stdlib
// text/template covers the common {{ .key }} substitution case spec.md
// describes for this node type.
type TemplateJobHandler struct{}

func (TemplateJobHandler) NodeType() diagram.NodeType { return diagram.NodeTypeTemplateJob }

func (TemplateJobHandler) RequiresServices() []string { return nil }

func (TemplateJobHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.TemplateJobProps)
	if !ok {
		return fmt.Errorf("handlers: template_job node given wrong props type %T", props)
	}
	if p.Template == "" {
		return fmt.Errorf("handlers: template_job node requires a non-empty template")
	}
	if _, err := template.New("template_job").Parse(p.Template); err != nil {
		return fmt.Errorf("handlers: template_job template does not parse: %w", err)
	}
	return nil
}

func (TemplateJobHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.TemplateJobProps)

	tmpl, err := template.New("template_job").Parse(p.Template)
	if err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: template_job template does not parse: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, inputs); err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: template_job rendering failed: %w", err)
	}
	return dispatch.NodeOutput{Value: buf.String()}, nil
}
