package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

func TestConditionHandler_EvaluatesExpression(t *testing.T) {
	h := NewConditionHandler()
	props := diagram.ConditionProps{Kind: diagram.ConditionKindExpression, Expression: "count > 3"}
	require.NoError(t, h.Validate(props))

	out, err := h.Execute(context.Background(), dispatch.ExecutionContext{}, props, map[string]any{"count": 5})
	require.NoError(t, err)
	assert.Equal(t, true, out.Value)
	require.NotNil(t, out.Result)
	assert.True(t, *out.Result)
	assert.Equal(t, map[string]any{"count": 5}, out.CondTrue)
	assert.Nil(t, out.CondFalse)
}

func TestConditionHandler_CachesCompiledProgram(t *testing.T) {
	h := NewConditionHandler()
	props := diagram.ConditionProps{Kind: diagram.ConditionKindExpression, Expression: "count > 3"}

	_, err := h.Execute(context.Background(), dispatch.ExecutionContext{}, props, map[string]any{"count": 1})
	require.NoError(t, err)
	_, cached := h.cache.get("count > 3")
	assert.True(t, cached)
}

func TestConditionHandler_RejectsInvalidExpression(t *testing.T) {
	h := NewConditionHandler()
	props := diagram.ConditionProps{Kind: diagram.ConditionKindExpression, Expression: "this is not ) valid"}
	assert.Error(t, h.Validate(props))
}

func TestTemplateJobHandler_RendersTemplate(t *testing.T) {
	h := TemplateJobHandler{}
	props := diagram.TemplateJobProps{Template: "hello {{.name}}"}
	out, err := h.Execute(context.Background(), dispatch.ExecutionContext{}, props, map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out.Value)
}

func TestCodeJobHandler_RunsShellSnippet(t *testing.T) {
	h := CodeJobHandler{}
	props := diagram.CodeJobProps{Language: diagram.CodeLanguageShell, Code: "echo -n hi"}
	out, err := h.Execute(context.Background(), dispatch.ExecutionContext{}, props, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Value)
}
