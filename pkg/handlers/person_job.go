package handlers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// LLMProvider is the narrow surface person_job needs from an LLM backend,
// grounded on the teacher's executor/builtin/llm.go LLMProvider interface.
// OpenAIProvider below is the concrete implementation wired via
// go-openai; other providers can be registered without touching the
// handler itself.
type LLMProvider interface {
	Complete(ctx context.Context, model string, prompt string, conversation []string) (string, error)
}

// OpenAIProvider implements LLMProvider against the OpenAI chat completions
// API via github.com/sashabaranov/go-openai, mirroring the teacher's
// provider-per-backend pattern in executor/builtin/llm.go.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider from an already-resolved API key
// (fetched through dispatch.APIKeyProvider by the caller, never read
// directly from node config).
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// Complete sends the prompt plus any prior conversation turns as a chat
// completion request and returns the assistant's reply text.
func (p *OpenAIProvider) Complete(ctx context.Context, model, prompt string, conversation []string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation)+1)
	for i, turn := range conversation {
		role := openai.ChatMessageRoleUser
		if i%2 == 1 {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("handlers: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("handlers: openai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// PersonJobHandler drives one LLM turn per execution, selecting
// first_only_prompt vs default_prompt based on whether this is the node's
// first execution (the "__first_execution" input marker). Batch
// mode (person_batch_job) runs the same completion once per item in the
// "items" input key, per spec.md's person_batch_job node type.
type PersonJobHandler struct {
	providers map[string]LLMProvider
}

// NewPersonJobHandler builds a handler over a provider-name -> LLMProvider
// map; "openai" is the only provider this module wires concretely, but the
// map shape lets additional providers be registered the way the teacher's
// LLMExecutor.RegisterProvider does.
func NewPersonJobHandler(providers map[string]LLMProvider) *PersonJobHandler {
	return &PersonJobHandler{providers: providers}
}

func (h *PersonJobHandler) NodeType() diagram.NodeType { return diagram.NodeTypePersonJob }

func (h *PersonJobHandler) RequiresServices() []string { return []string{"api_keys"} }

func (h *PersonJobHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.PersonJobProps)
	if !ok {
		return fmt.Errorf("handlers: person_job node given wrong props type %T", props)
	}
	if p.Model == "" {
		return fmt.Errorf("handlers: person_job node requires a model")
	}
	if p.Provider == "" {
		return fmt.Errorf("handlers: person_job node requires a provider")
	}
	if p.MaxIteration <= 0 {
		return fmt.Errorf("handlers: person_job node requires max_iteration > 0")
	}
	return nil
}

func (h *PersonJobHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.PersonJobProps)

	provider, ok := h.providers[p.Provider]
	if !ok {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: no provider registered for %q", p.Provider)
	}

	prompt := p.DefaultPrompt
	if isFirstExecutionInput(inputs) && p.FirstOnlyPrompt != "" {
		prompt = p.FirstOnlyPrompt
	}

	var conversation []string
	if cs, ok := inputs["conversation_state"].([]string); ok {
		conversation = cs
	}

	if p.Batch {
		items, _ := inputs["items"].([]any)
		results := make([]any, 0, len(items))
		for _, item := range items {
			reply, err := provider.Complete(ctx, p.Model, fmt.Sprintf("%s\n%v", prompt, item), conversation)
			if err != nil {
				return dispatch.NodeOutput{}, err
			}
			results = append(results, reply)
		}
		return dispatch.NodeOutput{Value: results}, nil
	}

	reply, err := provider.Complete(ctx, p.Model, prompt, conversation)
	if err != nil {
		return dispatch.NodeOutput{}, err
	}
	return dispatch.NodeOutput{Value: reply}, nil
}

// PersonBatchJobHandler is the person_batch_job counterpart, identical in
// behavior to PersonJobHandler (which already branches on PersonJobProps.Batch)
// but registered under the distinct node type so pkg/dispatch.Registry can
// tell the two apart without the handler needing two registry entries for
// the same NodeType().
type PersonBatchJobHandler struct {
	*PersonJobHandler
}

// NewPersonBatchJobHandler wraps an existing PersonJobHandler for
// registration under NodeTypePersonBatchJob.
func NewPersonBatchJobHandler(inner *PersonJobHandler) *PersonBatchJobHandler {
	return &PersonBatchJobHandler{PersonJobHandler: inner}
}

func (h *PersonBatchJobHandler) NodeType() diagram.NodeType { return diagram.NodeTypePersonBatchJob }

// isFirstExecutionInput is a placeholder seam: the scheduler stamps a
// "__first_execution" marker into a person_job node's resolved inputs (see
// executeOne in pkg/scheduler/scheduler.go) so the handler doesn't need direct access to
// pkg/state.
func isFirstExecutionInput(inputs map[string]any) bool {
	first, _ := inputs["__first_execution"].(bool)
	return first
}
