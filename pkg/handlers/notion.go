package handlers

import (
	"context"
	"fmt"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// NotionClient is the narrow surface notion.go needs; no Notion SDK appears
// in the retrieval pack, so this is a small interface over the same
// *http.Client-based APIJobHandler used for outbound calls elsewhere,
// rather than a hand-authored full API client.
type NotionClient interface {
	Query(ctx context.Context, databaseID, operation string, properties map[string]any) (any, error)
}

// HTTPNotionClient implements NotionClient against the Notion REST API via
// APIJobHandler, matching spec.md's description of notion as one of the
// several external-integration node types that share the api_job transport.
type HTTPNotionClient struct {
	api    *APIJobHandler
	apiKey string
}

// NewHTTPNotionClient builds a client using the given APIJobHandler and a
// resolved integration token (obtained through dispatch.APIKeyProvider).
func NewHTTPNotionClient(api *APIJobHandler, apiKey string) *HTTPNotionClient {
	return &HTTPNotionClient{api: api, apiKey: apiKey}
}

func (c *HTTPNotionClient) Query(ctx context.Context, databaseID, operation string, properties map[string]any) (any, error) {
	url := fmt.Sprintf("https://api.notion.com/v1/databases/%s/query", databaseID)
	if operation == "create_page" {
		url = "https://api.notion.com/v1/pages"
	}
	props := diagram.APIJobProps{
		Method: "POST",
		URL:    url,
		Headers: map[string]string{
			"Authorization":  "Bearer " + c.apiKey,
			"Notion-Version": "2022-06-28",
		},
		Body: properties,
	}
	out, err := c.api.Execute(ctx, dispatch.ExecutionContext{}, props, nil)
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// NotionHandler wraps a NotionClient behind the standard Handler contract.
type NotionHandler struct {
	client NotionClient
}

// NewNotionHandler builds a handler over the given client.
func NewNotionHandler(client NotionClient) *NotionHandler {
	return &NotionHandler{client: client}
}

func (h *NotionHandler) NodeType() diagram.NodeType { return diagram.NodeTypeNotion }

func (h *NotionHandler) RequiresServices() []string { return []string{"api_keys"} }

func (h *NotionHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.NotionProps)
	if !ok {
		return fmt.Errorf("handlers: notion node given wrong props type %T", props)
	}
	if p.DatabaseID == "" {
		return fmt.Errorf("handlers: notion node requires a database_id")
	}
	if p.Operation == "" {
		return fmt.Errorf("handlers: notion node requires an operation")
	}
	return nil
}

func (h *NotionHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.NotionProps)
	properties := p.Properties
	if properties == nil {
		properties = inputs
	}
	result, err := h.client.Query(ctx, p.DatabaseID, p.Operation, properties)
	if err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: notion operation failed: %w", err)
	}
	return dispatch.NodeOutput{Value: result}, nil
}
