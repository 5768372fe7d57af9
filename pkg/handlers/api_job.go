package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// APIJobHandler performs an outbound HTTP call. Uses stdlib net/http
// directly: the teacher's own outbound API executor does the same (no HTTP
// client library appears anywhere in the retrieval pack for outbound
// calls — gin/grpc in the pack are inbound server frameworks, a different
// concern).
type APIJobHandler struct {
	client *http.Client
}

// NewAPIJobHandler builds a handler around an http.Client, letting callers
// inject one with custom transport/timeouts for testing.
func NewAPIJobHandler(client *http.Client) *APIJobHandler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIJobHandler{client: client}
}

func (h *APIJobHandler) NodeType() diagram.NodeType { return diagram.NodeTypeAPIJob }

func (h *APIJobHandler) RequiresServices() []string { return nil }

func (h *APIJobHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.APIJobProps)
	if !ok {
		return fmt.Errorf("handlers: api_job node given wrong props type %T", props)
	}
	if p.URL == "" {
		return fmt.Errorf("handlers: api_job node requires a url")
	}
	if p.Method == "" {
		return fmt.Errorf("handlers: api_job node requires a method")
	}
	return nil
}

func (h *APIJobHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.APIJobProps)

	timeout := time.Duration(p.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	body := p.Body
	if body == nil {
		body = inputs
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: api_job marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(runCtx, p.Method, p.URL, bodyReader)
	if err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: api_job building request: %w", err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: api_job request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: api_job reading response: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		decoded = string(respBody)
	}

	if resp.StatusCode >= 400 {
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: api_job received status %d", resp.StatusCode)
	}

	return dispatch.NodeOutput{Value: map[string]any{
		"status": resp.StatusCode,
		"body":   decoded,
	}}, nil
}
