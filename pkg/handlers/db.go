package handlers

import (
	"context"
	"fmt"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// Store is the narrow key/value surface a db node needs; the concrete
// backend (in-memory for tests, a real datastore in production) is injected
// rather than hardcoded, matching the teacher's repository-interface
// pattern (internal/infrastructure/storage/execution_repository.go defines
// an interface its bun-backed struct implements).
type Store interface {
	Read(ctx context.Context, resource, query string) (any, error)
	Write(ctx context.Context, resource, query string, value any) error
}

// DBHandler reads or writes through an injected Store.
type DBHandler struct {
	store Store
}

// NewDBHandler builds a handler over the given store.
func NewDBHandler(store Store) *DBHandler {
	return &DBHandler{store: store}
}

func (h *DBHandler) NodeType() diagram.NodeType { return diagram.NodeTypeDB }

func (h *DBHandler) RequiresServices() []string { return nil }

func (h *DBHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.DBProps)
	if !ok {
		return fmt.Errorf("handlers: db node given wrong props type %T", props)
	}
	if p.Operation != diagram.DBOperationRead && p.Operation != diagram.DBOperationWrite {
		return fmt.Errorf("handlers: db node has invalid operation %q", p.Operation)
	}
	if p.Resource == "" {
		return fmt.Errorf("handlers: db node requires a resource")
	}
	return nil
}

func (h *DBHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.DBProps)

	switch p.Operation {
	case diagram.DBOperationRead:
		value, err := h.store.Read(ctx, p.Resource, p.Query)
		if err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: db read failed: %w", err)
		}
		return dispatch.NodeOutput{Value: value}, nil
	case diagram.DBOperationWrite:
		value := inputs["value"]
		if value == nil && len(inputs) == 1 {
			for _, v := range inputs {
				value = v
			}
		}
		if err := h.store.Write(ctx, p.Resource, p.Query, value); err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: db write failed: %w", err)
		}
		return dispatch.NodeOutput{Value: value}, nil
	default:
		return dispatch.NodeOutput{}, fmt.Errorf("handlers: unsupported db operation %q", p.Operation)
	}
}

// MemoryStore is an in-process Store used for tests and small diagrams,
// keyed by resource name to a plain value.
type MemoryStore struct {
	data map[string]any
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]any)}
}

func (s *MemoryStore) Read(ctx context.Context, resource, query string) (any, error) {
	v, ok := s.data[resource]
	if !ok {
		return nil, fmt.Errorf("handlers: resource %q not found", resource)
	}
	return v, nil
}

func (s *MemoryStore) Write(ctx context.Context, resource, query string, value any) error {
	s.data[resource] = value
	return nil
}
