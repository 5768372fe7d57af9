package dispatch

import "context"

// APIKeyProvider is the sole surface this module exposes toward an
// out-of-scope external credential vault (spec.md §1 places API key
// management outside the core as an external collaborator). Handlers that
// need a provider API key (person_job, notion) depend on this interface
// rather than reading credentials from node config directly.
type APIKeyProvider interface {
	APIKey(ctx context.Context, provider string) (string, error)
}

// Services bundles the shared, injected dependencies handlers may need.
// ExecutionContext carries a *Services, but nothing in this module
// constructs one: cmd/dipeoflowctl never builds it and the scheduler
// leaves ExecutionContext.Services nil.
type Services struct {
	APIKeys APIKeyProvider
}
