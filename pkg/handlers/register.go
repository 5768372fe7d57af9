package handlers

import (
	"net/http"

	"github.com/dipeoflow/engine/pkg/dispatch"
)

// Dependencies bundles the concrete backends RegisterAll wires into
// handlers that need them. Each field is optional. Passing nil for
// LLMProviders, Store, NotionClient or ResponseWaiter skips registering the
// handlers that need it, letting callers (e.g. a CLI invocation against a
// diagram with no person_job nodes) avoid standing up unused
// infrastructure; a nil HTTPClient is handed to NewAPIJobHandler, and
// api_job and hook are always registered.
type Dependencies struct {
	LLMProviders   map[string]LLMProvider
	Store          Store
	HTTPClient     *http.Client
	NotionClient   NotionClient
	ResponseWaiter ResponseWaiter
}

// RegisterAll builds a fully wired dispatch.Registry over the given
// dependencies, matching the teacher's Manager.Register-at-startup pattern
// in pkg/executor/executor.go.
func RegisterAll(deps Dependencies) *dispatch.Registry {
	r := dispatch.NewRegistry()

	r.Register(StartHandler{})
	r.Register(EndpointHandler{})
	r.Register(NewConditionHandler())
	r.Register(TemplateJobHandler{})
	r.Register(CodeJobHandler{})

	api := NewAPIJobHandler(deps.HTTPClient)
	r.Register(api)
	r.Register(NewHookHandler(api))

	if deps.LLMProviders != nil {
		person := NewPersonJobHandler(deps.LLMProviders)
		r.Register(person)
		r.Register(NewPersonBatchJobHandler(person))
	}

	if deps.Store != nil {
		r.Register(NewDBHandler(deps.Store))
	}

	if deps.NotionClient != nil {
		r.Register(NewNotionHandler(deps.NotionClient))
	}

	if deps.ResponseWaiter != nil {
		r.Register(NewUserResponseHandler(deps.ResponseWaiter))
	}

	return r
}
