package agent

import (
	"context"
	"encoding/json"

	"github.com/cginside/hobi/pkg/llm"
)

// ToolResult is what a tool hands back to the orchestrator. Content is the
// text fed into the model transcript; Metadata rides alongside for callers
// that need structured detail (matched flags, sources, images).
type ToolResult struct {
	Content  string
	Metadata map[string]any
}

// Tool is a capability the agent can invoke during a run. Spec returns the
// function-calling schema handed to the provider; Execute receives the raw
// JSON arguments exactly as the model produced them.
type Tool interface {
	Spec() llm.Tool
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

// Registry holds the tools available to an agent, keyed by name.
// Registering a tool under an existing name replaces it.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	name := t.Spec().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the tool schemas in registration order.
func (r *Registry) Specs() []llm.Tool {
	specs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

func (r *Registry) Len() int {
	return len(r.tools)
}
