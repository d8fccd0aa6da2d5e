// Package tool implements the registry subsystem that exposes named,
// schema-validated operations to the resilient executor and, through schema
// export, to an upstream language model's function-calling mechanism.
//
// A tool is described once at process startup by a Descriptor (name, human
// description, category, parameter schema) bound to a Handler capability. The
// registry enforces two startup-time contracts: tool names are unique, and a
// handler's accepted argument names exactly match its declared parameter
// schema. Violating either is a programming error, not an operational one.
package tool

import "context"

// Handler is the external capability the core calls into. Implementations
// receive already-validated arguments and return a result or an error. Long
// running handlers should honor ctx for cooperative cancellation; a handler
// that ignores ctx is detached on turn cancellation and its result discarded.
//
// Handlers must be safe for concurrent use: the executor may run several
// invocations of the same tool at once, bounded only by its concurrency gate.
type Handler interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// ParamNamer is an optional Handler extension declaring which argument names
// the handler accepts. When implemented, the registry verifies the declared
// names against the descriptor's parameter schema at registration time and
// rejects mismatches with ErrSchemaMismatch.
type ParamNamer interface {
	ParamNames() []string
}

// Category groups tools for schema export and operational dashboards.
type Category string

const (
	// CategoryGeneral is the default bucket.
	CategoryGeneral Category = "general"
	// CategorySearch covers retrieval-style tools.
	CategorySearch Category = "search"
	// CategoryDocuments covers document generation and templating tools.
	CategoryDocuments Category = "documents"
	// CategoryScheduling covers calendar and deadline tools.
	CategoryScheduling Category = "scheduling"
	// CategoryComputation covers pure computations.
	CategoryComputation Category = "computation"
)

// ParamType is the JSON type of a declared parameter.
type ParamType string

const (
	// TypeString is a JSON string parameter.
	TypeString ParamType = "string"
	// TypeNumber is a JSON number parameter.
	TypeNumber ParamType = "number"
	// TypeInteger is a JSON integer parameter.
	TypeInteger ParamType = "integer"
	// TypeBoolean is a JSON boolean parameter.
	TypeBoolean ParamType = "boolean"
	// TypeArray is a JSON array parameter.
	TypeArray ParamType = "array"
	// TypeObject is a JSON object parameter.
	TypeObject ParamType = "object"
)

// ParameterSpec declares one named, typed parameter of a tool.
type ParameterSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// Descriptor describes a registered tool. Descriptors are immutable after
// registration and owned exclusively by the Registry.
type Descriptor struct {
	// Name uniquely identifies the tool (snake_case recommended).
	Name string `json:"name"`
	// Description is shown to the upstream model to guide tool selection.
	Description string `json:"description"`
	// Category groups the tool for export and dashboards.
	Category Category `json:"category,omitempty"`
	// Parameters is the ordered parameter schema.
	Parameters []ParameterSpec `json:"parameters"`
	// Handler is the capability invoked with validated arguments.
	Handler Handler `json:"-"`
}

// ParamNames returns the declared parameter names in schema order.
func (d Descriptor) ParamNames() []string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

// Definition is the read-only export shape advertised to an upstream model's
// function-calling interface: name, description and a JSON Schema object.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    Category       `json:"category,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}
