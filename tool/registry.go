package tool

import (
	"fmt"
	"slices"
	"sync"

	"github.com/zeddq/agentcore/logging"
)

// Registry maps tool names to descriptors with pre-compiled argument schemas.
// Registration happens single-threaded at startup; afterwards the registry is
// safe for concurrent reads from the executor and the schema export path.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registration
	logger logging.Logger
}

// registration pairs a descriptor with its derived validation state.
type registration struct {
	desc     Descriptor
	schema   map[string]any
	compiled schemaValidator
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Logger records registrations; defaults to NoOpLogger.
	Logger logging.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{tools: make(map[string]*registration), logger: opts.Logger}
}

// Register adds a tool. It fails with ErrDuplicateTool if the name is taken
// (leaving the original registration unchanged) and with ErrSchemaMismatch if
// the handler declares argument names that differ from the parameter schema.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q: handler must not be nil", d.Name)
	}
	if d.Category == "" {
		d.Category = CategoryGeneral
	}
	if err := checkHandlerContract(d); err != nil {
		return err
	}

	schema := d.JSONSchema()
	compiled, err := compileSchema(d.Name, schema)
	if err != nil {
		return fmt.Errorf("tool %q: compile schema: %w", d.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	r.tools[d.Name] = &registration{desc: d, schema: schema, compiled: compiled}

	r.logger.Info("registry.tool.registered", "tool", d.Name, "category", string(d.Category), "params", len(d.Parameters))
	return nil
}

// MustRegister registers the descriptor and panics on error. Registration
// failures are startup-time contract violations and deliberately fatal.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(fmt.Sprintf("tool registration: %v", err))
	}
}

// Lookup returns the descriptor for name or ErrToolNotFound.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return reg.desc, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names sorted for deterministic output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DescribeAll produces the read-only definition list for external schema
// export, sorted by name. This is the only purely query operation on the
// registry and allocates fresh maps so callers cannot mutate internal state.
func (r *Registry) DescribeAll() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		reg := r.tools[name]
		defs = append(defs, Definition{
			Name:        reg.desc.Name,
			Description: reg.desc.Description,
			Category:    reg.desc.Category,
			Parameters:  cloneSchema(reg.schema),
		})
	}
	return defs
}

// ValidateArguments checks args against the tool's declared schema. It
// returns *ValidationError describing the first violation, ErrToolNotFound
// for unknown tools, and nil when the arguments are acceptable.
func (r *Registry) ValidateArguments(name string, args map[string]any) error {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return validateArguments(reg.desc, reg.compiled, args)
}

// checkHandlerContract verifies that a handler declaring its accepted
// argument names (via ParamNamer) matches the schema exactly.
func checkHandlerContract(d Descriptor) error {
	namer, ok := d.Handler.(ParamNamer)
	if !ok {
		return nil
	}
	declared := slices.Clone(namer.ParamNames())
	expected := d.ParamNames()
	slices.Sort(declared)
	slices.Sort(expected)
	if !slices.Equal(declared, expected) {
		return fmt.Errorf("%w: tool %q handler accepts %v, schema declares %v",
			ErrSchemaMismatch, d.Name, declared, expected)
	}
	return nil
}

func cloneSchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}
	return out
}
