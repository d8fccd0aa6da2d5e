package tool

import (
	"context"
	"slices"
)

// FunctionHandler exposes a plain Go function as a Handler while declaring
// the argument names it accepts, so the registry can verify the
// schema-vs-handler contract at registration time.
//
// A FunctionHandler has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionHandler struct {
	fn         HandlerFunc
	paramNames []string
}

// NewFunctionHandler wraps fn, declaring the accepted argument names.
//
// Example:
//
//	echo := tool.NewFunctionHandler(
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["msg"], nil
//	  },
//	  "msg",
//	)
func NewFunctionHandler(fn HandlerFunc, paramNames ...string) *FunctionHandler {
	return &FunctionHandler{fn: fn, paramNames: slices.Clone(paramNames)}
}

// Invoke implements Handler.
func (h *FunctionHandler) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return h.fn(ctx, args)
}

// ParamNames implements ParamNamer.
func (h *FunctionHandler) ParamNames() []string { return slices.Clone(h.paramNames) }

// NewDescriptor builds a descriptor whose handler declares exactly the
// schema's parameter names, keeping the startup contract trivially satisfied
// for function-backed tools.
func NewDescriptor(name, description string, category Category, params []ParameterSpec, fn HandlerFunc) Descriptor {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return Descriptor{
		Name:        name,
		Description: description,
		Category:    category,
		Parameters:  params,
		Handler:     NewFunctionHandler(fn, names...),
	}
}

// NewDescriptorFromStruct derives the parameter schema from a struct type and
// builds a function-backed descriptor. It panics if the struct cannot be
// reflected, which is a startup-time programming error.
func NewDescriptorFromStruct(name, description string, category Category, structValue any, fn HandlerFunc) Descriptor {
	params, err := ParamsFromStruct(structValue)
	if err != nil {
		panic("tool: derive schema for " + name + ": " + err.Error())
	}
	return NewDescriptor(name, description, category, params, fn)
}
