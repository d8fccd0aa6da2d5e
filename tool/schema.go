package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	invopop "github.com/invopop/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// JSONSchema renders the descriptor's parameter specs as a minimal JSON
// Schema object of the shape expected by model function-calling interfaces:
//
//	{"type":"object","properties":{...},"required":[...]}
func (d Descriptor) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// schemaValidator validates a decoded JSON value against a compiled schema.
// *jsonschema.Schema implements it.
type schemaValidator interface {
	Validate(v any) error
}

// compileSchema compiles the exported schema map once at registration so the
// per-call validation path does no parsing work.
func compileSchema(name string, schema map[string]any) (schemaValidator, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "mem://tools/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// validateArguments applies the declared schema to raw arguments. Required
// and type violations are reported with the offending field first; the
// compiled schema then catches anything the quick checks miss. Extra
// arguments not present in the schema are rejected only by required/type
// policy, matching the export shape (objects are not closed).
func validateArguments(d Descriptor, compiled schemaValidator, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	for _, p := range d.Parameters {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return &ValidationError{Field: p.Name, Message: "required parameter is missing"}
			}
			continue
		}
		if !isAcceptableType(v, p.Type) {
			return &ValidationError{
				Field:   p.Name,
				Value:   v,
				Message: fmt.Sprintf("expected type %s, got %T", p.Type, v),
			}
		}
	}
	if compiled == nil {
		return nil
	}
	normalized, err := normalizeJSON(args)
	if err != nil {
		return &ValidationError{Field: "", Message: fmt.Sprintf("arguments are not JSON-serializable: %v", err)}
	}
	if err := compiled.Validate(normalized); err != nil {
		return toValidationError(err)
	}
	return nil
}

// normalizeJSON round-trips args through encoding/json so the compiled schema
// sees canonical JSON types (float64 numbers, map[string]any objects) even
// when the caller passed native Go values.
func normalizeJSON(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// toValidationError converts a jsonschema validation failure into the
// registry's error shape, pointing at the deepest failing instance location.
func toValidationError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Field: "", Message: err.Error()}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := ""
	if len(leaf.InstanceLocation) > 0 {
		field = leaf.InstanceLocation[len(leaf.InstanceLocation)-1]
	}
	return &ValidationError{Field: field, Message: leaf.Error()}
}

// isAcceptableType mirrors the JSON type system loosely enough to accept both
// decoded-JSON values and native Go values supplied by in-process callers.
func isAcceptableType(v any, t ParamType) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		return isNumeric(v)
	case TypeInteger:
		switch n := v.(type) {
		case float64:
			return n == float64(int64(n))
		case float32:
			return n == float32(int64(n))
		default:
			return isNumeric(v)
		}
	case TypeArray:
		k := reflect.ValueOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	case TypeObject:
		k := reflect.ValueOf(v).Kind()
		return k == reflect.Map || k == reflect.Struct
	default:
		return true
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	default:
		return false
	}
}

// ParamsFromStruct derives parameter specs from a struct type using JSON
// Schema reflection, so handlers can declare their argument shape once. Field
// order follows the struct declaration; json tags name the parameters,
// pointer or omitempty fields become optional, and `description` /
// `jsonschema:"description=..."` tags are carried into the schema.
func ParamsFromStruct(structValue any) ([]ParameterSpec, error) {
	t := reflect.TypeOf(structValue)
	if t == nil {
		return nil, fmt.Errorf("nil struct value")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", t.Kind())
	}

	reflector := invopop.Reflector{DoNotReference: true, ExpandedStruct: false}
	schema := reflector.Reflect(structValue)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	properties, _ := m["properties"].(map[string]any)
	requiredSet := map[string]bool{}
	if reqs, ok := m["required"].([]any); ok {
		for _, r := range reqs {
			if s, ok := r.(string); ok {
				requiredSet[s] = true
			}
		}
	}

	var specs []ParameterSpec
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if jsonTag != "" {
			if head := strings.Split(jsonTag, ",")[0]; head != "" {
				name = head
			}
		}
		spec := ParameterSpec{Name: name, Required: requiredSet[name]}
		if prop, ok := properties[name].(map[string]any); ok {
			if typ, ok := prop["type"].(string); ok {
				spec.Type = ParamType(typ)
			}
			if desc, ok := prop["description"].(string); ok {
				spec.Description = desc
			}
		}
		if spec.Type == "" {
			spec.Type = goKindToParamType(field.Type)
		}
		if spec.Description == "" {
			spec.Description = field.Tag.Get("description")
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func goKindToParamType(t reflect.Type) ParamType {
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Map, reflect.Struct:
		return TypeObject
	case reflect.Pointer:
		return goKindToParamType(t.Elem())
	default:
		return TypeString
	}
}
