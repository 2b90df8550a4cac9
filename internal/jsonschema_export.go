package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/tradeschema"
)

const jsonSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// ExportJSONSchema renders the schema registered under rootID, together with
// every schema it references, as a standalone JSON Schema document. Registry
// ids become $defs entries and references become "#/$defs/<id>".
func ExportJSONSchema(registry tradeschema.SchemaRegistry, rootID string) (*jsonschema.Schema, error) {
	if s, ok := registry.(tradeschema.Snapshotter); ok {
		registry = s.Snapshot()
	}

	defs := make(map[string]*jsonschema.Schema)
	var missing []string
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, done := defs[id]; done {
			continue
		}

		def, err := registry.Resolve(id)
		if err != nil {
			if id == rootID {
				return nil, err
			}
			if !slices.Contains(missing, id) {
				missing = append(missing, id)
			}
			continue
		}
		defs[id] = toJSONSchema(def)
		queue = append(queue, def.Refs()...)
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, tradeschema.NewUnresolvedReferenceError(missing)
	}

	return &jsonschema.Schema{
		Schema: jsonSchemaDialect,
		Title:  rootID,
		Ref:    defRef(rootID),
		Defs:   defs,
	}, nil
}

func defRef(id string) string {
	return "#/$defs/" + id
}

func toJSONSchema(s *tradeschema.Schema) *jsonschema.Schema {
	if s == nil {
		return nil
	}
	if s.IsRef() {
		return &jsonschema.Schema{Ref: defRef(s.Ref)}
	}

	out := &jsonschema.Schema{
		MaxLength: s.MaxLength,
		Pattern:   s.Pattern,
		Minimum:   s.Minimum,
		Maximum:   s.Maximum,
		Enum:      exportEnum(s.Enum),
	}
	if s.Nullable {
		out.Types = []string{string(s.Type), "null"}
	} else {
		out.Type = string(s.Type)
	}

	switch s.Type {
	case tradeschema.TypeObject:
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]*jsonschema.Schema, len(s.Properties))
			for name, prop := range s.Properties {
				out.Properties[name] = toJSONSchema(prop)
			}
		}
		if len(s.Required) > 0 {
			out.Required = slices.Clone(s.Required)
		}
		if !s.AllowsAdditional() {
			// false schema
			out.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
		}
	case tradeschema.TypeArray:
		out.Items = toJSONSchema(s.Items)
	}
	return out
}

// exportEnum widens numeric enum members to float64, the form decoded
// instances take.
func exportEnum(values []any) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		if f, ok := toFloat(v); ok {
			out[i] = f
			continue
		}
		out[i] = v
	}
	return out
}

// JSONSchemaEngine validates documents through the exported JSON Schema and
// the jsonschema-go resolver. It reports pass or fail only and serves as a
// cross-check for SchemaValidator.
type JSONSchemaEngine struct {
	registry tradeschema.SchemaRegistry

	mu       sync.Mutex
	resolved map[string]*jsonschema.Resolved
}

// NewJSONSchemaEngine creates an engine over registry.
func NewJSONSchemaEngine(registry tradeschema.SchemaRegistry) *JSONSchemaEngine {
	return &JSONSchemaEngine{
		registry: registry,
		resolved: make(map[string]*jsonschema.Resolved),
	}
}

type fingerprinter interface {
	Fingerprint() uint64
}

// Validate returns nil when doc satisfies the schema registered under rootID.
func (e *JSONSchemaEngine) Validate(ctx context.Context, rootID string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	registry := e.registry
	if s, ok := registry.(tradeschema.Snapshotter); ok {
		registry = s.Snapshot()
	}

	resolved, err := e.resolve(registry, rootID)
	if err != nil {
		return err
	}

	instance, err := toGenericJSON(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("JSON validation failed: %w", err)
	}
	return nil
}

func (e *JSONSchemaEngine) resolve(registry tradeschema.SchemaRegistry, rootID string) (*jsonschema.Resolved, error) {
	key := ""
	if fp, ok := registry.(fingerprinter); ok {
		key = fmt.Sprintf("%016x/%s", fp.Fingerprint(), rootID)
		e.mu.Lock()
		cached, hit := e.resolved[key]
		e.mu.Unlock()
		if hit {
			return cached, nil
		}
	}

	schema, err := ExportJSONSchema(registry, rootID)
	if err != nil {
		return nil, err
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JSON schema: %w", err)
	}

	if key != "" {
		e.mu.Lock()
		e.resolved[key] = resolved
		e.mu.Unlock()
	}
	return resolved, nil
}

// toGenericJSON round-trips doc through encoding/json so that numbers are
// float64 and containers are map[string]any / []any.
func toGenericJSON(doc any) (any, error) {
	var data []byte
	switch d := doc.(type) {
	case []byte:
		data = d
	case json.RawMessage:
		data = d
	default:
		var err error
		if data, err = json.Marshal(doc); err != nil {
			return nil, err
		}
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
