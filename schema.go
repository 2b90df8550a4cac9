package tradeschema

import (
	"fmt"
	"regexp"
	"slices"
)

// SchemaType is the structural kind of a schema node.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeBoolean SchemaType = "boolean"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
)

// Valid reports whether t is one of the supported structural kinds.
func (t SchemaType) Valid() bool {
	switch t {
	case TypeObject, TypeArray, TypeString, TypeBoolean, TypeInteger, TypeNumber:
		return true
	}
	return false
}

// Primitive reports whether t describes a scalar value.
func (t SchemaType) Primitive() bool {
	return t == TypeString || t == TypeBoolean || t == TypeInteger || t == TypeNumber
}

// Schema is both a registered schema definition (ID set) and an inline type
// descriptor. A descriptor with Ref set points at another registered schema
// and carries no other keywords; the reference is kept as a plain identifier
// and looked up only when a document is validated.
type Schema struct {
	ID                   string             `json:"id,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Type                 SchemaType         `json:"type,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty"`
	Pattern              string             `json:"pattern,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Nullable             bool               `json:"nullable,omitempty"` // JSON null is accepted besides Type
}

// NewRef returns a descriptor referencing the schema registered under id.
func NewRef(id string) *Schema {
	return &Schema{Ref: id}
}

// NewType returns a bare descriptor of the given kind.
func NewType(t SchemaType) *Schema {
	return &Schema{Type: t}
}

// NewArrayOf is the array-of-primitive shorthand used by configuration
// fields that hold a list of scalars.
func NewArrayOf(t SchemaType) *Schema {
	return &Schema{Type: TypeArray, Items: &Schema{Type: t}}
}

// NewNullable returns a descriptor of the given kind that also accepts null.
func NewNullable(t SchemaType) *Schema {
	return &Schema{Type: t, Nullable: true}
}

// NewStrictObject returns an object descriptor that rejects undeclared
// properties and requires none of the declared ones.
func NewStrictObject(props map[string]*Schema) *Schema {
	closed := false
	return &Schema{
		Type:                 TypeObject,
		Properties:           props,
		AdditionalProperties: &closed,
		Required:             []string{},
	}
}

// IsRef reports whether the node is a reference to another schema.
func (s *Schema) IsRef() bool {
	return s != nil && s.Ref != ""
}

// AllowsAdditional reports whether undeclared object properties are accepted.
// Absent additionalProperties means open, as in JSON Schema.
func (s *Schema) AllowsAdditional() bool {
	return s.AdditionalProperties == nil || *s.AdditionalProperties
}

// IsRequired reports whether name is listed in Required.
func (s *Schema) IsRequired(name string) bool {
	return slices.Contains(s.Required, name)
}

// Refs returns every reference identifier reachable inside this node without
// crossing into referenced schemas.
func (s *Schema) Refs() []string {
	var refs []string
	s.walk(func(n *Schema) {
		if n.Ref != "" {
			refs = append(refs, n.Ref)
		}
	})
	return refs
}

func (s *Schema) walk(fn func(*Schema)) {
	if s == nil {
		return
	}
	fn(s)
	for _, name := range sortedKeys(s.Properties) {
		s.Properties[name].walk(fn)
	}
	s.Items.walk(fn)
}

// Clone returns a deep copy of the schema tree.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := *s
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.Clone()
		}
	}
	if s.AdditionalProperties != nil {
		v := *s.AdditionalProperties
		out.AdditionalProperties = &v
	}
	if s.Required != nil {
		out.Required = slices.Clone(s.Required)
	}
	out.Items = s.Items.Clone()
	if s.MaxLength != nil {
		v := *s.MaxLength
		out.MaxLength = &v
	}
	if s.Minimum != nil {
		v := *s.Minimum
		out.Minimum = &v
	}
	if s.Maximum != nil {
		v := *s.Maximum
		out.Maximum = &v
	}
	if s.Enum != nil {
		out.Enum = slices.Clone(s.Enum)
	}
	return &out
}

// Check verifies that the definition itself is well formed. It does not
// resolve references.
func (s *Schema) Check() error {
	return s.check("")
}

func (s *Schema) check(path string) error {
	if s == nil {
		return NewInvalidDefinitionError(path, "descriptor is nil")
	}
	if s.Ref != "" {
		if s.Type != "" || s.Properties != nil || s.Items != nil || s.Pattern != "" ||
			s.MaxLength != nil || s.AdditionalProperties != nil || len(s.Required) > 0 ||
			s.Minimum != nil || s.Maximum != nil || s.Enum != nil || s.Nullable {
			return NewInvalidDefinitionError(path, fmt.Sprintf("$ref %q cannot be combined with other keywords", s.Ref))
		}
		return nil
	}
	if !s.Type.Valid() {
		return NewInvalidDefinitionError(path, fmt.Sprintf("unknown type %q", s.Type))
	}
	if s.Type != TypeObject && (s.Properties != nil || s.AdditionalProperties != nil || len(s.Required) > 0) {
		return NewInvalidDefinitionError(path, "object keywords on non-object type "+string(s.Type))
	}
	if s.Type != TypeArray && s.Items != nil {
		return NewInvalidDefinitionError(path, "items on non-array type "+string(s.Type))
	}
	if s.Type != TypeString && (s.Pattern != "" || s.MaxLength != nil) {
		return NewInvalidDefinitionError(path, "string keywords on non-string type "+string(s.Type))
	}
	if (s.Minimum != nil || s.Maximum != nil) && s.Type != TypeInteger && s.Type != TypeNumber {
		return NewInvalidDefinitionError(path, "range keywords on non-numeric type "+string(s.Type))
	}
	if s.MaxLength != nil && *s.MaxLength < 0 {
		return NewInvalidDefinitionError(path, "maxLength must be non-negative")
	}
	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return NewInvalidDefinitionError(path, "pattern does not compile").WithCause(err)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return NewInvalidDefinitionError(path, fmt.Sprintf("required property %q is not declared", name))
		}
	}
	for _, name := range sortedKeys(s.Properties) {
		if err := s.Properties[name].check(joinPath(path, name)); err != nil {
			return err
		}
	}
	if s.Type == TypeArray {
		if s.Items == nil {
			return NewInvalidDefinitionError(path, "array type requires items")
		}
		if err := s.Items.check(path + "[]"); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
