// Package catalog holds the compiled-in schema set for bot options and
// pricelist documents.
package catalog

import (
	"github.com/lychee-technology/tradeschema"
)

// Root ids callers validate documents against.
const (
	OptionsRoot    = "options"
	PricelistEntry = "pricelist-entry"
	Pricelist      = "pricelist"
	PricelistAdd   = "pricelist-add"
	Listing        = "listing"
	Currencies     = "tf2-currencies"
	SKU            = "sku"
)

// Definitions returns fresh copies of every catalog schema in registration
// order. Callers may modify the result freely.
func Definitions() []*tradeschema.Schema {
	defs := make([]*tradeschema.Schema, 0, 40)
	defs = append(defs, sharedDefinitions()...)
	defs = append(defs, optionsDefinitions()...)
	defs = append(defs, pricelistDefinitions()...)
	return defs
}

// Register adds every catalog schema to b.
func Register(b *tradeschema.RegistryBuilder) error {
	return b.RegisterAll(Definitions()...)
}

// NewRegistry builds a registry holding the catalog.
func NewRegistry(opts ...tradeschema.RegistryOption) (*tradeschema.Registry, error) {
	b := tradeschema.NewRegistryBuilder(opts...)
	if err := Register(b); err != nil {
		return nil, err
	}
	return b.Build()
}

// MustNewRegistry is like NewRegistry but panics on error. The catalog is
// static, so an error here is a programming mistake.
func MustNewRegistry() *tradeschema.Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

func define(id string, s *tradeschema.Schema) *tradeschema.Schema {
	s.ID = id
	return s
}

func strict(props map[string]*tradeschema.Schema, required ...string) *tradeschema.Schema {
	s := tradeschema.NewStrictObject(props)
	if len(required) > 0 {
		s.Required = required
	}
	return s
}

func ref(id string) *tradeschema.Schema { return tradeschema.NewRef(id) }

func boolean() *tradeschema.Schema { return tradeschema.NewType(tradeschema.TypeBoolean) }

func str() *tradeschema.Schema { return tradeschema.NewType(tradeschema.TypeString) }

func integer() *tradeschema.Schema { return tradeschema.NewType(tradeschema.TypeInteger) }

func number() *tradeschema.Schema { return tradeschema.NewType(tradeschema.TypeNumber) }

func pattern(expr string) *tradeschema.Schema {
	return &tradeschema.Schema{Type: tradeschema.TypeString, Pattern: expr}
}

func maxLength(n int) *tradeschema.Schema {
	return &tradeschema.Schema{Type: tradeschema.TypeString, MaxLength: &n}
}

// maxSafeInteger is the largest integer a float64 holds exactly. Integer
// fields are capped there so every accepted value fits an int64 field.
const maxSafeInteger = 1<<53 - 1

func nonNegative(t tradeschema.SchemaType) *tradeschema.Schema {
	s := &tradeschema.Schema{Type: t, Minimum: new(float64)}
	if t == tradeschema.TypeInteger {
		limit := float64(maxSafeInteger)
		s.Maximum = &limit
	}
	return s
}

func timestamp() *tradeschema.Schema {
	s := nonNegative(tradeschema.TypeInteger)
	s.Nullable = true
	return s
}

func enum(t tradeschema.SchemaType, values ...any) *tradeschema.Schema {
	return &tradeschema.Schema{Type: t, Enum: values}
}
