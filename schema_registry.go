package tradeschema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// SchemaRegistry provides schema lookup operations. Validation engines take
// this capability rather than a concrete registry.
type SchemaRegistry interface {
	// Resolve returns the definition registered under id.
	Resolve(id string) (*Schema, error)
	// ListSchemas returns all registered ids.
	ListSchemas() []string
}

// Snapshotter is implemented by registries that can hand out a stable view,
// so that a single validation pass never observes two different registries.
type Snapshotter interface {
	Snapshot() SchemaRegistry
}

// DuplicatePolicy decides what Register does with an id that is already present.
type DuplicatePolicy string

const (
	// DuplicateReject fails the second registration.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateShadow keeps the later definition and records the id.
	DuplicateShadow DuplicatePolicy = "shadow"
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	return p == DuplicateReject || p == DuplicateShadow
}

// RegistryOption configures a RegistryBuilder.
type RegistryOption func(*RegistryBuilder)

// WithDuplicatePolicy sets the duplicate id policy. Default is DuplicateReject.
func WithDuplicatePolicy(p DuplicatePolicy) RegistryOption {
	return func(b *RegistryBuilder) {
		b.policy = p
	}
}

// WithLenientReferences lets Build succeed with references that name no
// registered schema. They are reported when a document reaches them.
func WithLenientReferences() RegistryOption {
	return func(b *RegistryBuilder) {
		b.strictRefs = false
	}
}

// WithLogger sets the logger used for shadowing warnings.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(b *RegistryBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// RegistryBuilder collects schema definitions. It is not safe for
// concurrent use; Build produces the shareable Registry.
type RegistryBuilder struct {
	policy     DuplicatePolicy
	strictRefs bool
	logger     *zap.Logger
	order      []string
	defs       map[string]*Schema
	shadowed   []string
}

// NewRegistryBuilder creates an empty builder.
func NewRegistryBuilder(opts ...RegistryOption) *RegistryBuilder {
	b := &RegistryBuilder{
		policy:     DuplicateReject,
		strictRefs: true,
		logger:     zap.L(),
		defs:       make(map[string]*Schema),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register stores a copy of s under s.ID. References inside s are kept as
// identifiers; they may name schemas registered later.
func (b *RegistryBuilder) Register(s *Schema) error {
	if s == nil {
		return NewInvalidDefinitionError("", "cannot register nil schema")
	}
	if s.ID == "" {
		return NewInvalidDefinitionError("", "schema must have an id")
	}
	if err := s.Check(); err != nil {
		return fmt.Errorf("schema %q: %w", s.ID, err)
	}

	if _, exists := b.defs[s.ID]; exists {
		if b.policy != DuplicateShadow {
			return NewDuplicateIDError(s.ID)
		}
		b.logger.Warn("schema id registered twice, later definition shadows earlier",
			zap.String("id", s.ID))
		b.shadowed = append(b.shadowed, s.ID)
	} else {
		b.order = append(b.order, s.ID)
	}

	b.defs[s.ID] = s.Clone()
	return nil
}

// RegisterAll registers each schema in order, stopping at the first error.
func (b *RegistryBuilder) RegisterAll(schemas ...*Schema) error {
	for _, s := range schemas {
		if err := b.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Build checks the collected definitions and returns an immutable registry.
// The builder may keep being used afterwards; later registrations do not
// affect registries already built.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if !b.policy.Valid() {
		return nil, NewInvalidDefinitionError("", fmt.Sprintf("unknown duplicate policy %q", b.policy))
	}

	if b.strictRefs {
		if missing := b.missingRefs(); len(missing) > 0 {
			return nil, NewUnresolvedReferenceError(missing)
		}
	}
	if chain := b.aliasCycle(); chain != nil {
		return nil, NewReferenceCycleError(chain)
	}

	r := &Registry{
		order:    slices.Clone(b.order),
		defs:     make(map[string]*Schema, len(b.defs)),
		patterns: make(map[string]*regexp.Regexp),
		shadowed: slices.Clone(b.shadowed),
	}
	for id, def := range b.defs {
		r.defs[id] = def.Clone()
		var err error
		def.walk(func(n *Schema) {
			if n.Pattern == "" || err != nil {
				return
			}
			if _, ok := r.patterns[n.Pattern]; ok {
				return
			}
			var re *regexp.Regexp
			if re, err = regexp.Compile(n.Pattern); err == nil {
				r.patterns[n.Pattern] = re
			}
		})
		if err != nil {
			return nil, NewInvalidDefinitionError(id, "pattern does not compile").WithCause(err)
		}
	}

	fp, err := fingerprint(r.defs)
	if err != nil {
		return nil, err
	}
	r.fingerprint = fp
	return r, nil
}

func (b *RegistryBuilder) missingRefs() []string {
	seen := make(map[string]bool)
	var missing []string
	for _, id := range b.order {
		for _, ref := range b.defs[id].Refs() {
			if _, ok := b.defs[ref]; ok || seen[ref] {
				continue
			}
			seen[ref] = true
			missing = append(missing, ref)
		}
	}
	slices.Sort(missing)
	return missing
}

// aliasCycle finds a chain of definitions that are nothing but a $ref to the
// next one and loop back on themselves.
func (b *RegistryBuilder) aliasCycle() []string {
	for _, id := range b.order {
		visited := map[string]bool{id: true}
		chain := []string{id}
		cur := b.defs[id]
		for cur.IsRef() {
			next, ok := b.defs[cur.Ref]
			if !ok {
				break
			}
			chain = append(chain, cur.Ref)
			if visited[cur.Ref] {
				return chain
			}
			visited[cur.Ref] = true
			cur = next
		}
	}
	return nil
}

// Registry is an immutable set of schema definitions. It has no mutation
// methods and is safe for concurrent use.
type Registry struct {
	order       []string
	defs        map[string]*Schema
	patterns    map[string]*regexp.Regexp
	shadowed    []string
	fingerprint uint64
}

// Resolve returns a copy of the definition registered under id.
func (r *Registry) Resolve(id string) (*Schema, error) {
	def, ok := r.defs[id]
	if !ok {
		return nil, NewSchemaNotFoundError(id)
	}
	return def.Clone(), nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.defs[id]
	return ok
}

// ListSchemas returns ids in first-registration order.
func (r *Registry) ListSchemas() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	return len(r.order)
}

// Shadowed lists ids that were registered more than once under DuplicateShadow.
func (r *Registry) Shadowed() []string {
	return slices.Clone(r.shadowed)
}

// Pattern returns the compiled form of a pattern used by a registered schema.
func (r *Registry) Pattern(expr string) (*regexp.Regexp, bool) {
	re, ok := r.patterns[expr]
	return re, ok
}

// Fingerprint identifies the registry content. Registries built from equal
// definitions have equal fingerprints regardless of registration order.
func (r *Registry) Fingerprint() uint64 {
	return r.fingerprint
}

// Snapshot implements Snapshotter. A Registry never changes, so it is its
// own snapshot.
func (r *Registry) Snapshot() SchemaRegistry {
	return r
}

func fingerprint(defs map[string]*Schema) (uint64, error) {
	// map keys are marshaled in sorted order
	data, err := json.Marshal(defs)
	if err != nil {
		return 0, NewSchemaError(SchemaErrorTypeInvalidDefinition, "failed to encode definitions", err)
	}
	return xxhash.Sum64(data), nil
}
