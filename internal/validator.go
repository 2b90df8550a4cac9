package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lychee-technology/tradeschema"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds nesting for recursive schemas.
const DefaultMaxDepth = 64

type patternSource interface {
	Pattern(expr string) (*regexp.Regexp, bool)
}

// SchemaValidator checks documents against schemas held by a registry.
// It resolves $ref lazily, one lookup per id per call, and never mutates
// the registry. Safe for concurrent use.
type SchemaValidator struct {
	registry tradeschema.SchemaRegistry
	maxDepth int
	patterns sync.Map // expr -> *regexp.Regexp
}

// ValidatorOption configures a SchemaValidator.
type ValidatorOption func(*SchemaValidator)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) ValidatorOption {
	return func(v *SchemaValidator) {
		if depth > 0 {
			v.maxDepth = depth
		}
	}
}

// NewSchemaValidator creates a validator over registry.
func NewSchemaValidator(registry tradeschema.SchemaRegistry, opts ...ValidatorOption) *SchemaValidator {
	v := &SchemaValidator{
		registry: registry,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks doc against the schema registered under rootID and returns
// every violation found, in a deterministic order. An empty result means the
// document is valid.
//
// The error is non-nil when the check could not be carried out as asked: the
// root id is unknown (no violations are returned), or the registry cannot
// follow a reference reached by the document (the violations found so far are
// returned along with a SchemaErrorTypeIntegrity error).
func (v *SchemaValidator) Validate(ctx context.Context, rootID string, doc any) ([]tradeschema.Violation, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	registry := v.registry
	if s, ok := registry.(tradeschema.Snapshotter); ok {
		registry = s.Snapshot()
	}

	root, err := registry.Resolve(rootID)
	if err != nil {
		return nil, err
	}

	value, err := normalizeDocument(doc)
	if err != nil {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeInvalidJSON,
			"document is not valid JSON").WithCause(err)
	}

	p := &validationPass{
		validator: v,
		registry:  registry,
		resolved:  map[string]*tradeschema.Schema{rootID: root},
		missing:   make(map[string]struct{}),
	}
	if ps, ok := registry.(patternSource); ok {
		p.patterns = ps
	}
	p.validate(root, value, "", rootID, 0)

	EmitValidation(ctx, rootID, len(p.violations), time.Since(start))

	if p.err != nil {
		return p.violations, p.err
	}
	if len(p.missing) > 0 {
		ids := make([]string, 0, len(p.missing))
		for id := range p.missing {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		zap.S().Errorw("schema registry cannot resolve references", "root", rootID, "missing", ids)
		return p.violations, tradeschema.NewSchemaIntegrityError(ids)
	}
	return p.violations, nil
}

// ValidateAll is Validate returning a ValidationErrors aggregate, nil when the
// document is valid.
func (v *SchemaValidator) ValidateAll(ctx context.Context, rootID string, doc any) (*tradeschema.ValidationErrors, error) {
	violations, err := v.Validate(ctx, rootID, doc)
	if len(violations) == 0 {
		return nil, err
	}
	return tradeschema.NewValidationErrors(rootID, violations), err
}

func (v *SchemaValidator) compile(expr string) (*regexp.Regexp, error) {
	if re, ok := v.patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	actual, _ := v.patterns.LoadOrStore(expr, re)
	return actual.(*regexp.Regexp), nil
}

type validationPass struct {
	validator  *SchemaValidator
	registry   tradeschema.SchemaRegistry
	patterns   patternSource
	resolved   map[string]*tradeschema.Schema
	missing    map[string]struct{}
	violations []tradeschema.Violation
	err        error
}

func (p *validationPass) report(path, schemaID string, reason tradeschema.ReasonCode, format string, args ...any) {
	violation := tradeschema.NewViolation(path, reason, format, args...)
	violation.SchemaID = schemaID
	p.violations = append(p.violations, violation)
}

func (p *validationPass) lookup(id string) (*tradeschema.Schema, bool) {
	if s, ok := p.resolved[id]; ok {
		return s, s != nil
	}
	s, err := p.registry.Resolve(id)
	if err != nil {
		p.resolved[id] = nil
		return nil, false
	}
	p.resolved[id] = s
	return s, true
}

// follow resolves a chain of references down to a concrete node.
func (p *validationPass) follow(node *tradeschema.Schema, path, schemaID string) (*tradeschema.Schema, string, bool) {
	var seen []string
	for node.IsRef() {
		id := node.Ref
		if slices.Contains(seen, id) {
			if p.err == nil {
				p.err = tradeschema.NewReferenceCycleError(append(seen, id))
			}
			return nil, "", false
		}
		seen = append(seen, id)

		target, ok := p.lookup(id)
		if !ok {
			p.missing[id] = struct{}{}
			p.report(path, schemaID, tradeschema.ReasonUnresolvedReference, "$ref %q does not name a registered schema", id)
			return nil, "", false
		}
		node, schemaID = target, id
	}
	return node, schemaID, true
}

func (p *validationPass) validate(node *tradeschema.Schema, value any, path, schemaID string, depth int) {
	if p.err != nil {
		return
	}
	if depth > p.validator.maxDepth {
		p.err = tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeValidationFailed,
			fmt.Sprintf("document nesting exceeds %d levels", p.validator.maxDepth)).WithField(path)
		return
	}

	node, schemaID, ok := p.follow(node, path, schemaID)
	if !ok {
		return
	}
	if node == nil {
		p.err = tradeschema.NewInvalidDefinitionError(path, fmt.Sprintf("schema %q has an empty descriptor", schemaID))
		return
	}

	if value == nil {
		if !node.Nullable {
			p.report(path, schemaID, tradeschema.ReasonTypeMismatch, "expected %s, got null", node.Type)
		}
		return
	}

	switch node.Type {
	case tradeschema.TypeObject:
		p.validateObject(node, value, path, schemaID, depth)
	case tradeschema.TypeArray:
		items, ok := value.([]any)
		if !ok {
			p.report(path, schemaID, tradeschema.ReasonTypeMismatch, "expected array, got %s", jsonKind(value))
			return
		}
		for i, item := range items {
			p.validate(node.Items, item, tradeschema.IndexPath(path, i), schemaID, depth+1)
		}
	case tradeschema.TypeString:
		s, ok := value.(string)
		if !ok {
			p.report(path, schemaID, tradeschema.ReasonTypeMismatch, "expected string, got %s", jsonKind(value))
			return
		}
		p.validateString(node, s, path, schemaID)
	case tradeschema.TypeBoolean:
		if _, ok := value.(bool); !ok {
			p.report(path, schemaID, tradeschema.ReasonTypeMismatch, "expected boolean, got %s", jsonKind(value))
			return
		}
		p.validateEnum(node, value, path, schemaID)
	case tradeschema.TypeInteger, tradeschema.TypeNumber:
		f, ok := toFloat(value)
		if !ok || (node.Type == tradeschema.TypeInteger && !isIntegral(value, f)) {
			p.report(path, schemaID, tradeschema.ReasonTypeMismatch, "expected %s, got %s", node.Type, jsonKind(value))
			return
		}
		if node.Minimum != nil && f < *node.Minimum {
			p.report(path, schemaID, tradeschema.ReasonOutOfRange, "%v is less than minimum %v", f, *node.Minimum)
		}
		if node.Maximum != nil && f > *node.Maximum {
			p.report(path, schemaID, tradeschema.ReasonOutOfRange, "%v is greater than maximum %v", f, *node.Maximum)
		}
		p.validateEnum(node, value, path, schemaID)
	default:
		if p.err == nil {
			p.err = tradeschema.NewInvalidDefinitionError(path, fmt.Sprintf("schema %q has unknown type %q", schemaID, node.Type))
		}
	}
}

func (p *validationPass) validateObject(node *tradeschema.Schema, value any, path, schemaID string, depth int) {
	obj, ok := value.(map[string]any)
	if !ok {
		p.report(path, schemaID, tradeschema.ReasonTypeMismatch, "expected object, got %s", jsonKind(value))
		return
	}

	for _, name := range node.Required {
		if _, present := obj[name]; !present {
			p.report(tradeschema.JoinPath(path, name), schemaID, tradeschema.ReasonMissingRequired, "required property %q is missing", name)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	if !node.AllowsAdditional() {
		for _, k := range keys {
			if _, declared := node.Properties[k]; !declared {
				p.report(tradeschema.JoinPath(path, k), schemaID, tradeschema.ReasonUnexpectedProperty, "property %q is not allowed", k)
			}
		}
	}

	for _, k := range keys {
		prop, declared := node.Properties[k]
		if !declared {
			continue
		}
		p.validate(prop, obj[k], tradeschema.JoinPath(path, k), schemaID, depth+1)
	}
}

func (p *validationPass) validateString(node *tradeschema.Schema, s, path, schemaID string) {
	if node.MaxLength != nil {
		if n := utf8.RuneCountInString(s); n > *node.MaxLength {
			p.report(path, schemaID, tradeschema.ReasonLengthExceeded, "length %d exceeds maxLength %d", n, *node.MaxLength)
		}
	}
	if node.Pattern != "" {
		re, err := p.pattern(node.Pattern)
		if err != nil {
			if p.err == nil {
				p.err = tradeschema.NewInvalidDefinitionError(path, "pattern does not compile").WithCause(err)
			}
			return
		}
		if !re.MatchString(s) {
			p.report(path, schemaID, tradeschema.ReasonPatternMismatch, "%q does not match pattern %q", s, node.Pattern)
		}
	}
	p.validateEnum(node, s, path, schemaID)
}

func (p *validationPass) pattern(expr string) (*regexp.Regexp, error) {
	if p.patterns != nil {
		if re, ok := p.patterns.Pattern(expr); ok {
			return re, nil
		}
	}
	return p.validator.compile(expr)
}

func (p *validationPass) validateEnum(node *tradeschema.Schema, value any, path, schemaID string) {
	if len(node.Enum) == 0 {
		return
	}
	for _, allowed := range node.Enum {
		if scalarEqual(allowed, value) {
			return
		}
	}
	p.report(path, schemaID, tradeschema.ReasonEnumMismatch, "%v is not one of %v", value, node.Enum)
}

func scalarEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func isIntegral(v any, f float64) bool {
	if n, ok := v.(json.Number); ok {
		if _, err := n.Int64(); err == nil {
			return true
		}
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f) && math.Trunc(f) == f
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if f, ok := toFloat(v); ok {
		if isIntegral(v, f) {
			return "integer"
		}
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// normalizeDocument turns doc into the generic JSON tree the validator walks.
// Raw JSON is decoded with UseNumber so integers keep their exact form.
func normalizeDocument(doc any) (any, error) {
	switch d := doc.(type) {
	case json.RawMessage:
		return decodeJSON(d)
	case []byte:
		return decodeJSON(d)
	}
	if isJSONTree(doc) {
		return doc, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func isJSONTree(v any) bool {
	switch t := v.(type) {
	case nil, bool, string, json.Number:
		return true
	case map[string]any:
		for _, e := range t {
			if !isJSONTree(e) {
				return false
			}
		}
		return true
	case []any:
		for _, e := range t {
			if !isJSONTree(e) {
				return false
			}
		}
		return true
	}
	_, ok := toFloat(v)
	return ok
}
