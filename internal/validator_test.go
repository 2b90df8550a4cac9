package internal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaWithID(id string, s *tradeschema.Schema) *tradeschema.Schema {
	s.ID = id
	return s
}

func buildRegistry(t *testing.T, opts []tradeschema.RegistryOption, schemas ...*tradeschema.Schema) *tradeschema.Registry {
	t.Helper()
	b := tradeschema.NewRegistryBuilder(opts...)
	require.NoError(t, b.RegisterAll(schemas...))
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// autokeysFixture is a small composed registry: autokeys refers to
// only-enable, which is registered after it.
func autokeysFixture(t *testing.T) *tradeschema.Registry {
	return buildRegistry(t, nil,
		schemaWithID("autokeys", tradeschema.NewStrictObject(map[string]*tradeschema.Schema{
			"enable":        tradeschema.NewType(tradeschema.TypeBoolean),
			"minKeys":       {Type: tradeschema.TypeInteger, Minimum: floatPtr(0)},
			"enableBanking": tradeschema.NewRef("only-enable"),
			"accept":        tradeschema.NewArrayOf(tradeschema.TypeString),
		})),
		schemaWithID("only-enable", tradeschema.NewStrictObject(map[string]*tradeschema.Schema{
			"enable": tradeschema.NewType(tradeschema.TypeBoolean),
		})),
	)
}

func reasons(violations []tradeschema.Violation) []tradeschema.ReasonCode {
	out := make([]tradeschema.ReasonCode, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Reason)
	}
	return out
}

func paths(violations []tradeschema.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Path)
	}
	return out
}

func TestSchemaValidator_UnexpectedProperties(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		doc   string
		paths []string
	}{
		{name: "none", doc: `{"enable": true}`, paths: []string{}},
		{name: "one", doc: `{"enable": true, "bogus": 1}`, paths: []string{"bogus"}},
		{name: "two sorted", doc: `{"zeta": 1, "enable": true, "alpha": "x"}`, paths: []string{"alpha", "zeta"}},
		{name: "nested", doc: `{"enableBanking": {"enable": true, "extra": false}}`, paths: []string{"enableBanking.extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := v.Validate(ctx, "autokeys", []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.paths, paths(violations))
			for _, violation := range violations {
				assert.Equal(t, tradeschema.ReasonUnexpectedProperty, violation.Reason)
			}
		})
	}
}

func TestSchemaValidator_CollectsEveryViolation(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))

	doc := `{
		"enable": "yes",
		"minKeys": -1,
		"enableBanking": {"enable": 1},
		"accept": ["a", 2, "c"],
		"unknown": null
	}`
	violations, err := v.Validate(context.Background(), "autokeys", []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"unknown", "accept[1]", "enable", "enableBanking.enable", "minKeys"}, paths(violations))
	assert.Equal(t, []tradeschema.ReasonCode{
		tradeschema.ReasonUnexpectedProperty,
		tradeschema.ReasonTypeMismatch,
		tradeschema.ReasonTypeMismatch,
		tradeschema.ReasonTypeMismatch,
		tradeschema.ReasonOutOfRange,
	}, reasons(violations))

	assert.Equal(t, "only-enable", violations[3].SchemaID, "violation names the innermost schema")
	assert.Equal(t, "autokeys", violations[4].SchemaID)
}

func TestSchemaValidator_Required(t *testing.T) {
	registry := buildRegistry(t, nil, schemaWithID("pair", &tradeschema.Schema{
		Type: tradeschema.TypeObject,
		Properties: map[string]*tradeschema.Schema{
			"our":   tradeschema.NewType(tradeschema.TypeBoolean),
			"their": tradeschema.NewType(tradeschema.TypeBoolean),
		},
		Required: []string{"their", "our"},
	}))
	v := NewSchemaValidator(registry)

	violations, err := v.Validate(context.Background(), "pair", map[string]any{"extra": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"their", "our"}, paths(violations), "required violations follow declaration order")
	assert.Equal(t, []tradeschema.ReasonCode{tradeschema.ReasonMissingRequired, tradeschema.ReasonMissingRequired}, reasons(violations))
}

func TestSchemaValidator_Strings(t *testing.T) {
	registry := buildRegistry(t, nil,
		schemaWithID("webhook", &tradeschema.Schema{Type: tradeschema.TypeString, Pattern: catalog.WebhookURLPattern}),
		schemaWithID("short", &tradeschema.Schema{Type: tradeschema.TypeString, MaxLength: intPtr(3)}),
		schemaWithID("sort", &tradeschema.Schema{Type: tradeschema.TypeInteger, Enum: []any{0, 1, 2}}),
	)
	v := NewSchemaValidator(registry)
	ctx := context.Background()

	tests := []struct {
		schema string
		doc    any
		want   []tradeschema.ReasonCode
	}{
		{schema: "webhook", doc: "", want: nil},
		{schema: "webhook", doc: "https://discord.com/api/webhooks/123/token", want: nil},
		{schema: "webhook", doc: "see https://discordapp.com/api/webhooks/9/x here", want: nil},
		{schema: "webhook", doc: "https://example.com/hook", want: []tradeschema.ReasonCode{tradeschema.ReasonPatternMismatch}},
		{schema: "webhook", doc: 12, want: []tradeschema.ReasonCode{tradeschema.ReasonTypeMismatch}},
		{schema: "short", doc: "äöü", want: nil},
		{schema: "short", doc: "äöüß", want: []tradeschema.ReasonCode{tradeschema.ReasonLengthExceeded}},
		{schema: "sort", doc: 2, want: nil},
		{schema: "sort", doc: json.Number("1"), want: nil},
		{schema: "sort", doc: 3, want: []tradeschema.ReasonCode{tradeschema.ReasonEnumMismatch}},
		{schema: "sort", doc: 1.5, want: []tradeschema.ReasonCode{tradeschema.ReasonTypeMismatch}},
	}

	for _, tt := range tests {
		violations, err := v.Validate(ctx, tt.schema, tt.doc)
		require.NoError(t, err)
		if tt.want == nil {
			assert.Empty(t, violations, "%s %v", tt.schema, tt.doc)
			continue
		}
		assert.Equal(t, tt.want, reasons(violations), "%s %v", tt.schema, tt.doc)
	}
}

func TestSchemaValidator_ArraysAndNull(t *testing.T) {
	registry := buildRegistry(t, nil,
		schemaWithID("names", tradeschema.NewArrayOf(tradeschema.TypeString)),
		schemaWithID("group", tradeschema.NewNullable(tradeschema.TypeString)),
	)
	v := NewSchemaValidator(registry)
	ctx := context.Background()

	violations, err := v.Validate(ctx, "names", []byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = v.Validate(ctx, "names", []byte(`["a", null, 3]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"[1]", "[2]"}, paths(violations))

	violations, err = v.Validate(ctx, "group", []byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = v.Validate(ctx, "names", []byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, []tradeschema.ReasonCode{tradeschema.ReasonTypeMismatch}, reasons(violations))
}

func TestSchemaValidator_UnknownRoot(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))

	violations, err := v.Validate(context.Background(), "crafting", []byte(`{}`))
	require.Error(t, err)
	assert.Nil(t, violations)
	assert.True(t, tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeNotFound))
}

func TestSchemaValidator_InvalidJSON(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))

	for _, doc := range []string{`{"enable": `, `{} {}`, `{} }`, `{"enable": true}]`, `{} x`} {
		_, err := v.Validate(context.Background(), "autokeys", []byte(doc))
		require.Error(t, err, doc)
		var tradeErr *tradeschema.TradeError
		require.True(t, errors.As(err, &tradeErr))
		assert.Equal(t, tradeschema.ErrCodeInvalidJSON, tradeErr.Code)
	}
}

func TestSchemaValidator_TrailingWhitespace(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))

	violations, err := v.Validate(context.Background(), "autokeys", []byte("{\"enable\": true}\n\t "))
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestSchemaValidator_UnresolvedReference(t *testing.T) {
	registry := buildRegistry(t, []tradeschema.RegistryOption{tradeschema.WithLenientReferences()},
		schemaWithID("crafting", tradeschema.NewStrictObject(map[string]*tradeschema.Schema{
			"weapons": tradeschema.NewRef("crafting-weapons"),
			"metals":  tradeschema.NewRef("only-enable"),
			"enable":  tradeschema.NewType(tradeschema.TypeBoolean),
		})),
	)
	v := NewSchemaValidator(registry)
	ctx := context.Background()

	violations, err := v.Validate(ctx, "crafting", []byte(`{"enable": true}`))
	require.NoError(t, err, "references the document never reaches are not followed")
	assert.Empty(t, violations)

	violations, err = v.Validate(ctx, "crafting", []byte(`{"weapons": {}, "metals": {}, "enable": "x"}`))
	require.Error(t, err)
	assert.True(t, tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeIntegrity))

	var schemaErr *tradeschema.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"crafting-weapons", "only-enable"}, schemaErr.IDs)

	assert.Equal(t, []string{"enable", "metals", "weapons"}, paths(violations))
	assert.Equal(t, []tradeschema.ReasonCode{
		tradeschema.ReasonTypeMismatch,
		tradeschema.ReasonUnresolvedReference,
		tradeschema.ReasonUnresolvedReference,
	}, reasons(violations))
}

func TestSchemaValidator_MaxDepth(t *testing.T) {
	registry := buildRegistry(t, nil, schemaWithID("node", &tradeschema.Schema{
		Type:       tradeschema.TypeObject,
		Properties: map[string]*tradeschema.Schema{"child": tradeschema.NewRef("node")},
	}))
	v := NewSchemaValidator(registry, WithMaxDepth(3))
	ctx := context.Background()

	violations, err := v.Validate(ctx, "node", []byte(`{"child": {"child": {}}}`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	_, err = v.Validate(ctx, "node", []byte(`{"child": {"child": {"child": {"child": {}}}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 3 levels")
}

func TestSchemaValidator_Idempotent(t *testing.T) {
	first := catalog.MustNewRegistry()
	second := catalog.MustNewRegistry()
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	doc := []byte(`{"sku": "5021;6", "enabled": "yes", "intent": 7, "buy": {"keys": 0}, "bogus": 1}`)
	ctx := context.Background()

	v1 := NewSchemaValidator(first)
	v2 := NewSchemaValidator(second)

	a, err := v1.Validate(ctx, catalog.PricelistEntry, doc)
	require.NoError(t, err)
	b, err := v1.Validate(ctx, catalog.PricelistEntry, doc)
	require.NoError(t, err)
	c, err := v2.Validate(ctx, catalog.PricelistEntry, doc)
	require.NoError(t, err)

	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, first.Fingerprint(), v1.registry.(*tradeschema.Registry).Fingerprint(), "validation does not mutate the registry")
}

func TestSchemaValidator_StructDocuments(t *testing.T) {
	v := NewSchemaValidator(catalog.MustNewRegistry())
	group := "keys"
	ts := int64(1700000000)

	entry := tradeschema.PriceEntry{
		SKU:       "5021;6",
		Enabled:   true,
		Autoprice: false,
		Min:       0,
		Max:       5,
		Intent:    tradeschema.IntentBank,
		Buy:       &tradeschema.Currencies{Keys: 0, Metal: 60.11},
		Sell:      &tradeschema.Currencies{Keys: 0, Metal: 60.22},
		Group:     &group,
		Time:      &ts,
	}

	violations, err := v.Validate(context.Background(), catalog.PricelistEntry, entry)
	require.NoError(t, err)
	assert.Empty(t, violations)

	entry.SKU = "5021;16"
	violations, err = v.Validate(context.Background(), catalog.PricelistEntry, &entry)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "sku", violations[0].Path)
	assert.Equal(t, tradeschema.ReasonPatternMismatch, violations[0].Reason)
	assert.Equal(t, catalog.SKU, violations[0].SchemaID)
}

func TestSchemaValidator_ValidateAll(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))
	ctx := context.Background()

	errs, err := v.ValidateAll(ctx, "autokeys", []byte(`{"enable": true}`))
	require.NoError(t, err)
	assert.Nil(t, errs)

	errs, err = v.ValidateAll(ctx, "autokeys", []byte(`{"a": 1, "b": 2, "enable": 0}`))
	require.NoError(t, err)
	require.NotNil(t, errs)
	assert.Equal(t, "autokeys", errs.SchemaID)
	assert.Equal(t, 2, errs.Summary()[tradeschema.ReasonUnexpectedProperty])
	assert.Equal(t, 1, errs.Summary()[tradeschema.ReasonTypeMismatch])
}

func TestSchemaValidator_ConcurrentWithReload(t *testing.T) {
	holder := NewRegistryHolder(catalog.MustNewRegistry())
	v := NewSchemaValidator(holder)
	doc := []byte(`{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2}`)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				violations, err := v.Validate(context.Background(), catalog.PricelistEntry, doc)
				if err != nil {
					errs <- err
					return
				}
				if len(violations) != 0 {
					errs <- errors.New(strings.Join(paths(violations), ","))
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, holder.Reload(func() (*tradeschema.Registry, error) {
			return catalog.NewRegistry()
		}))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSchemaValidator_CanceledContext(t *testing.T) {
	v := NewSchemaValidator(autokeysFixture(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Validate(ctx, "autokeys", []byte(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
}
