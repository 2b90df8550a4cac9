package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/catalog"
	"github.com/lychee-technology/tradeschema/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSKUIsWellFormed(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		sku := randomSKU(r)
		_, err := tradeschema.ParseSKU(sku)
		require.NoError(t, err, sku)
	}
}

func TestBuildPricelist(t *testing.T) {
	entries := buildPricelist(rand.New(rand.NewSource(1)), 250)
	require.Len(t, entries, 250)

	seen := make(map[string]bool)
	for _, e := range entries {
		assert.False(t, seen[e.SKU], "duplicate %s", e.SKU)
		seen[e.SKU] = true
		assert.True(t, e.Intent.Valid())
		if e.Intent == tradeschema.IntentBuy {
			assert.Nil(t, e.Sell)
		}
	}

	again := buildPricelist(rand.New(rand.NewSource(1)), 250)
	assert.Equal(t, entries, again, "a fixed seed reproduces the pricelist")
}

func TestChunkDocumentsValidate(t *testing.T) {
	entries := buildPricelist(rand.New(rand.NewSource(3)), 23)
	docs, err := chunkDocuments(entries, 10)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	v := internal.NewSchemaValidator(catalog.MustNewRegistry())
	total := 0
	for _, doc := range docs {
		violations, err := v.Validate(context.Background(), catalog.Pricelist, json.RawMessage(doc))
		require.NoError(t, err)
		assert.Empty(t, violations)

		var chunk []map[string]any
		require.NoError(t, json.Unmarshal(doc, &chunk))
		total += len(chunk)
	}
	assert.Equal(t, 23, total)
}

func TestDryRunIngest(t *testing.T) {
	entries := buildPricelist(rand.New(rand.NewSource(5)), 40)
	docs, err := chunkDocuments(entries, 40)
	require.NoError(t, err)

	ingestor := internal.NewPricelistIngestor(internal.NewSchemaValidator(catalog.MustNewRegistry()), discardWriter{})
	result, err := ingestor.Ingest(context.Background(), docs[0])
	require.NoError(t, err)
	assert.True(t, result.Valid())
	assert.Len(t, result.Accepted, 40)
}
