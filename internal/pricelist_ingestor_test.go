package internal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	single  []*tradeschema.PriceEntry
	batches [][]*tradeschema.PriceEntry
	err     error
}

func (w *recordingWriter) Upsert(ctx context.Context, entry *tradeschema.PriceEntry) error {
	if w.err != nil {
		return w.err
	}
	w.single = append(w.single, entry)
	return nil
}

func (w *recordingWriter) UpsertMany(ctx context.Context, entries []*tradeschema.PriceEntry) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, entries)
	return nil
}

type telemetryRecorder struct {
	mu     sync.Mutex
	events map[string][]map[string]string
	values map[string][]any
}

func recordTelemetry(t *testing.T) *telemetryRecorder {
	rec := &telemetryRecorder{
		events: make(map[string][]map[string]string),
		values: make(map[string][]any),
	}
	RegisterTelemetryEmitter(func(ctx context.Context, name string, labels map[string]string, value any) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events[name] = append(rec.events[name], labels)
		rec.values[name] = append(rec.values[name], value)
	})
	t.Cleanup(func() { RegisterTelemetryEmitter(nil) })
	return rec
}

func newTestIngestor(w PricelistWriter) *PricelistIngestor {
	return NewPricelistIngestor(NewSchemaValidator(catalog.MustNewRegistry()), w)
}

func TestPricelistIngestor_SingleEntry(t *testing.T) {
	rec := recordTelemetry(t)
	w := &recordingWriter{}
	ingestor := newTestIngestor(w)

	doc := `{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2,
		"buy": {"keys": 0, "metal": 55.11}, "sell": {"keys": 0, "metal": 55.22}, "group": null, "time": 1700000000}`
	result, err := ingestor.Ingest(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.True(t, result.Valid())
	assert.NotEqual(t, uuid.Nil, result.BatchID)
	assert.Equal(t, uuid.Version(7), result.BatchID.Version())
	assert.Equal(t, []string{"5021;6"}, result.Accepted)

	require.Len(t, w.single, 1)
	assert.Equal(t, tradeschema.IntentBank, w.single[0].Intent)
	assert.InDelta(t, 55.22, w.single[0].Sell.Metal, 1e-9)
	assert.Empty(t, w.batches)

	assert.Equal(t, []map[string]string{{"outcome": "accepted"}}, rec.events["pricelist_ingested_entries"])
	assert.Equal(t, []any{int64(1)}, rec.values["pricelist_ingested_entries"])
}

func TestPricelistIngestor_Batch(t *testing.T) {
	w := &recordingWriter{}
	ingestor := newTestIngestor(w)

	doc := `[
		{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2},
		{"sku": "200;11;australium;kt-3", "enabled": false, "autoprice": false, "min": 0, "max": 1, "intent": 1}
	]`
	result, err := ingestor.Ingest(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.True(t, result.Valid())
	assert.Equal(t, []string{"5021;6", "200;11;australium;kt-3"}, result.Accepted)
	require.Len(t, w.batches, 1)
	assert.Len(t, w.batches[0], 2)
	assert.Empty(t, w.single)
}

func TestPricelistIngestor_IntegerFields(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		accepted bool
		paths    []string
		reasons  []tradeschema.ReasonCode
	}{
		{
			name:     "integral float",
			doc:      `{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1.0, "intent": 2.0, "time": 17e8}`,
			accepted: true,
		},
		{
			name:    "beyond int64",
			doc:     `{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1e20, "intent": 2}`,
			paths:   []string{"max"},
			reasons: []tradeschema.ReasonCode{tradeschema.ReasonOutOfRange},
		},
		{
			name:    "beyond int64 in batch",
			doc:     `[{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2, "time": 1e20}]`,
			paths:   []string{"[0].time"},
			reasons: []tradeschema.ReasonCode{tradeschema.ReasonOutOfRange},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			result, err := newTestIngestor(w).Ingest(context.Background(), []byte(tt.doc))
			require.NoError(t, err)

			if !tt.accepted {
				assert.False(t, result.Valid())
				assert.Equal(t, tt.paths, paths(result.Violations))
				assert.Equal(t, tt.reasons, reasons(result.Violations))
				assert.Empty(t, w.single)
				assert.Empty(t, w.batches)
				return
			}
			assert.True(t, result.Valid(), "%v", result.Violations)
			require.Len(t, w.single, 1)
			assert.Equal(t, 1, w.single[0].Max)
			assert.Equal(t, tradeschema.IntentBank, w.single[0].Intent)
			require.NotNil(t, w.single[0].Time)
			assert.Equal(t, int64(1700000000), *w.single[0].Time)
		})
	}
}

func TestDecodeEntries_FieldOverflow(t *testing.T) {
	entries, violations, err := decodeEntries([]byte(`[{"sku": "5021;6", "promoted": 1e300}]`), true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0])
	require.Len(t, violations, 1)
	assert.Equal(t, "[0].promoted", violations[0].Path)
	assert.Equal(t, tradeschema.ReasonTypeMismatch, violations[0].Reason)
}

func TestPricelistIngestor_RejectsWithoutWriting(t *testing.T) {
	rec := recordTelemetry(t)
	w := &recordingWriter{}
	ingestor := newTestIngestor(w)

	doc := `[
		{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2},
		{"sku": "5021;16", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2, "price": 3}
	]`
	result, err := ingestor.Ingest(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.False(t, result.Valid())
	assert.Empty(t, result.Accepted)
	assert.Equal(t, []string{"[1].price", "[1].sku"}, paths(result.Violations))
	assert.Equal(t, []tradeschema.ReasonCode{
		tradeschema.ReasonUnexpectedProperty,
		tradeschema.ReasonPatternMismatch,
	}, reasons(result.Violations))

	assert.Empty(t, w.single)
	assert.Empty(t, w.batches)
	assert.Equal(t, []map[string]string{{"outcome": "rejected"}}, rec.events["pricelist_ingested_entries"])
}

func TestPricelistIngestor_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestIngestor(&recordingWriter{}).Ingest(ctx, []byte(`{"sku":`))
	require.Error(t, err)
	var tradeErr *tradeschema.TradeError
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, tradeschema.ErrCodeInvalidJSON, tradeErr.Code)

	storageErr := tradeschema.NewStorageError("down", errors.New("connection refused"))
	_, err = newTestIngestor(&recordingWriter{err: storageErr}).Ingest(ctx,
		[]byte(`{"sku": "5021;6", "enabled": true, "autoprice": true, "min": 0, "max": 1, "intent": 2}`))
	assert.ErrorIs(t, err, storageErr)
}
