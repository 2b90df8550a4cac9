package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/catalog"
	"go.uber.org/zap"
)

// PricelistWriter is the part of the pricelist store the ingestor needs.
type PricelistWriter interface {
	Upsert(ctx context.Context, entry *tradeschema.PriceEntry) error
	UpsertMany(ctx context.Context, entries []*tradeschema.PriceEntry) error
}

// PricelistIngestor validates raw pricelist documents and writes the accepted
// entries. A document with any violation writes nothing.
type PricelistIngestor struct {
	validator *SchemaValidator
	store     PricelistWriter
}

// NewPricelistIngestor creates an ingestor.
func NewPricelistIngestor(validator *SchemaValidator, store PricelistWriter) *PricelistIngestor {
	return &PricelistIngestor{validator: validator, store: store}
}

// Ingest accepts either one pricelist entry or an array of them. Violations
// are reported in the result with a nil error; the error is reserved for
// malformed JSON, registry faults and storage failures.
func (i *PricelistIngestor) Ingest(ctx context.Context, raw []byte) (*tradeschema.IngestResult, error) {
	batchID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch id: %w", err)
	}
	result := &tradeschema.IngestResult{BatchID: batchID, Accepted: []string{}}

	trimmed := bytes.TrimSpace(raw)
	batch := len(trimmed) > 0 && trimmed[0] == '['
	rootID := catalog.PricelistEntry
	if batch {
		rootID = catalog.Pricelist
	}

	violations, err := i.validator.Validate(ctx, rootID, json.RawMessage(trimmed))
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		result.Violations = violations
		EmitIngestion(ctx, "rejected", 0)
		zap.S().Infow("pricelist document rejected", "batchId", batchID, "schema", rootID, "violations", len(violations))
		return result, nil
	}

	entries, decodeViolations, err := decodeEntries(trimmed, batch)
	if err != nil {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeInvalidJSON,
			"pricelist document does not decode").WithCause(err)
	}
	result.Violations = append(result.Violations, decodeViolations...)

	for idx, entry := range entries {
		if entry == nil {
			continue
		}
		if _, err := tradeschema.ParseSKU(entry.SKU); err != nil {
			path := "sku"
			if batch {
				path = tradeschema.JoinPath(tradeschema.IndexPath("", idx), "sku")
			}
			result.Violations = append(result.Violations, tradeschema.NewViolation(path, tradeschema.ReasonPatternMismatch, "%v", err))
		}
	}
	if len(result.Violations) > 0 {
		EmitIngestion(ctx, "rejected", 0)
		return result, nil
	}

	if batch {
		err = i.store.UpsertMany(ctx, entries)
	} else {
		err = i.store.Upsert(ctx, entries[0])
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		result.Accepted = append(result.Accepted, entry.SKU)
	}
	EmitIngestion(ctx, "accepted", len(entries))
	zap.S().Infow("pricelist document ingested", "batchId", batchID, "entries", len(entries))
	return result, nil
}

// decodeEntries decodes a validated document into entries. Values the
// struct fields cannot hold are reported as violations at their path; a nil
// entry marks an element that did not decode.
func decodeEntries(data []byte, batch bool) ([]*tradeschema.PriceEntry, []tradeschema.Violation, error) {
	if !batch {
		entry, violation, err := decodeEntry(data, "")
		if err != nil {
			return nil, nil, err
		}
		if violation != nil {
			return []*tradeschema.PriceEntry{nil}, []tradeschema.Violation{*violation}, nil
		}
		return []*tradeschema.PriceEntry{entry}, nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, err
	}
	entries := make([]*tradeschema.PriceEntry, len(raws))
	var violations []tradeschema.Violation
	for idx, raw := range raws {
		entry, violation, err := decodeEntry(raw, tradeschema.IndexPath("", idx))
		if err != nil {
			return nil, nil, err
		}
		if violation != nil {
			violations = append(violations, *violation)
			continue
		}
		entries[idx] = entry
	}
	return entries, violations, nil
}

func decodeEntry(raw []byte, path string) (*tradeschema.PriceEntry, *tradeschema.Violation, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, nil, err
	}
	canonical, err := json.Marshal(integralNumbers(tree))
	if err != nil {
		return nil, nil, err
	}

	var entry tradeschema.PriceEntry
	if err := json.Unmarshal(canonical, &entry); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			v := tradeschema.NewViolation(tradeschema.JoinPath(path, typeErr.Field), tradeschema.ReasonTypeMismatch,
				"%s does not fit %s", typeErr.Value, typeErr.Type)
			return nil, &v, nil
		}
		return nil, nil, err
	}
	return &entry, nil, nil
}

// integralNumbers rewrites integral numbers such as 1.0 or 2e3 in plain
// integer form so they decode into integer fields.
func integralNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		f, err := t.Float64()
		if err == nil && math.Trunc(f) == f && math.Abs(f) <= math.MaxInt64/2 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = integralNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = integralNumbers(e)
		}
		return t
	}
	return v
}
