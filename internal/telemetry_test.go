package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetryEmitters(t *testing.T) {
	rec := recordTelemetry(t)
	ctx := context.Background()

	EmitValidation(ctx, "options", 0, 1500*time.Microsecond)
	EmitValidation(ctx, "options", 3, time.Millisecond)
	EmitIngestion(ctx, "accepted", 4)
	EmitRegistrySwap(ctx, 0xabc, 12)

	require.Len(t, rec.events["schema_validation_latency_us"], 2)
	assert.Equal(t, map[string]string{"schema": "options", "valid": "true"}, rec.events["schema_validation_latency_us"][0])
	assert.Equal(t, map[string]string{"schema": "options", "valid": "false"}, rec.events["schema_validation_latency_us"][1])
	assert.Equal(t, []any{int64(1500), int64(1000)}, rec.values["schema_validation_latency_us"])

	assert.Equal(t, []any{int64(4)}, rec.values["pricelist_ingested_entries"])
	assert.Equal(t, map[string]string{"fingerprint": "0000000000000abc"}, rec.events["schema_registry_swap"][0])
	assert.Equal(t, []any{int64(12)}, rec.values["schema_registry_swap"])
}

func TestTelemetryDefaultIsNoop(t *testing.T) {
	RegisterTelemetryEmitter(nil)
	assert.NotPanics(t, func() {
		EmitValidation(context.Background(), "options", 0, time.Millisecond)
	})
}
