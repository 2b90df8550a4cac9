package internal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// telemetry.go
// Lightweight telemetry hook layer used by the validator, the registry holder
// and the pricelist ingestor. Callers may register a real metrics emitter
// (or a test stub) via RegisterTelemetryEmitter. By default the emitter is a no-op.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emit(ctx context.Context, name string, labels map[string]string, value any) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, name, labels, value)
}

// EmitValidation records the latency (microseconds) of one document check.
// name: "schema_validation_latency_us" with labels {"schema": "<root id>", "valid": "true|false"}
func EmitValidation(ctx context.Context, schemaID string, violations int, elapsed time.Duration) {
	labels := map[string]string{
		"schema": schemaID,
		"valid":  fmt.Sprintf("%t", violations == 0),
	}
	emit(ctx, "schema_validation_latency_us", labels, elapsed.Microseconds())
}

// EmitIngestion records how many pricelist entries a batch wrote or rejected.
// name: "pricelist_ingested_entries" with label {"outcome": "accepted|rejected"}
func EmitIngestion(ctx context.Context, outcome string, entries int) {
	emit(ctx, "pricelist_ingested_entries", map[string]string{"outcome": outcome}, int64(entries))
}

// EmitRegistrySwap records the number of schemas in a registry that was just installed.
// name: "schema_registry_swap" with label {"fingerprint": "<hex>"}
func EmitRegistrySwap(ctx context.Context, fingerprint uint64, schemas int) {
	labels := map[string]string{"fingerprint": fmt.Sprintf("%016x", fingerprint)}
	emit(ctx, "schema_registry_swap", labels, int64(schemas))
}
