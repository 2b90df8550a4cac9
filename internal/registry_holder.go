package internal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lychee-technology/tradeschema"
	"go.uber.org/zap"
)

// RegistryHolder publishes the current schema registry to concurrent
// readers. A replacement is always a fully built registry swapped in
// atomically; readers holding a snapshot keep a consistent view.
type RegistryHolder struct {
	current atomic.Pointer[tradeschema.Registry]
	writeMu sync.Mutex // one reload at a time
}

// NewRegistryHolder creates a holder serving r.
func NewRegistryHolder(r *tradeschema.Registry) *RegistryHolder {
	h := &RegistryHolder{}
	h.current.Store(r)
	return h
}

// Load returns the registry currently served.
func (h *RegistryHolder) Load() *tradeschema.Registry {
	return h.current.Load()
}

// Swap installs next and returns the registry it replaced.
func (h *RegistryHolder) Swap(next *tradeschema.Registry) (*tradeschema.Registry, error) {
	if next == nil {
		return nil, errors.New("cannot install a nil registry")
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	prev := h.current.Swap(next)
	EmitRegistrySwap(context.Background(), next.Fingerprint(), next.Len())
	zap.S().Infow("schema registry installed", "schemas", next.Len(), "fingerprint", next.Fingerprint())
	return prev, nil
}

// Reload builds a new registry with build and installs it. The served
// registry is left untouched when build fails.
func (h *RegistryHolder) Reload(build func() (*tradeschema.Registry, error)) error {
	next, err := build()
	if err != nil {
		zap.S().Errorw("schema registry reload failed, keeping current registry", "error", err)
		return err
	}
	_, err = h.Swap(next)
	return err
}

// Snapshot implements tradeschema.Snapshotter.
func (h *RegistryHolder) Snapshot() tradeschema.SchemaRegistry {
	return h.current.Load()
}

// Resolve implements tradeschema.SchemaRegistry against the current registry.
func (h *RegistryHolder) Resolve(id string) (*tradeschema.Schema, error) {
	return h.current.Load().Resolve(id)
}

// ListSchemas implements tradeschema.SchemaRegistry against the current registry.
func (h *RegistryHolder) ListSchemas() []string {
	return h.current.Load().ListSchemas()
}

// Fingerprint returns the fingerprint of the current registry.
func (h *RegistryHolder) Fingerprint() uint64 {
	return h.current.Load().Fingerprint()
}
