package tradeschema

import (
	"context"
	"io"
)

// PricelistStore persists pricelist entries keyed by SKU. Implementations
// must refuse SKUs that IsValidSKU rejects.
type PricelistStore interface {
	Upsert(ctx context.Context, entry *PriceEntry) error
	Get(ctx context.Context, sku string) (*PriceEntry, error)
	List(ctx context.Context) ([]*PriceEntry, error)
	Delete(ctx context.Context, sku string) error
}

// DocumentStore reads and publishes raw JSON documents by URI
// (local paths, file:// or s3://).
type DocumentStore interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Publish(ctx context.Context, uri string, body io.Reader) error
}
