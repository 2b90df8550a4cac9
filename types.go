package tradeschema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Currencies is a price in keys and refined metal. Arithmetic on prices is
// not provided here.
type Currencies struct {
	Keys  float64 `json:"keys"`
	Metal float64 `json:"metal"`
}

// Intent is what the bot does with an item.
type Intent int

const (
	IntentBuy  Intent = 0
	IntentSell Intent = 1
	IntentBank Intent = 2
)

func (i Intent) String() string {
	switch i {
	case IntentBuy:
		return "buy"
	case IntentSell:
		return "sell"
	case IntentBank:
		return "bank"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	return i >= IntentBuy && i <= IntentBank
}

// ListingNote holds custom listing notes for each side.
type ListingNote struct {
	Buy  *string `json:"buy"`
	Sell *string `json:"sell"`
}

// PriceEntry is one pricelist row, keyed by SKU.
type PriceEntry struct {
	SKU             string       `json:"sku"`
	Enabled         bool         `json:"enabled"`
	Autoprice       bool         `json:"autoprice"`
	Min             int          `json:"min"`
	Max             int          `json:"max"`
	Intent          Intent       `json:"intent"`
	Buy             *Currencies  `json:"buy,omitempty"`
	Sell            *Currencies  `json:"sell,omitempty"`
	Promoted        int          `json:"promoted"` // 0 or 1
	Group           *string      `json:"group"`
	Note            *ListingNote `json:"note,omitempty"`
	IsPartialPriced bool         `json:"isPartialPriced"`
	Time            *int64       `json:"time"` // unix seconds of the last price update
}

// UpdatedAt returns the price timestamp, or the zero time when unset.
func (e *PriceEntry) UpdatedAt() time.Time {
	if e.Time == nil {
		return time.Time{}
	}
	return time.Unix(*e.Time, 0).UTC()
}

// IngestResult summarizes one pricelist ingestion call.
type IngestResult struct {
	BatchID    uuid.UUID   `json:"batchId"`
	Accepted   []string    `json:"accepted"` // SKUs written
	Violations []Violation `json:"violations,omitempty"`
}

// Valid reports whether nothing in the batch was rejected.
func (r *IngestResult) Valid() bool {
	return len(r.Violations) == 0
}

// ValidationReport is the outcome of validating one document.
type ValidationReport struct {
	ID          uuid.UUID   `json:"id"`
	SchemaID    string      `json:"schema"`
	Valid       bool        `json:"valid"`
	Fingerprint string      `json:"fingerprint,omitempty"` // registry fingerprint, hex
	Violations  []Violation `json:"violations"`
	CheckedAt   time.Time   `json:"checkedAt"`
}

// NewValidationReport builds a report with a fresh time-ordered id.
func NewValidationReport(schemaID string, violations []Violation) *ValidationReport {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if violations == nil {
		violations = []Violation{}
	}
	return &ValidationReport{
		ID:         id,
		SchemaID:   schemaID,
		Valid:      len(violations) == 0,
		Violations: violations,
		CheckedAt:  time.Now().UTC(),
	}
}
