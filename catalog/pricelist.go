package catalog

import (
	"github.com/lychee-technology/tradeschema"
)

// ListingNote is the id of the per-side custom listing note.
const ListingNote = "listing-note"

func pricelistDefinitions() []*tradeschema.Schema {
	return []*tradeschema.Schema{
		define(Currencies, strict(props{
			"keys":  nonNegative(tradeschema.TypeInteger),
			"metal": nonNegative(tradeschema.TypeNumber),
		}, "keys", "metal")),
		define(ListingNote, strict(props{
			"buy":  tradeschema.NewNullable(tradeschema.TypeString),
			"sell": tradeschema.NewNullable(tradeschema.TypeString),
		})),
		define(PricelistAdd, strict(props{
			"sku":             ref(SKU),
			"enabled":         boolean(),
			"autoprice":       boolean(),
			"min":             nonNegative(tradeschema.TypeInteger),
			"max":             nonNegative(tradeschema.TypeInteger),
			"intent":          enum(tradeschema.TypeInteger, 0, 1, 2),
			"buy":             ref(Currencies),
			"sell":            ref(Currencies),
			"promoted":        enum(tradeschema.TypeInteger, 0, 1),
			"group":           tradeschema.NewNullable(tradeschema.TypeString),
			"note":            ref(ListingNote),
			"isPartialPriced": boolean(),
		}, "sku")),
		define(PricelistEntry, strict(props{
			"sku":             ref(SKU),
			"enabled":         boolean(),
			"autoprice":       boolean(),
			"min":             nonNegative(tradeschema.TypeInteger),
			"max":             nonNegative(tradeschema.TypeInteger),
			"intent":          enum(tradeschema.TypeInteger, 0, 1, 2),
			"buy":             ref(Currencies),
			"sell":            ref(Currencies),
			"promoted":        enum(tradeschema.TypeInteger, 0, 1),
			"group":           tradeschema.NewNullable(tradeschema.TypeString),
			"note":            ref(ListingNote),
			"isPartialPriced": boolean(),
			"time":            timestamp(),
		}, "sku", "enabled", "autoprice", "min", "max", "intent")),
		define(Pricelist, &tradeschema.Schema{
			Type:  tradeschema.TypeArray,
			Items: ref(PricelistEntry),
		}),
		define(Listing, strict(props{
			"sku":        ref(SKU),
			"intent":     enum(tradeschema.TypeInteger, 0, 1),
			"currencies": ref(Currencies),
			"details":    maxLength(DetailsMaxLength),
			"promoted":   enum(tradeschema.TypeInteger, 0, 1),
		}, "sku", "intent", "currencies")),
	}
}
