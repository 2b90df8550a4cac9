package catalog

import (
	"github.com/lychee-technology/tradeschema"
)

// Shared building blocks referenced across the options and pricelist trees.
const (
	OnlyEnable     = "only-enable"
	OnlyAllow      = "only-allow"
	OurTheir       = "our-their"
	ArrayString    = "array-string"
	StringURL      = "string-url"
	ArrayStringURL = "array-string-url"
)

// WebhookURLPattern accepts an empty string or anything containing a Discord
// webhook URL. Only the first alternative is anchored.
const WebhookURLPattern = `^$|https://discord(app)?\.com/api/webhooks/\d+/.+`

func sharedDefinitions() []*tradeschema.Schema {
	return []*tradeschema.Schema{
		define(OnlyEnable, strict(map[string]*tradeschema.Schema{
			"enable": boolean(),
		})),
		define(OnlyAllow, strict(map[string]*tradeschema.Schema{
			"allow": boolean(),
		})),
		define(OurTheir, strict(map[string]*tradeschema.Schema{
			"our":   boolean(),
			"their": boolean(),
		})),
		define(ArrayString, tradeschema.NewArrayOf(tradeschema.TypeString)),
		define(StringURL, pattern(WebhookURLPattern)),
		define(ArrayStringURL, &tradeschema.Schema{
			Type:  tradeschema.TypeArray,
			Items: ref(StringURL),
		}),
		define(SKU, pattern(tradeschema.SKUPattern)),
	}
}
