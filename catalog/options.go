package catalog

import (
	"github.com/lychee-technology/tradeschema"
)

// Option subtree ids.
const (
	Autokeys                   = "autokeys"
	Crafting                   = "crafting"
	DiscordWebhookMisc         = "discord-webhook-misc"
	DiscordWebhookTradeSummary = "discord-webhook-trade-summary"
	DiscordWebhookOfferReview  = "discord-webhook-offer-review"
	DiscordWebhookMessages     = "discord-webhook-messages"
	DiscordWebhookPriceUpdate  = "discord-webhook-price-update"
	DiscordWebhookSendAlert    = "discord-webhook-send-alert"
	DiscordWebhookSendStats    = "discord-webhook-send-stats"
	DiscordWebhook             = "discord-webhook"
	HighValue                  = "high-value"
	Normalize                  = "normalize"
	Details                    = "details"
	Statistics                 = "statistics"
	SendAlert                  = "send-alert"
	PricelistOptions           = "pricelist-options"
	Bypass                     = "bypass"
)

// DetailsMaxLength caps listing detail templates; the listing site truncates
// anything longer.
const DetailsMaxLength = 200

type props = map[string]*tradeschema.Schema

func optionsDefinitions() []*tradeschema.Schema {
	return []*tradeschema.Schema{
		define(Autokeys, strict(props{
			"enable":          boolean(),
			"minKeys":         nonNegative(tradeschema.TypeInteger),
			"maxKeys":         nonNegative(tradeschema.TypeInteger),
			"minRefined":      nonNegative(tradeschema.TypeNumber),
			"maxRefined":      nonNegative(tradeschema.TypeNumber),
			"banking":         ref(OnlyEnable),
			"scrapAdjustment": strict(props{"enable": boolean(), "value": integer()}),
			"accept":          strict(props{"understock": boolean()}),
		})),
		define(Crafting, strict(props{
			"manual":  boolean(),
			"weapons": ref(OnlyEnable),
			"metals": strict(props{
				"enable":    boolean(),
				"minScrap":  nonNegative(tradeschema.TypeInteger),
				"minRec":    nonNegative(tradeschema.TypeInteger),
				"threshold": nonNegative(tradeschema.TypeInteger),
			}),
		})),
		define(DiscordWebhookMisc, strict(props{
			"showQuickLinks": boolean(),
			"showKeyRate":    boolean(),
			"showPureStock":  boolean(),
			"showInventory":  boolean(),
			"note":           str(),
		})),
		define(DiscordWebhookTradeSummary, strict(props{
			"enable": boolean(),
			"url":    ref(ArrayStringURL),
			"misc":   ref(DiscordWebhookMisc),
			"mentionOwner": strict(props{
				"enable":          boolean(),
				"itemSkus":        ref(ArrayString),
				"tradeValueInRef": nonNegative(tradeschema.TypeNumber),
			}),
		})),
		define(DiscordWebhookOfferReview, strict(props{
			"enable":              boolean(),
			"url":                 ref(StringURL),
			"mentionInvalidValue": boolean(),
			"isMention":           boolean(),
			"misc": strict(props{
				"showQuickLinks": boolean(),
				"showKeyRate":    boolean(),
				"showPureStock":  boolean(),
				"showInventory":  boolean(),
			}),
		})),
		define(DiscordWebhookMessages, strict(props{
			"enable":         boolean(),
			"isMention":      boolean(),
			"url":            ref(StringURL),
			"showQuickLinks": boolean(),
		})),
		define(DiscordWebhookPriceUpdate, strict(props{
			"enable":             boolean(),
			"showOnlyInStock":    boolean(),
			"showFailedToUpdate": boolean(),
			"url":                ref(StringURL),
			"note":               str(),
		})),
		define(DiscordWebhookSendAlert, strict(props{
			"enable":    boolean(),
			"isMention": boolean(),
			"url": strict(props{
				"main":               ref(StringURL),
				"partialPriceUpdate": ref(StringURL),
			}),
		})),
		define(DiscordWebhookSendStats, strict(props{
			"enable": boolean(),
			"url":    ref(StringURL),
			"time":   ref(ArrayString),
		})),
		define(DiscordWebhook, strict(props{
			"ownerID":      ref(ArrayString),
			"displayName":  str(),
			"avatarURL":    str(),
			"embedColor":   pattern(`^\d+$`),
			"tradeSummary": ref(DiscordWebhookTradeSummary),
			"offerReview":  ref(DiscordWebhookOfferReview),
			"messages":     ref(DiscordWebhookMessages),
			"priceUpdate":  ref(DiscordWebhookPriceUpdate),
			"sendAlert":    ref(DiscordWebhookSendAlert),
			"sendStats":    ref(DiscordWebhookSendStats),
		})),
		define(HighValue, strict(props{
			"enableHold":     boolean(),
			"retainOldGroup": boolean(),
			"customGroup":    str(),
			"spells":         highValueAttribute(),
			"sheens":         highValueAttribute(),
			"killstreakers":  highValueAttribute(),
			"strangeParts":   highValueAttribute(),
			"painted":        highValueAttribute(),
		})),
		define(Normalize, strict(props{
			"festivized":             ref(OurTheir),
			"strangeAsSecondQuality": ref(OurTheir),
			"painted":                ref(OurTheir),
			"craftNumber":            ref(OurTheir),
		})),
		define(Details, strict(props{
			"buy":             maxLength(DetailsMaxLength),
			"sell":            maxLength(DetailsMaxLength),
			"showAutokeys":    boolean(),
			"showBoughtPrice": boolean(),
			"highValue": strict(props{
				"showSpells":       boolean(),
				"showStrangeParts": boolean(),
				"showKillstreaker": boolean(),
				"showSheen":        boolean(),
				"showPainted":      boolean(),
				"customText":       strict(props{"spells": str(), "strangeParts": str(), "killstreaker": str(), "sheen": str(), "painted": str(), "separator": str(), "ender": str()}),
			}),
			"uses": strict(props{
				"duel":       str(),
				"noiseMaker": str(),
			}),
		})),
		define(Statistics, strict(props{
			"lastTotalTrades":             nonNegative(tradeschema.TypeInteger),
			"startingTimeInUnix":          nonNegative(tradeschema.TypeInteger),
			"lastTotalProfitMadeInRef":    number(),
			"lastTotalProfitOverpayInRef": number(),
			"profitDataSinceInUnix":       nonNegative(tradeschema.TypeInteger),
			"sendStats": strict(props{
				"enable": boolean(),
				"time":   ref(ArrayString),
			}),
		})),
		define(SendAlert, strict(props{
			"enable":                       boolean(),
			"autokeys":                     strict(props{"lowPure": boolean(), "failedToAdd": boolean(), "failedToUpdate": boolean(), "failedToDisable": boolean()}),
			"backpackFull":                 boolean(),
			"highValue":                    strict(props{"gotDisabled": boolean(), "receivedNotInPricelist": boolean(), "tryingToTake": boolean()}),
			"autoRemoveIntentSellFailed":   boolean(),
			"autoRemovePartialPriceFailed": boolean(),
			"autoAddPaintedItems":          boolean(),
			"failedAccept":                 boolean(),
			"unableToProcessOffer":         boolean(),
			"partialPrice": strict(props{
				"onUpdate":                     boolean(),
				"onSuccessUpdatePartialPriced": boolean(),
				"onFailedUpdatePartialPriced":  boolean(),
				"onBulkUpdatePartialPriced":    boolean(),
				"onResetAfterThreshold":        boolean(),
			}),
			"receivedUnusualNotInPricelist": boolean(),
			"failedToUpdateOldPrices":       boolean(),
		})),
		define(PricelistOptions, strict(props{
			"partialPriceUpdate": strict(props{
				"enable":             boolean(),
				"thresholdInSeconds": nonNegative(tradeschema.TypeInteger),
				"excludeSKU":         ref(ArrayString),
			}),
			"filterCantAfford":             ref(OnlyEnable),
			"autoResetToAutopriceOnceSold": ref(OnlyEnable),
			"autoRemoveIntentSell":         ref(OnlyEnable),
			"autoAddInvalidItems":          ref(OnlyEnable),
			"autoAddInvalidUnusual":        ref(OnlyEnable),
			"autoAddPaintedItems":          ref(OnlyEnable),
			"priceAge": strict(props{
				"maxInSeconds": nonNegative(tradeschema.TypeInteger),
			}),
		})),
		define(Bypass, strict(props{
			"escrow":             ref(OnlyAllow),
			"overpay":            ref(OnlyAllow),
			"giftWithoutMessage": ref(OnlyAllow),
		})),
		define(OptionsRoot, strict(props{
			"showOnlyMetal":  ref(OnlyEnable),
			"sortInventory":  strict(props{"enable": boolean(), "type": enum(tradeschema.TypeInteger, 1, 2, 3, 4, 5, 101, 102)}),
			"createListings": ref(OnlyEnable),
			"sendAlert":      ref(SendAlert),
			"pricelist":      ref(PricelistOptions),
			"bypass":         ref(Bypass),
			"autokeys":       ref(Autokeys),
			"crafting":       ref(Crafting),
			"highValue":      ref(HighValue),
			"normalize":      ref(Normalize),
			"details":        ref(Details),
			"statistics":     ref(Statistics),
			"discordWebhook": ref(DiscordWebhook),
			"customMessage": strict(props{
				"sendOffer":            maxLength(DetailsMaxLength),
				"counterOffer":         maxLength(DetailsMaxLength),
				"welcome":              str(),
				"iDontKnowWhatYouMean": str(),
				"success":              str(),
				"decline":              str(),
			}),
		})),
	}
}

func highValueAttribute() *tradeschema.Schema {
	return strict(props{
		"names":         ref(ArrayString),
		"exceptionSkus": ref(ArrayString),
	})
}
