package tradeschema

import (
	"fmt"
	"strconv"
	"strings"
)

// SKUPattern is the item identity grammar as a single anchored RE2 expression.
// IsValidSKU and ParseSKU accept exactly the strings this pattern matches.
const SKUPattern = `^(\d+);([0-9]|1[0-5])(;(uncraftable|untrad(e)?able|australium|festive|strange|(u|pk|td-|c|od-|oq-|p)\d+|w[1-5]|kt-[1-3]|n(100|[1-9]\d?)))*$`

// SKUSeparator separates the fields of an identity string.
const SKUSeparator = ';'

// AttributeKind identifies the shape of an optional SKU attribute token.
type AttributeKind string

const (
	AttributeUncraftable   AttributeKind = "uncraftable"
	AttributeUntradable    AttributeKind = "untradable"
	AttributeAustralium    AttributeKind = "australium"
	AttributeFestive       AttributeKind = "festive"
	AttributeStrange       AttributeKind = "strange"
	AttributeEffect        AttributeKind = "u"   // unusual effect id
	AttributePaintKit      AttributeKind = "pk"  // paint kit id
	AttributeTarget        AttributeKind = "td-" // target defindex
	AttributeCrateSeries   AttributeKind = "c"
	AttributeOutput        AttributeKind = "od-" // output defindex
	AttributeOutputQuality AttributeKind = "oq-" // output quality
	AttributePaint         AttributeKind = "p"
	AttributeWear          AttributeKind = "w"
	AttributeKillstreak    AttributeKind = "kt-"
	AttributeCraftNumber   AttributeKind = "n"
)

// Parametrized reports whether the attribute carries a numeric parameter.
func (k AttributeKind) Parametrized() bool {
	switch k {
	case AttributeUncraftable, AttributeUntradable, AttributeAustralium, AttributeFestive, AttributeStrange:
		return false
	default:
		return true
	}
}

// SKUAttribute is one optional modifier of an identity string.
type SKUAttribute struct {
	Kind  AttributeKind `json:"kind"`
	Token string        `json:"token"`           // token as it appeared, e.g. "untradeable" or "kt-2"
	Value string        `json:"value,omitempty"` // numeric parameter digits for parametrized kinds
}

// SKU is a parsed item identity.
type SKU struct {
	Defindex   string         `json:"defindex"` // unbounded magnitude, kept as digits
	Quality    int            `json:"quality"`
	Attributes []SKUAttribute `json:"attributes,omitempty"`
}

// String re-encodes the identity with attributes in their original order.
func (s *SKU) String() string {
	var b strings.Builder
	b.WriteString(s.Defindex)
	b.WriteByte(SKUSeparator)
	b.WriteString(strconv.Itoa(s.Quality))
	for _, attr := range s.Attributes {
		b.WriteByte(SKUSeparator)
		b.WriteString(attr.Token)
	}
	return b.String()
}

// Has reports whether the identity carries an attribute of the given kind.
func (s *SKU) Has(kind AttributeKind) bool {
	for _, attr := range s.Attributes {
		if attr.Kind == kind {
			return true
		}
	}
	return false
}

// Attribute returns the first attribute of the given kind.
func (s *SKU) Attribute(kind AttributeKind) (SKUAttribute, bool) {
	for _, attr := range s.Attributes {
		if attr.Kind == kind {
			return attr, true
		}
	}
	return SKUAttribute{}, false
}

// SKUError locates the field that made an identity string invalid.
type SKUError struct {
	SKU    string `json:"sku"`
	Field  int    `json:"field"` // 0 = defindex, 1 = quality, >= 2 attributes
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

func (e *SKUError) Error() string {
	return fmt.Sprintf("invalid sku %q: field %d (%q): %s", e.SKU, e.Field, e.Token, e.Reason)
}

// IsValidSKU reports whether s is a well-formed identity string. It never
// allocates and never fails.
func IsValidSKU(s string) bool {
	field := 0
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != SKUSeparator {
			continue
		}
		tok := s[start:i]
		switch field {
		case 0:
			if !isDigits(tok) {
				return false
			}
		case 1:
			if _, ok := parseQuality(tok); !ok {
				return false
			}
		default:
			if _, _, ok := matchAttribute(tok); !ok {
				return false
			}
		}
		field++
		start = i + 1
	}
	return field >= 2
}

// ParseSKU parses an identity string, returning a *SKUError naming the
// offending field when s is not well formed.
func ParseSKU(s string) (*SKU, error) {
	fields := strings.Split(s, string(SKUSeparator))
	if len(fields) < 2 {
		return nil, &SKUError{SKU: s, Field: len(fields), Reason: "missing quality field"}
	}

	if !isDigits(fields[0]) {
		return nil, &SKUError{SKU: s, Field: 0, Token: fields[0], Reason: "defindex must be a non-negative integer"}
	}
	quality, ok := parseQuality(fields[1])
	if !ok {
		return nil, &SKUError{SKU: s, Field: 1, Token: fields[1], Reason: "quality must be an integer in [0, 15]"}
	}

	sku := &SKU{Defindex: fields[0], Quality: quality}
	if len(fields) > 2 {
		sku.Attributes = make([]SKUAttribute, 0, len(fields)-2)
	}
	for i, tok := range fields[2:] {
		kind, value, ok := matchAttribute(tok)
		if !ok {
			reason := "unknown attribute token"
			if tok == "" {
				reason = "empty attribute token"
			}
			return nil, &SKUError{SKU: s, Field: i + 2, Token: tok, Reason: reason}
		}
		sku.Attributes = append(sku.Attributes, SKUAttribute{Kind: kind, Token: tok, Value: value})
	}
	return sku, nil
}

// parseQuality accepts 0-9 or 1 followed by 0-5.
func parseQuality(tok string) (int, bool) {
	switch len(tok) {
	case 1:
		if isDigit(tok[0]) {
			return int(tok[0] - '0'), true
		}
	case 2:
		if tok[0] == '1' && tok[1] >= '0' && tok[1] <= '5' {
			return 10 + int(tok[1]-'0'), true
		}
	}
	return 0, false
}

var digitPrefixes = []struct {
	prefix string
	kind   AttributeKind
}{
	{"pk", AttributePaintKit},
	{"td-", AttributeTarget},
	{"od-", AttributeOutput},
	{"oq-", AttributeOutputQuality},
	{"u", AttributeEffect},
	{"c", AttributeCrateSeries},
	{"p", AttributePaint},
}

func matchAttribute(tok string) (AttributeKind, string, bool) {
	switch tok {
	case "":
		return "", "", false
	case "uncraftable":
		return AttributeUncraftable, "", true
	case "untradable", "untradeable":
		return AttributeUntradable, "", true
	case "australium":
		return AttributeAustralium, "", true
	case "festive":
		return AttributeFestive, "", true
	case "strange":
		return AttributeStrange, "", true
	}

	for _, dp := range digitPrefixes {
		if rest, ok := strings.CutPrefix(tok, dp.prefix); ok && isDigits(rest) {
			return dp.kind, rest, true
		}
	}

	switch {
	case len(tok) == 2 && tok[0] == 'w' && tok[1] >= '1' && tok[1] <= '5':
		return AttributeWear, tok[1:], true
	case len(tok) == 4 && strings.HasPrefix(tok, "kt-") && tok[3] >= '1' && tok[3] <= '3':
		return AttributeKillstreak, tok[3:], true
	case tok[0] == 'n' && isCraftNumber(tok[1:]):
		return AttributeCraftNumber, tok[1:], true
	}
	return "", "", false
}

// isCraftNumber matches 100|[1-9][0-9]? and nothing else; 0 is rejected.
func isCraftNumber(v string) bool {
	switch len(v) {
	case 1:
		return v[0] >= '1' && v[0] <= '9'
	case 2:
		return v[0] >= '1' && v[0] <= '9' && isDigit(v[1])
	case 3:
		return v == "100"
	}
	return false
}

func isDigits(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !isDigit(v[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
