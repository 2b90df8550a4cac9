package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/lychee-technology/tradeschema"
)

var plainAttributes = []string{"uncraftable", "untradable", "untradeable", "australium", "festive", "strange"}

// randomSKU builds a well-formed identity with up to four attributes.
func randomSKU(r *rand.Rand) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(r.Intn(31000)))
	b.WriteByte(tradeschema.SKUSeparator)
	b.WriteString(strconv.Itoa(r.Intn(16)))

	for n := r.Intn(5); n > 0; n-- {
		b.WriteByte(tradeschema.SKUSeparator)
		switch r.Intn(6) {
		case 0:
			b.WriteString(randomChoice(r, plainAttributes))
		case 1:
			b.WriteString(randomChoice(r, []string{"u", "pk", "td-", "c", "od-", "oq-", "p"}))
			b.WriteString(strconv.Itoa(r.Intn(5000)))
		case 2:
			fmt.Fprintf(&b, "w%d", 1+r.Intn(5))
		case 3:
			fmt.Fprintf(&b, "kt-%d", 1+r.Intn(3))
		case 4:
			fmt.Fprintf(&b, "n%d", 1+r.Intn(100))
		default:
			b.WriteString("strange")
		}
	}
	return b.String()
}

func randomCurrencies(r *rand.Rand) *tradeschema.Currencies {
	metal := math.Round(r.Float64()*6000) / 100
	return &tradeschema.Currencies{Keys: float64(r.Intn(40)), Metal: metal}
}

// buildPricelist returns count entries with distinct SKUs.
func buildPricelist(r *rand.Rand, count int) []*tradeschema.PriceEntry {
	seen := make(map[string]struct{}, count)
	entries := make([]*tradeschema.PriceEntry, 0, count)
	for len(entries) < count {
		sku := randomSKU(r)
		if _, dup := seen[sku]; dup {
			continue
		}
		seen[sku] = struct{}{}

		entry := &tradeschema.PriceEntry{
			SKU:       sku,
			Enabled:   r.Intn(10) > 0,
			Autoprice: r.Intn(2) == 0,
			Min:       0,
			Max:       1 + r.Intn(5),
			Intent:    tradeschema.Intent(r.Intn(3)),
		}
		if entry.Intent != tradeschema.IntentSell {
			entry.Buy = randomCurrencies(r)
		}
		if entry.Intent != tradeschema.IntentBuy {
			entry.Sell = randomCurrencies(r)
		}
		entries = append(entries, entry)
	}
	return entries
}

// chunkDocuments encodes entries as pricelist arrays of at most size entries.
func chunkDocuments(entries []*tradeschema.PriceEntry, size int) ([][]byte, error) {
	var docs [][]byte
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		doc, err := json.Marshal(entries[start:end])
		if err != nil {
			return nil, fmt.Errorf("encode chunk at %d: %w", start, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func randomChoice(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
