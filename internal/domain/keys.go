package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SKUKey normalizes a SKU for case-insensitive natural-key matching.
func SKUKey(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// SerialKey normalizes a serial number for case-insensitive matching.
func SerialKey(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// Key returns the composite natural key of a category. Components are
// upper-cased and trimmed, so "smartphone, Apple, iPhone 14" and
// "SMARTPHONE, APPLE, IPHONE 14" collide.
func (c Category) Key() string {
	return CategoryKey(c.Type, c.Brand, c.Model)
}

func CategoryKey(typ, brand, model string) string {
	return fmt.Sprintf("%s|%s|%s",
		strings.ToUpper(strings.TrimSpace(typ)),
		strings.ToUpper(strings.TrimSpace(brand)),
		strings.ToUpper(strings.TrimSpace(model)))
}

// Key returns the composite natural key of a variant.
func (v Variant) Key() string {
	return VariantKey(v.Color, v.Grade, v.Capacity, v.SimType)
}

func VariantKey(color, grade string, capacity int, simType string) string {
	return fmt.Sprintf("%s|%s|%d|%s",
		strings.ToUpper(strings.TrimSpace(color)),
		strings.ToUpper(strings.TrimSpace(grade)),
		capacity,
		strings.ToUpper(strings.TrimSpace(simType)))
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StockNameKey normalizes a stock name for matching: lower-cased, diacritics
// stripped, punctuation and whitespace removed. "Défectueux", "defectueux"
// and "DEFECTUEUX " all map to the same key, so a per-stock CSV column can
// reference a stock regardless of accents or spacing.
func StockNameKey(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Key returns the matching key of a stock location name.
func (s Stock) Key() string {
	return StockNameKey(s.Name)
}
