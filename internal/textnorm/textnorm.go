// Package textnorm cleans merchant and product strings before they are
// embedded.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// longDigits matches order and phone numbers that merchants embed in their
// display names.
var longDigits = regexp.MustCompile(`\d{9,}`)

// Normalizer cleans raw text. The zero value only collapses whitespace.
type Normalizer struct {
	// StripLongDigits removes runs of nine or more digits.
	StripLongDigits bool
}

// Normalize collapses whitespace runs to single spaces and trims the result.
func (n Normalizer) Normalize(text string) string {
	if n.StripLongDigits {
		text = longDigits.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeValue coerces v to its string form and normalizes it.
func (n Normalizer) NormalizeValue(v any) string {
	if s, ok := v.(string); ok {
		return n.Normalize(s)
	}
	if v == nil {
		return ""
	}
	return n.Normalize(fmt.Sprint(v))
}

// Normalize collapses whitespace using the zero Normalizer.
func Normalize(text string) string {
	return Normalizer{}.Normalize(text)
}
