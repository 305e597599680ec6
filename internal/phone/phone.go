// Package phone canonicalizes phone numbers into a single comparable key.
//
// The rules are a locale-specific heuristic: short national numbers are
// assumed to belong to the configured default country. Deployments serving
// other locales configure a different rule set per tenant.
package phone

import "strings"

// Rule describes how to complete national numbers for one locale.
type Rule struct {
	// CountryCode is prepended to national-format numbers (digits only, no +).
	CountryCode string
	// NationalLength is the digit count of a bare national number.
	NationalLength int
	// TrunkPrefix is an optional dialing prefix stripped before completion.
	TrunkPrefix string
}

// BrazilRule completes Brazilian mobile/landline numbers: 10 digits, or 11
// digits behind a leading trunk "0", get the country code 55 prepended.
var BrazilRule = Rule{CountryCode: "55", NationalLength: 10, TrunkPrefix: "0"}

// Normalizer canonicalizes raw phone input to "+<digits>".
type Normalizer struct {
	rule Rule
}

// NewNormalizer builds a normalizer for the given locale rule. A zero rule
// falls back to Brazil, the platform default.
func NewNormalizer(rule Rule) *Normalizer {
	if rule.CountryCode == "" {
		rule = BrazilRule
	}
	return &Normalizer{rule: rule}
}

// ForCountryCode is a convenience constructor used when only the country code
// is configured; the remaining rule fields keep the Brazilian defaults.
func ForCountryCode(cc string) *Normalizer {
	rule := BrazilRule
	if cc = strings.TrimSpace(cc); cc != "" {
		rule.CountryCode = cc
	}
	return NewNormalizer(rule)
}

// Normalize strips non-digits and completes national numbers with the
// locale's country code. The result is "+" followed by digits, or "" when the
// input carries no digits. Normalize is idempotent.
func (n *Normalizer) Normalize(raw string) string {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}

	cc := n.rule.CountryCode
	full := n.rule.NationalLength + 1 // national number plus area prefix digit

	switch {
	case n.rule.TrunkPrefix != "" && len(digits) == full && strings.HasPrefix(digits, n.rule.TrunkPrefix):
		digits = cc + digits[len(n.rule.TrunkPrefix):]
	case len(digits) == n.rule.NationalLength:
		digits = cc + digits
	case len(digits) == full && !strings.HasPrefix(digits, cc):
		digits = cc + digits
	}
	return "+" + digits
}

// Digits returns only the decimal digits of the input.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
