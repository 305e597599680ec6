package phone

import "testing"

func TestNormalizeBrazilRules(t *testing.T) {
	n := NewNormalizer(BrazilRule)
	cases := []struct {
		in   string
		want string
	}{
		{"11 3456-7890", "+551134567890"},          // 10-digit national
		{"011 3456-7890", "+551134567890"},         // trunk prefix stripped
		{"11 98765-4321", "+5511987654321"},        // 11-digit mobile
		{"+55 11 98765-4321", "+5511987654321"},    // already international
		{"5511987654321", "+5511987654321"},        // digits only, with cc
		{"(11) 98765-4321", "+5511987654321"},      // punctuation stripped
		{"whatsapp:+5511987654321", "+5511987654321"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(BrazilRule)
	inputs := []string{
		"11 3456-7890",
		"011 3456-7890",
		"11 98765-4321",
		"+55 11 98765-4321",
		"+1 415 555 0100",
		"55987654321",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCustomLocaleRule(t *testing.T) {
	n := NewNormalizer(Rule{CountryCode: "351", NationalLength: 9})
	if got := n.Normalize("212 345 678"); got != "+351212345678" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestForCountryCode(t *testing.T) {
	// Same completion rules, different country code.
	n := ForCountryCode("54")
	if got := n.Normalize("11 4321-0987"); got != "+541143210987" {
		t.Fatalf("Normalize = %q", got)
	}
	// Empty falls back to the Brazilian default.
	if got := ForCountryCode("").Normalize("11 3456-7890"); got != "+551134567890" {
		t.Fatalf("fallback Normalize = %q", got)
	}
}

func TestDigits(t *testing.T) {
	if got := Digits(" +1 (555) 123-4567 "); got != "15551234567" {
		t.Fatalf("Digits = %q", got)
	}
	if got := Digits("no digits"); got != "" {
		t.Fatalf("Digits = %q", got)
	}
}
