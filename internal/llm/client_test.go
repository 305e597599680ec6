package llm

import "testing"

func TestUnwrapResponse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain string", "Olá! Como posso ajudar?", "Olá! Como posso ajudar?"},
		{"json string", `"Olá! Como posso ajudar?"`, "Olá! Como posso ajudar?"},
		{"response field", `{"response":"tudo certo"}`, "tudo certo"},
		{"content field", `{"content":"tudo certo"}`, "tudo certo"},
		{"output field", `{"output":"tudo certo"}`, "tudo certo"},
		{"field priority", `{"output":"segundo","response":"primeiro"}`, "primeiro"},
		{"whitespace trimmed", "  resposta  \n", "resposta"},
		{"unknown object serialized", `{"message":"oi"}`, `{"message":"oi"}`},
		{"invalid json passthrough", `{"broken`, `{"broken`},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UnwrapResponse(tc.raw); got != tc.want {
				t.Fatalf("UnwrapResponse(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
