// Package voice classifies call transcripts and drives the sales funnel
// from the classified intent.
package voice

import "strings"

// Intent is the classified willingness of a lead to proceed.
type Intent string

const (
	IntentYes     Intent = "yes"
	IntentMaybe   Intent = "maybe"
	IntentNo      Intent = "no"
	IntentUnknown Intent = "unknown"
)

// Objection categories, evaluated independently of the intent.
const (
	ObjectionTiming    = "timing"
	ObjectionFinancial = "financial"
	ObjectionResearch  = "research"
)

// Classification is the classifier output for one transcript.
type Classification struct {
	Intent     Intent
	Confidence int
	Objection  string
}

// The keyword sets are deliberately small and Portuguese-first: each hit is
// a case-insensitive substring count, and a transcript phrase must not score
// in more than one set unless the caller genuinely wants competing signals.
var (
	yesKeywords = []string{
		"sim",
		"com certeza",
		"claro",
		"pode marcar",
		"tenho interesse",
		"perfeito",
	}
	maybeKeywords = []string{
		"talvez",
		"depois",
		"mais tarde",
		"quem sabe",
		"vou ver",
		"outro momento",
	}
	noKeywords = []string{
		"não",
		"nao quero",
		"sem interesse",
		"pare de ligar",
		"nunca",
	}
)

// Objection keyword groups, checked in fixed priority order.
var objectionGroups = []struct {
	name     string
	keywords []string
}{
	{ObjectionTiming, []string{"depois", "me liga", "agora não", "mais tarde", "semana que vem", "outro dia", "ocupado"}},
	{ObjectionFinancial, []string{"caro", "dinheiro", "preço", "orçamento", "financeiro", "parcelar"}},
	{ObjectionResearch, []string{"pesquisar", "pensar", "comparar", "analisar", "ver com"}},
}

// Classify scores a transcript into an intent, a confidence and an
// independent objection category. Deterministic and explainable: substring
// counts over fixed keyword sets, strict majority wins, ties are unknown.
func Classify(transcript string) Classification {
	text := strings.ToLower(transcript)

	yes := countHits(text, yesKeywords)
	maybe := countHits(text, maybeKeywords)
	no := countHits(text, noKeywords)

	out := Classification{Intent: IntentUnknown, Objection: detectObjection(text)}
	switch {
	case yes > maybe && yes > no:
		out.Intent = IntentYes
		out.Confidence = capAt(yes*30, 90)
	case no > yes && no > maybe:
		out.Intent = IntentNo
		out.Confidence = capAt(no*30, 90)
	case maybe > yes && maybe > no:
		out.Intent = IntentMaybe
		out.Confidence = capAt(maybe*25, 75)
	}
	return out
}

func countHits(text string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += strings.Count(text, kw)
	}
	return total
}

func detectObjection(text string) string {
	for _, group := range objectionGroups {
		for _, kw := range group.keywords {
			if strings.Contains(text, kw) {
				return group.name
			}
		}
	}
	return ""
}

func capAt(v, max int) int {
	if v > max {
		return max
	}
	return v
}
