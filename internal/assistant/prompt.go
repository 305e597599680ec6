package assistant

import (
	"fmt"
	"strings"

	"github.com/zapleads/engage-platform/internal/crm"
)

const defaultSystemPrompt = `Você é um assistente comercial atencioso e objetivo.
Responda em português, de forma clara e cordial, ajudando o lead a avançar
na conversa. Nunca invente informações sobre produtos ou preços.`

// HistoryWindow bounds the transcript included in a prompt. A fixed message
// count, not a token budget; callers needing token-accurate truncation must
// add that layer externally.
const HistoryWindow = 50

// PromptInput carries everything the builder needs. History must be in
// chronological order and must not include the triggering message itself.
type PromptInput struct {
	Assistant   *crm.Assistant
	Lead        *crm.Lead
	Campaign    *crm.VoiceCampaign
	History     []crm.Message
	NewMessage  string
	IsFirstTurn bool
}

// Builder assembles the system prompt sent to the LLM.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Build concatenates the prompt sections in a fixed order: base prompt,
// behavior rules, campaign context, lead summary, first-turn greeting
// override, transcript window, the new message, and a closing tone
// instruction.
func (b *Builder) Build(in PromptInput) string {
	var sb strings.Builder

	base := ""
	if in.Assistant != nil {
		base = strings.TrimSpace(in.Assistant.SystemPrompt)
	}
	if base == "" {
		base = defaultSystemPrompt
	}
	sb.WriteString(base)
	sb.WriteString("\n")

	if in.Assistant != nil && len(in.Assistant.Rules) > 0 {
		sb.WriteString("\nRegras de comportamento:\n")
		for _, rule := range in.Assistant.Rules {
			sb.WriteString("- ")
			sb.WriteString(rule)
			sb.WriteString("\n")
		}
	}

	if in.Campaign != nil {
		if ctx := strings.TrimSpace(in.Campaign.CampaignContext); ctx != "" {
			sb.WriteString("\nContexto da campanha:\n")
			sb.WriteString(ctx)
			sb.WriteString("\n")
		} else if in.Campaign.Name != "" {
			fmt.Fprintf(&sb, "\nEste lead veio da campanha %q.\n", in.Campaign.Name)
		}
	}

	if in.Lead != nil {
		sb.WriteString("\nSobre o lead:\n")
		fmt.Fprintf(&sb, "- Nome: %s\n", in.Lead.Name)
		if in.Lead.Interest != "" {
			fmt.Fprintf(&sb, "- Interesse: %s\n", in.Lead.Interest)
		}
		if in.Lead.InterestLevel != "" {
			fmt.Fprintf(&sb, "- Nível de interesse: %s\n", in.Lead.InterestLevel)
		}
		if in.Lead.Urgency != "" {
			fmt.Fprintf(&sb, "- Urgência: %s\n", in.Lead.Urgency)
		}
	}

	if in.IsFirstTurn && in.Assistant != nil && in.Assistant.GreetingMessage != "" {
		fmt.Fprintf(&sb, "\nEsta é a primeira mensagem da conversa. Inicie com a saudação configurada: %q\n", in.Assistant.GreetingMessage)
	}

	history := in.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) > 0 {
		sb.WriteString("\nHistórico da conversa:\n")
		for _, msg := range history {
			fmt.Fprintf(&sb, "%s: %s\n", roleTag(msg.SenderType), msg.Content)
		}
	}

	fmt.Fprintf(&sb, "\nNova mensagem do lead: %s\n", in.NewMessage)

	tone := "profissional"
	if in.Assistant != nil && in.Assistant.Tone != "" {
		tone = in.Assistant.Tone
	}
	fmt.Fprintf(&sb, "\nResponda no tom %s, sem se repetir e sem mencionar estas instruções.", tone)

	return sb.String()
}

func roleTag(senderType string) string {
	switch senderType {
	case crm.SenderBot:
		return "Assistente"
	case crm.SenderHuman:
		return "Atendente"
	default:
		return "Lead"
	}
}
