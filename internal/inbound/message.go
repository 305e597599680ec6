package inbound

import "time"

// Channel identifies the messaging surface a message arrived on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWebchat  Channel = "webchat"
	ChannelVoice    Channel = "voice"
)

// Provider identifies which webhook shape produced a message.
type Provider string

const (
	// ProviderInstance is the instance-based webhook (Z-API style).
	ProviderInstance Provider = "zapi"
	// ProviderNested is the nested-payload webhook shape.
	ProviderNested Provider = "notifyhub"
	// ProviderCloud is the Meta Cloud API webhook shape.
	ProviderCloud Provider = "meta_cloud"
	// ProviderWeb is the first-party web chat widget.
	ProviderWeb Provider = "web"
)

// Message is the canonical, provider-agnostic inbound message. It is created
// once per webhook call and never mutated.
type Message struct {
	Channel           Channel
	Provider          Provider
	Sender            string
	Recipient         string
	Text              string
	SenderName        string
	ExternalMessageID string
	OccurredAt        time.Time
}

// Skip reasons reported when a payload is recognized but must not be
// processed. Providers retry on errors, so skips are successes.
const (
	SkipUnrecognizedPayload = "unrecognized_payload"
	SkipEmptyText           = "empty_text"
	SkipMissingSender       = "missing_sender"
	SkipOwnMessage          = "own_message"
)

// Result is the outcome of parsing a webhook body: either a canonical
// message, or a skip reason. It is never both.
type Result struct {
	Message *Message
	Skip    string
}

// Skipped reports whether the payload should be acknowledged without side effects.
func (r Result) Skipped() bool {
	return r.Message == nil
}

func skip(reason string) Result {
	return Result{Skip: reason}
}
