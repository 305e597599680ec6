package inbound

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Parser converts provider-specific webhook bodies into canonical Messages.
//
// Detection is a tagged-union decode: each provider's schema is attempted in
// a fixed priority order and the first shape whose hallmark fields are
// present wins. The order is stable and covered by tests per provider.
type Parser struct {
	now func() time.Time
}

// NewParser builds a parser using the wall clock.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

func newParserAt(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// Parse decodes a webhook body. Unrecognized shapes and recognized-but-empty
// messages yield a skip result, never an error: webhook senders retry on
// error responses, so the caller must acknowledge skips as successes.
func (p *Parser) Parse(body []byte) Result {
	if len(body) == 0 {
		return skip(SkipUnrecognizedPayload)
	}
	for _, attempt := range []func([]byte) (Result, bool){
		p.parseInstance,
		p.parseNested,
		p.parseCloud,
		p.parseWeb,
	} {
		if res, ok := attempt(body); ok {
			return res
		}
	}
	return skip(SkipUnrecognizedPayload)
}

// instancePayload is the instance-based webhook (Z-API style).
type instancePayload struct {
	InstanceID string `json:"instanceId"`
	Key        struct {
		RemoteJid string `json:"remoteJid"`
		ID        string `json:"id"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	Message struct {
		Conversation string `json:"conversation"`
	} `json:"message"`
	PushName         string `json:"pushName"`
	MessageTimestamp int64  `json:"messageTimestamp"` // seconds
}

func (p *Parser) parseInstance(body []byte) (Result, bool) {
	var payload instancePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, false
	}
	if payload.InstanceID == "" || payload.Key.RemoteJid == "" {
		return Result{}, false
	}
	if payload.Key.FromMe {
		return skip(SkipOwnMessage), true
	}
	sender := jidUser(payload.Key.RemoteJid)
	if sender == "" {
		return skip(SkipMissingSender), true
	}
	text := strings.TrimSpace(payload.Message.Conversation)
	if text == "" {
		return skip(SkipEmptyText), true
	}
	occurred := p.now().UTC()
	if payload.MessageTimestamp > 0 {
		occurred = time.Unix(payload.MessageTimestamp, 0).UTC()
	}
	return Result{Message: &Message{
		Channel:           ChannelWhatsApp,
		Provider:          ProviderInstance,
		Sender:            sender,
		Recipient:         payload.InstanceID,
		Text:              text,
		SenderName:        payload.PushName,
		ExternalMessageID: payload.Key.ID,
		OccurredAt:        occurred,
	}}, true
}

// nestedPayload is the nested-payload webhook shape.
type nestedPayload struct {
	Payload *struct {
		ID     string `json:"id"`
		Sender struct {
			Phone string `json:"phone"`
			Name  string `json:"name"`
		} `json:"sender"`
		Recipient struct {
			Phone string `json:"phone"`
		} `json:"recipient"`
		Payload struct {
			Text string `json:"text"`
		} `json:"payload"`
		Timestamp int64 `json:"timestamp"` // milliseconds
	} `json:"payload"`
}

func (p *Parser) parseNested(body []byte) (Result, bool) {
	var payload nestedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, false
	}
	if payload.Payload == nil {
		return Result{}, false
	}
	inner := payload.Payload
	if inner.Sender.Phone == "" {
		return skip(SkipMissingSender), true
	}
	text := strings.TrimSpace(inner.Payload.Text)
	if text == "" {
		return skip(SkipEmptyText), true
	}
	occurred := p.now().UTC()
	if inner.Timestamp > 0 {
		occurred = time.UnixMilli(inner.Timestamp).UTC()
	}
	return Result{Message: &Message{
		Channel:           ChannelWhatsApp,
		Provider:          ProviderNested,
		Sender:            inner.Sender.Phone,
		Recipient:         inner.Recipient.Phone,
		Text:              text,
		SenderName:        inner.Sender.Name,
		ExternalMessageID: inner.ID,
		OccurredAt:        occurred,
	}}, true
}

// cloudPayload is the Meta Cloud API webhook shape.
type cloudPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"` // seconds
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (p *Parser) parseCloud(body []byte) (Result, bool) {
	var payload cloudPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, false
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return Result{}, false
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		// Status/read receipts arrive on the same endpoint.
		return skip(SkipEmptyText), true
	}
	msg := value.Messages[0]
	if msg.From == "" {
		return skip(SkipMissingSender), true
	}
	text := strings.TrimSpace(msg.Text.Body)
	if text == "" {
		return skip(SkipEmptyText), true
	}
	occurred := p.now().UTC()
	if secs, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil && secs > 0 {
		occurred = time.Unix(secs, 0).UTC()
	}
	var senderName string
	if len(value.Contacts) > 0 {
		senderName = value.Contacts[0].Profile.Name
	}
	return Result{Message: &Message{
		Channel:           ChannelWhatsApp,
		Provider:          ProviderCloud,
		Sender:            msg.From,
		Recipient:         value.Metadata.DisplayPhoneNumber,
		Text:              text,
		SenderName:        senderName,
		ExternalMessageID: msg.ID,
		OccurredAt:        occurred,
	}}, true
}

// webPayload is the first-party web chat widget shape.
type webPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

func (p *Parser) parseWeb(body []byte) (Result, bool) {
	var payload webPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, false
	}
	if payload.Type != "web" {
		return Result{}, false
	}
	if payload.SessionID == "" {
		return skip(SkipMissingSender), true
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return skip(SkipEmptyText), true
	}
	return Result{Message: &Message{
		Channel:           ChannelWebchat,
		Provider:          ProviderWeb,
		Sender:            payload.SessionID,
		Recipient:         payload.CompanyID,
		Text:              text,
		SenderName:        payload.Name,
		ExternalMessageID: payload.MessageID,
		OccurredAt:        p.now().UTC(),
	}}, true
}

// jidUser extracts the user part of a WhatsApp JID ("5511...@s.whatsapp.net").
func jidUser(jid string) string {
	if at := strings.IndexByte(jid, '@'); at > 0 {
		return jid[:at]
	}
	return jid
}
