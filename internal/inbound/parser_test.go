package inbound

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testParser() *Parser {
	return newParserAt(func() time.Time { return fixedNow })
}

const instanceFixture = `{
	"instanceId": "inst-123",
	"key": {"remoteJid": "5511987654321@s.whatsapp.net", "id": "ABCD1234", "fromMe": false},
	"message": {"conversation": "Oi, quero saber mais"},
	"pushName": "Maria",
	"messageTimestamp": 1748779200
}`

const nestedFixture = `{
	"payload": {
		"id": "ABCD1234",
		"sender": {"phone": "5511987654321", "name": "Maria"},
		"recipient": {"phone": "5511912345678"},
		"payload": {"text": "Oi, quero saber mais"},
		"timestamp": 1748779200000
	}
}`

const cloudFixture = `{
	"entry": [{"changes": [{"value": {
		"metadata": {"display_phone_number": "5511912345678"},
		"contacts": [{"profile": {"name": "Maria"}, "wa_id": "5511987654321"}],
		"messages": [{"from": "5511987654321", "id": "ABCD1234", "timestamp": "1748779200", "type": "text", "text": {"body": "Oi, quero saber mais"}}]
	}}]}]
}`

// The three WhatsApp shapes carry the same logical message and must produce
// identical canonical fields.
func TestParseEquivalentShapes(t *testing.T) {
	p := testParser()
	fixtures := map[Provider]string{
		ProviderInstance: instanceFixture,
		ProviderNested:   nestedFixture,
		ProviderCloud:    cloudFixture,
	}
	want := time.Unix(1748779200, 0).UTC()
	for provider, fixture := range fixtures {
		res := p.Parse([]byte(fixture))
		if res.Skipped() {
			t.Fatalf("%s: unexpected skip %q", provider, res.Skip)
		}
		msg := res.Message
		if msg.Provider != provider {
			t.Fatalf("%s: provider = %q", provider, msg.Provider)
		}
		if msg.Channel != ChannelWhatsApp {
			t.Fatalf("%s: channel = %q", provider, msg.Channel)
		}
		if msg.Sender != "5511987654321" {
			t.Fatalf("%s: sender = %q", provider, msg.Sender)
		}
		if msg.Text != "Oi, quero saber mais" {
			t.Fatalf("%s: text = %q", provider, msg.Text)
		}
		if msg.ExternalMessageID != "ABCD1234" {
			t.Fatalf("%s: external id = %q", provider, msg.ExternalMessageID)
		}
		if msg.SenderName != "Maria" {
			t.Fatalf("%s: sender name = %q", provider, msg.SenderName)
		}
		if !msg.OccurredAt.Equal(want) {
			t.Fatalf("%s: occurred at = %v, want %v", provider, msg.OccurredAt, want)
		}
	}
}

func TestParseWebShape(t *testing.T) {
	p := testParser()
	res := p.Parse([]byte(`{"type":"web","sessionId":"sess-1","companyId":"co-1","name":"João","text":"Olá"}`))
	if res.Skipped() {
		t.Fatalf("unexpected skip %q", res.Skip)
	}
	msg := res.Message
	if msg.Channel != ChannelWebchat || msg.Provider != ProviderWeb {
		t.Fatalf("channel/provider = %q/%q", msg.Channel, msg.Provider)
	}
	if msg.Sender != "sess-1" || msg.Recipient != "co-1" {
		t.Fatalf("sender/recipient = %q/%q", msg.Sender, msg.Recipient)
	}
	if !msg.OccurredAt.Equal(fixedNow) {
		t.Fatalf("occurred at = %v", msg.OccurredAt)
	}
}

func TestParseSkips(t *testing.T) {
	p := testParser()
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, SkipUnrecognizedPayload},
		{"garbage", `{"foo":"bar"}`, SkipUnrecognizedPayload},
		{"own message", `{"instanceId":"i","key":{"remoteJid":"551199@s.whatsapp.net","fromMe":true},"message":{"conversation":"hi"}}`, SkipOwnMessage},
		{"instance empty text", `{"instanceId":"i","key":{"remoteJid":"551199@s.whatsapp.net"},"message":{"conversation":"  "}}`, SkipEmptyText},
		{"nested missing sender", `{"payload":{"sender":{"phone":""},"payload":{"text":"hi"}}}`, SkipMissingSender},
		{"cloud status only", `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`, SkipEmptyText},
		{"web no session", `{"type":"web","text":"hi"}`, SkipMissingSender},
		{"web empty text", `{"type":"web","sessionId":"s","text":""}`, SkipEmptyText},
	}
	for _, tc := range cases {
		res := p.Parse([]byte(tc.body))
		if !res.Skipped() {
			t.Fatalf("%s: expected skip, got message %+v", tc.name, res.Message)
		}
		if res.Skip != tc.want {
			t.Fatalf("%s: skip = %q, want %q", tc.name, res.Skip, tc.want)
		}
	}
}

// Timestamps default to "now" when the provider omits them.
func TestParseTimestampDefault(t *testing.T) {
	p := testParser()
	res := p.Parse([]byte(`{"instanceId":"i","key":{"remoteJid":"551199@s.whatsapp.net","id":"m1"},"message":{"conversation":"oi"}}`))
	if res.Skipped() {
		t.Fatalf("unexpected skip %q", res.Skip)
	}
	if !res.Message.OccurredAt.Equal(fixedNow) {
		t.Fatalf("occurred at = %v", res.Message.OccurredAt)
	}
}

func TestJidUser(t *testing.T) {
	if got := jidUser("5511987654321@s.whatsapp.net"); got != "5511987654321" {
		t.Fatalf("jidUser = %q", got)
	}
	if got := jidUser("5511987654321"); got != "5511987654321" {
		t.Fatalf("jidUser without domain = %q", got)
	}
}
