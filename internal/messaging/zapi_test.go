package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestZAPISenderSendText(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"zaapId":"z1","messageId":"m1"}`))
	}))
	defer srv.Close()

	s := NewZAPISender(srv.URL, "inst-1", "tok-1", nil)
	err := s.SendText(context.Background(), OutboundText{
		CompanyID: "co-1",
		To:        "+5511987654321",
		Body:      "Olá!",
	})
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotPath != "/instances/inst-1/token/tok-1/send-text" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotPayload["phone"] != "5511987654321" {
		t.Fatalf("plus prefix must be stripped, got %q", gotPayload["phone"])
	}
	if gotPayload["message"] != "Olá!" {
		t.Fatalf("unexpected message %q", gotPayload["message"])
	}
}

func TestZAPISenderSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid phone"}`))
	}))
	defer srv.Close()

	s := NewZAPISender(srv.URL, "inst-1", "tok-1", nil)
	err := s.SendText(context.Background(), OutboundText{To: "+5511987654321", Body: "oi"})
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if !strings.Contains(err.Error(), "invalid phone") {
		t.Fatalf("provider body must be surfaced, got %v", err)
	}
}

func TestZAPISenderValidation(t *testing.T) {
	s := NewZAPISender("http://example.invalid", "", "", nil)
	if err := s.SendText(context.Background(), OutboundText{To: "+55", Body: "oi"}); err == nil {
		t.Fatal("expected error on missing credentials")
	}

	s = NewZAPISender("http://example.invalid", "inst", "tok", nil)
	if err := s.SendText(context.Background(), OutboundText{Body: "oi"}); err == nil {
		t.Fatal("expected error on missing to")
	}
	if err := s.SendText(context.Background(), OutboundText{To: "+55", Body: "  "}); err == nil {
		t.Fatal("expected error on empty body")
	}
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	called := false
	r.Register("whatsapp", SenderFunc(func(ctx context.Context, msg OutboundText) error {
		called = true
		return nil
	}))

	s, err := r.ForChannel("whatsapp")
	if err != nil {
		t.Fatalf("ForChannel: %v", err)
	}
	if err := s.SendText(context.Background(), OutboundText{}); err != nil || !called {
		t.Fatalf("registered sender not invoked: %v", err)
	}

	if _, err := r.ForChannel("voice"); err == nil {
		t.Fatal("expected error for unregistered channel")
	}
}
