package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zapleads/engage-platform/pkg/logging"
)

var zapiSendTracer = otel.Tracer("engage.internal.messaging.zapi_send")

// ZAPISender posts WhatsApp text messages through a Z-API instance.
type ZAPISender struct {
	baseURL    string
	instanceID string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewZAPISender builds a sender for one Z-API instance. Credentials come
// from configuration at construction, never per call.
func NewZAPISender(baseURL, instanceID, token string, logger *logging.Logger) *ZAPISender {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.z-api.io"
	}
	return &ZAPISender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		instanceID: instanceID,
		token:      token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ Sender = (*ZAPISender)(nil)

// SendText dispatches one WhatsApp message. Non-2xx responses surface the
// provider body in the error so operators can see the rejection reason.
func (s *ZAPISender) SendText(ctx context.Context, msg OutboundText) error {
	if s.instanceID == "" || s.token == "" {
		return errors.New("messaging: z-api credentials missing")
	}
	if msg.To == "" {
		return errors.New("messaging: to required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := zapiSendTracer.Start(ctx, "messaging.zapi.send_text")
	defer span.End()
	span.SetAttributes(
		attribute.String("engage.company_id", msg.CompanyID),
		attribute.String("engage.to", msg.To),
	)

	payload, err := json.Marshal(map[string]string{
		"phone":   strings.TrimPrefix(msg.To, "+"),
		"message": msg.Body,
	})
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal z-api payload: %w", err)
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/send-text", s.baseURL, s.instanceID, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("messaging: z-api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: z-api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("messaging: z-api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.logger.Info("whatsapp message sent", "company_id", msg.CompanyID, "to", msg.To)
	return nil
}
