package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// WebhookSender posts event envelopes to a configured endpoint, signed with a
// shared secret. It is a queue worker handler for TaskWebhookDelivery; the
// queue owns retries and the DLQ.
type WebhookSender struct {
	URL     string
	Secret  string
	Client  *http.Client
	Enabled bool
}

// Handle delivers one event envelope. A non-2xx response is an error so the
// queue schedules a retry.
func (s WebhookSender) Handle(ctx context.Context, payload []byte) error {
	if !s.Enabled || strings.TrimSpace(s.URL) == "" {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("webhook sender: decode envelope: %w", err)
	}
	status, _, err := s.deliver(ctx, env)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook sender: endpoint returned %d", status)
	}
	return nil
}

func (s WebhookSender) deliver(ctx context.Context, env Envelope) (int, string, error) {
	client := s.Client
	if client == nil {
		client = HTTPClient(5000)
	}
	ctx, span := otel.Tracer("notify.WebhookSender").Start(ctx, "WebhookSender.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.event_id", env.EventID),
		attribute.String("webhook.topic", env.Topic),
	)
	if err := validateURL(s.URL); err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	body, err := json.Marshal(env)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "backend-pos-webhooks/1.0")
	req.Header.Set("X-Event-ID", env.EventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(s.Secret, ts, env.EventID, body))
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, "", err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, string(responseBody), nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeoutMs int) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}
