package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
)

// ReceiptMailer sends settlement receipts by email. It is a queue worker
// handler for TaskReceiptEmail.
type ReceiptMailer struct {
	Mail    common.EmailSender
	Enabled bool
}

// Handle decodes an event envelope and mails a receipt when the payload
// carries a customer email. Events without a recipient are acked silently;
// walk-in sales have no one to mail.
func (m ReceiptMailer) Handle(_ context.Context, payload []byte) error {
	if !m.Enabled || m.Mail == nil {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("receipt mailer: decode envelope: %w", err)
	}
	if env.Topic != events.TopicSettlementCompleted {
		return nil
	}
	fields := map[string]any{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &fields); err != nil {
			return fmt.Errorf("receipt mailer: decode payload: %w", err)
		}
	}
	to := extractRecipient(fields)
	if to == "" {
		return nil
	}
	return m.Mail.Send(to, "Your receipt", receiptBody(fields, env.OccurredAt))
}

func extractRecipient(payload map[string]any) string {
	for _, key := range []string{"customerEmail", "email", "recipient"} {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func receiptBody(payload map[string]any, occurred time.Time) string {
	body := fmt.Sprintf("Thank you for your purchase on %s.", occurred.Format(time.RFC1123))
	if id, ok := payload["settlementId"].(string); ok && id != "" {
		body += fmt.Sprintf("\nReceipt: %s", id)
	}
	if total, ok := payload["total"].(float64); ok {
		body += fmt.Sprintf("\nTotal: %d", int64(total))
	}
	if points, ok := payload["loyaltyPoints"].(float64); ok && points > 0 {
		body += fmt.Sprintf("\nLoyalty points earned: %d", int64(points))
	}
	return body
}
