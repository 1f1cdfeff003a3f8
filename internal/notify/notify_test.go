package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/notify"
	"github.com/noah-isme/backend-pos/internal/queue"
	"github.com/noah-isme/backend-pos/internal/repo"
)

func envelope(t *testing.T, topic string, payload map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env := notify.Envelope{
		EventID:    repo.UUIDString(repo.NewUUID()),
		Topic:      topic,
		Payload:    raw,
		OccurredAt: time.Now(),
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestWebhookSignatureAndHeaders(t *testing.T) {
	type recorded struct {
		req  *http.Request
		body []byte
	}
	received := make(chan recorded, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{req: r, body: body}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	sender := notify.WebhookSender{URL: srv.URL, Secret: "secret", Client: srv.Client(), Enabled: true}
	payload := envelope(t, events.TopicSettlementCompleted, map[string]any{"settlementId": "abc", "total": 646})

	require.NoError(t, sender.Handle(context.Background(), payload))

	rec := <-received
	eventID := rec.req.Header.Get("X-Event-ID")
	require.NotEmpty(t, eventID)
	ts, err := strconv.ParseInt(rec.req.Header.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	expected := notify.ComputeSignature("secret", ts, eventID, rec.body)
	require.Equal(t, expected, rec.req.Header.Get("X-Signature"))

	var env notify.Envelope
	require.NoError(t, json.Unmarshal(rec.body, &env))
	require.Equal(t, events.TopicSettlementCompleted, env.Topic)
}

func TestWebhookNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	sender := notify.WebhookSender{URL: srv.URL, Secret: "secret", Client: srv.Client(), Enabled: true}
	err := sender.Handle(context.Background(), envelope(t, events.TopicShiftClosed, nil))
	require.Error(t, err)
}

func TestWebhookDisabledIsNoop(t *testing.T) {
	sender := notify.WebhookSender{Enabled: false}
	require.NoError(t, sender.Handle(context.Background(), []byte("not even json")))
}

type sentMail struct {
	to, subject, body string
}

type captureSender struct {
	sent []sentMail
}

func (c *captureSender) Send(to, subject, body string) error {
	c.sent = append(c.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func TestReceiptMailerSendsWhenRecipientPresent(t *testing.T) {
	mail := &captureSender{}
	mailer := notify.ReceiptMailer{Mail: mail, Enabled: true}

	payload := envelope(t, events.TopicSettlementCompleted, map[string]any{
		"settlementId":  "s-1",
		"total":         646,
		"customerEmail": "dana@example.com",
		"loyaltyPoints": 6,
	})
	require.NoError(t, mailer.Handle(context.Background(), payload))
	require.Len(t, mail.sent, 1)
	require.Equal(t, "dana@example.com", mail.sent[0].to)
	require.Contains(t, mail.sent[0].body, "s-1")
	require.Contains(t, mail.sent[0].body, "646")
}

func TestReceiptMailerSkipsWalkInSales(t *testing.T) {
	mail := &captureSender{}
	mailer := notify.ReceiptMailer{Mail: mail, Enabled: true}

	payload := envelope(t, events.TopicSettlementCompleted, map[string]any{"settlementId": "s-2", "total": 100})
	require.NoError(t, mailer.Handle(context.Background(), payload))
	require.Empty(t, mail.sent)
}

func TestSchedulerEnqueuesDeliveries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sched := notify.Scheduler{Queue: queue.Enqueuer{R: client, Prefix: "nt"}, SendReceipts: true}
	payload, err := json.Marshal(map[string]any{"settlementId": "s-3"})
	require.NoError(t, err)

	event := repo.DomainEvent{
		ID:          repo.NewUUID(),
		Topic:       events.TopicSettlementCompleted,
		AggregateID: repo.NewUUID(),
		Payload:     payload,
	}
	require.NoError(t, sched.Schedule(context.Background(), event))

	webhookQueue, err := client.ZCard(context.Background(), "nt:queue:"+notify.TaskWebhookDelivery).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), webhookQueue)

	receiptQueue, err := client.ZCard(context.Background(), "nt:queue:"+notify.TaskReceiptEmail).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), receiptQueue)

	// re-emitting the same event must not double-deliver
	require.NoError(t, sched.Schedule(context.Background(), event))
	webhookQueue, err = client.ZCard(context.Background(), "nt:queue:"+notify.TaskWebhookDelivery).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), webhookQueue)
}

func TestSchedulerSkipsReceiptForOtherTopics(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sched := notify.Scheduler{Queue: queue.Enqueuer{R: client, Prefix: "nt"}, SendReceipts: true}
	event := repo.DomainEvent{
		ID:          repo.NewUUID(),
		Topic:       events.TopicShiftClosed,
		AggregateID: repo.NewUUID(),
		Payload:     json.RawMessage(`{}`),
	}
	require.NoError(t, sched.Schedule(context.Background(), event))

	receiptQueue, err := client.ZCard(context.Background(), "nt:queue:"+notify.TaskReceiptEmail).Result()
	require.NoError(t, err)
	require.Zero(t, receiptQueue)
}
