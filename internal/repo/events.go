package repo

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

// Events persists the domain-event outbox.
type Events struct {
	DB DBTX
}

// Insert appends one event.
func (r Events) Insert(ctx context.Context, topic string, aggregateID pgtype.UUID, payload json.RawMessage) (DomainEvent, error) {
	var ev DomainEvent
	err := r.DB.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload) VALUES ($1, $2, $3)
		RETURNING id, topic, aggregate_id, payload, occurred_at`, topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}

// ListSince returns events after the given instant, oldest first.
func (r Events) ListSince(ctx context.Context, since pgtype.Timestamptz, limit int32) ([]DomainEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, topic, aggregate_id, payload, occurred_at
		FROM domain_events WHERE occurred_at > $1 ORDER BY occurred_at LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DomainEvent
	for rows.Next() {
		var ev DomainEvent
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
