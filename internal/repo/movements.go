package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Movements provides the append-only inventory log. Entries are never edited
// after creation.
type Movements struct {
	DB DBTX
}

// Create appends one movement entry.
func (r Movements) Create(ctx context.Context, m Movement) (Movement, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO inventory_movements (product_id, kind, qty, reason, reference, recorded_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		m.ProductID, m.Kind, m.Qty, m.Reason, m.Reference, m.RecordedBy, m.Notes).
		Scan(&m.ID, &m.CreatedAt)
	return m, err
}

// List returns movements newest first, optionally scoped to one product.
func (r Movements) List(ctx context.Context, productID pgtype.UUID, limit, offset int32) ([]Movement, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, kind, qty, reason, reference, recorded_by, notes, created_at
		FROM inventory_movements
		WHERE $1::uuid IS NULL OR product_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Qty, &m.Reason, &m.Reference, &m.RecordedBy, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
