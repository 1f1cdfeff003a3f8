package repo

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Settlements provides persistence for finalized transactions. Rows are never
// updated: a return is a new settlement referencing the original.
type Settlements struct {
	DB DBTX
}

const settlementColumns = `id, kind, cashier_id, customer_id, shift_id, original_id, subtotal, discount, discount_code, tax, total, payments, notes, created_at`

func scanSettlement(row pgx.Row) (Settlement, error) {
	var s Settlement
	err := row.Scan(&s.ID, &s.Kind, &s.CashierID, &s.CustomerID, &s.ShiftID, &s.OriginalID, &s.Subtotal,
		&s.Discount, &s.DiscountCode, &s.Tax, &s.Total, &s.Payments, &s.Notes, &s.CreatedAt)
	return s, err
}

// Get returns one settlement by id.
func (r Settlements) Get(ctx context.Context, id pgtype.UUID) (Settlement, error) {
	return scanSettlement(r.DB.QueryRow(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, id))
}

// List returns settlements inside the window, newest first.
func (r Settlements) List(ctx context.Context, from, to pgtype.Timestamptz, limit, offset int32) ([]Settlement, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts the settlement header.
func (r Settlements) Create(ctx context.Context, s Settlement) (Settlement, error) {
	payments := s.Payments
	if len(payments) == 0 {
		payments = json.RawMessage("[]")
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO settlements (kind, cashier_id, customer_id, shift_id, original_id, subtotal, discount, discount_code, tax, total, payments, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+settlementColumns,
		s.Kind, s.CashierID, s.CustomerID, s.ShiftID, s.OriginalID, s.Subtotal, s.Discount, s.DiscountCode,
		s.Tax, s.Total, payments, s.Notes)
	return scanSettlement(row)
}

// CreateItem snapshots one line under the settlement.
func (r Settlements) CreateItem(ctx context.Context, it SettlementItem) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settlement_items (settlement_id, product_id, name, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		it.SettlementID, it.ProductID, it.Name, it.Qty, it.UnitPrice, it.Subtotal)
	return err
}

// ListItems returns the line snapshot for a settlement.
func (r Settlements) ListItems(ctx context.Context, settlementID pgtype.UUID) ([]SettlementItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, settlement_id, product_id, name, qty, unit_price, subtotal
		FROM settlement_items WHERE settlement_id = $1 ORDER BY id`, settlementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SettlementItem
	for rows.Next() {
		var it SettlementItem
		if err := rows.Scan(&it.ID, &it.SettlementID, &it.ProductID, &it.Name, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SalesByDayRow is one day of sales aggregates.
type SalesByDayRow struct {
	Day         pgtype.Timestamptz
	Settlements int64
	Revenue     int64
	Discounts   int64
	Tax         int64
}

// SalesByDay aggregates sale-kind settlements per day inside the window.
func (r Settlements) SalesByDay(ctx context.Context, from, to pgtype.Timestamptz) ([]SalesByDayRow, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day, count(*), coalesce(sum(total), 0),
		       coalesce(sum(discount), 0), coalesce(sum(tax), 0)
		FROM settlements
		WHERE kind = 'sale' AND created_at >= $1 AND created_at < $2
		GROUP BY 1 ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesByDayRow
	for rows.Next() {
		var s SalesByDayRow
		if err := rows.Scan(&s.Day, &s.Settlements, &s.Revenue, &s.Discounts, &s.Tax); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopProductRow aggregates quantities sold per product.
type TopProductRow struct {
	ProductID pgtype.UUID
	Name      string
	QtySold   int64
	Revenue   int64
}

// TopProducts returns the best sellers inside the window ordered by quantity.
func (r Settlements) TopProducts(ctx context.Context, from, to pgtype.Timestamptz, limit int32) ([]TopProductRow, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT si.product_id, si.name, sum(si.qty), sum(si.subtotal)
		FROM settlement_items si
		JOIN settlements s ON s.id = si.settlement_id
		WHERE s.kind = 'sale' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY si.product_id, si.name
		ORDER BY sum(si.qty) DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProductRow
	for rows.Next() {
		var t TopProductRow
		if err := rows.Scan(&t.ProductID, &t.Name, &t.QtySold, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PaymentMixRow aggregates tendered amounts per payment method.
type PaymentMixRow struct {
	Method string
	Amount int64
	Count  int64
}

// PaymentMix unnests the payments JSON per settlement inside the window.
func (r Settlements) PaymentMix(ctx context.Context, from, to pgtype.Timestamptz) ([]PaymentMixRow, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p->>'method', coalesce(sum((p->>'amount')::bigint), 0), count(*)
		FROM settlements s, jsonb_array_elements(s.payments) p
		WHERE s.kind = 'sale' AND s.created_at >= $1 AND s.created_at < $2
		GROUP BY 1 ORDER BY 2 DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentMixRow
	for rows.Next() {
		var m PaymentMixRow
		if err := rows.Scan(&m.Method, &m.Amount, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
