package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Discounts provides discount definition persistence.
type Discounts struct {
	DB DBTX
}

const discountColumns = `id, code, name, kind, value, percent_bps, buy_qty, get_qty, min_purchase, max_discount, starts_at, ends_at, is_active, usage_limit, used_count, created_at, updated_at`

func scanDiscount(row pgx.Row) (Discount, error) {
	var d Discount
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Kind, &d.Value, &d.PercentBps, &d.BuyQty, &d.GetQty,
		&d.MinPurchase, &d.MaxDiscount, &d.StartsAt, &d.EndsAt, &d.IsActive, &d.UsageLimit, &d.UsedCount,
		&d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// GetByCode looks up a discount case-insensitively.
func (r Discounts) GetByCode(ctx context.Context, code string) (Discount, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE lower(code) = lower($1)`, code)
	return scanDiscount(row)
}

// GetByCodeForUpdate locks the discount row for the duration of the enclosing
// transaction so usage counting is race free.
func (r Discounts) GetByCodeForUpdate(ctx context.Context, code string) (Discount, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE lower(code) = lower($1) FOR UPDATE`, code)
	return scanDiscount(row)
}

// List returns all discount definitions, newest first.
func (r Discounts) List(ctx context.Context, limit, offset int32) ([]Discount, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create inserts a new definition with a zero usage count.
func (r Discounts) Create(ctx context.Context, d Discount) (Discount, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO discounts (code, name, kind, value, percent_bps, buy_qty, get_qty, min_purchase, max_discount, starts_at, ends_at, is_active, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+discountColumns,
		d.Code, d.Name, d.Kind, d.Value, d.PercentBps, d.BuyQty, d.GetQty, d.MinPurchase, d.MaxDiscount,
		d.StartsAt, d.EndsAt, d.IsActive, d.UsageLimit)
	return scanDiscount(row)
}

// Update replaces a definition's rule fields. The usage count is never
// written here; it only moves through RecordUsage.
func (r Discounts) Update(ctx context.Context, d Discount) (Discount, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE discounts
		SET name = $2, kind = $3, value = $4, percent_bps = $5, buy_qty = $6, get_qty = $7,
		    min_purchase = $8, max_discount = $9, starts_at = $10, ends_at = $11, is_active = $12,
		    usage_limit = $13, updated_at = now()
		WHERE id = $1
		RETURNING `+discountColumns,
		d.ID, d.Name, d.Kind, d.Value, d.PercentBps, d.BuyQty, d.GetQty, d.MinPurchase, d.MaxDiscount,
		d.StartsAt, d.EndsAt, d.IsActive, d.UsageLimit)
	return scanDiscount(row)
}

// GetUsageBySettlement reports whether usage was already recorded for the
// settlement, making settlement-time accounting idempotent.
func (r Discounts) GetUsageBySettlement(ctx context.Context, discountID, settlementID pgtype.UUID) (bool, error) {
	var one int
	err := r.DB.QueryRow(ctx, `SELECT 1 FROM discount_usages WHERE discount_id = $1 AND settlement_id = $2`, discountID, settlementID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return false, err
}

// RecordUsage inserts the usage row and bumps the counter.
func (r Discounts) RecordUsage(ctx context.Context, discountID, settlementID, customerID pgtype.UUID, amount int64) error {
	if _, err := r.DB.Exec(ctx, `
		INSERT INTO discount_usages (discount_id, settlement_id, customer_id, amount)
		VALUES ($1, $2, $3, $4)`, discountID, settlementID, customerID, amount); err != nil {
		return err
	}
	_, err := r.DB.Exec(ctx, `UPDATE discounts SET used_count = used_count + 1, updated_at = now() WHERE id = $1`, discountID)
	return err
}
