package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Shifts provides cash-drawer session persistence.
type Shifts struct {
	DB DBTX
}

const shiftColumns = `id, cashier_id, status, started_at, ended_at, starting_cash, ending_cash, cash_sales, total_sales, total_transactions, expected_cash, variance, notes`

func scanShift(row pgx.Row) (Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.CashierID, &s.Status, &s.StartedAt, &s.EndedAt, &s.StartingCash, &s.EndingCash,
		&s.CashSales, &s.TotalSales, &s.TotalTransactions, &s.ExpectedCash, &s.Variance, &s.Notes)
	return s, err
}

// Get returns one shift by id.
func (r Shifts) Get(ctx context.Context, id pgtype.UUID) (Shift, error) {
	return scanShift(r.DB.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
}

// GetActiveByCashier returns the cashier's open shift, if one exists.
func (r Shifts) GetActiveByCashier(ctx context.Context, cashierID pgtype.UUID) (Shift, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE cashier_id = $1 AND status = 'active'`, cashierID)
	return scanShift(row)
}

// GetForUpdate locks the shift row inside the enclosing transaction.
func (r Shifts) GetForUpdate(ctx context.Context, id pgtype.UUID) (Shift, error) {
	return scanShift(r.DB.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, id))
}

// ListByCashier returns the cashier's shifts, most recent first.
func (r Shifts) ListByCashier(ctx context.Context, cashierID pgtype.UUID, limit, offset int32) ([]Shift, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+shiftColumns+` FROM shifts WHERE cashier_id = $1
		ORDER BY started_at DESC LIMIT $2 OFFSET $3`, cashierID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create opens a shift. The partial unique index on (cashier_id) WHERE
// status='active' backs the one-active-shift rule at the storage level.
func (r Shifts) Create(ctx context.Context, cashierID pgtype.UUID, startingCash int64) (Shift, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO shifts (cashier_id, status, starting_cash) VALUES ($1, 'active', $2)
		RETURNING `+shiftColumns, cashierID, startingCash)
	return scanShift(row)
}

// AccumulateSale folds one completed sale into the open drawer totals.
func (r Shifts) AccumulateSale(ctx context.Context, id pgtype.UUID, total, cashPortion int64) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE shifts
		SET total_sales = total_sales + $2, cash_sales = cash_sales + $3,
		    total_transactions = total_transactions + 1
		WHERE id = $1 AND status = 'active'`, id, total, cashPortion)
	return err
}

// Close ends the shift, storing the count and reconciliation figures.
func (r Shifts) Close(ctx context.Context, id pgtype.UUID, endingCash, expectedCash, variance int64, notes pgtype.Text, endedAt pgtype.Timestamptz) (Shift, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE shifts
		SET status = 'closed', ended_at = $2, ending_cash = $3, expected_cash = $4, variance = $5, notes = $6
		WHERE id = $1 AND status = 'active'
		RETURNING `+shiftColumns, id, endedAt, endingCash, expectedCash, variance, notes)
	return scanShift(row)
}

// SummaryRow aggregates closed shifts for reporting.
type SummaryRow struct {
	ShiftID      pgtype.UUID
	CashierID    pgtype.UUID
	CashierName  string
	StartedAt    pgtype.Timestamptz
	EndedAt      pgtype.Timestamptz
	TotalSales   int64
	CashSales    int64
	Transactions int32
	ExpectedCash pgtype.Int8
	EndingCash   pgtype.Int8
	Variance     pgtype.Int8
}

// Summaries returns closed-shift reconciliation rows inside the window.
func (r Shifts) Summaries(ctx context.Context, from, to pgtype.Timestamptz) ([]SummaryRow, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT s.id, s.cashier_id, u.name, s.started_at, s.ended_at, s.total_sales, s.cash_sales,
		       s.total_transactions, s.expected_cash, s.ending_cash, s.variance
		FROM shifts s JOIN users u ON u.id = s.cashier_id
		WHERE s.status = 'closed' AND s.started_at >= $1 AND s.started_at < $2
		ORDER BY s.started_at DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SummaryRow
	for rows.Next() {
		var s SummaryRow
		if err := rows.Scan(&s.ShiftID, &s.CashierID, &s.CashierName, &s.StartedAt, &s.EndedAt, &s.TotalSales,
			&s.CashSales, &s.Transactions, &s.ExpectedCash, &s.EndingCash, &s.Variance); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
