package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/repo"
)

// Querier defines the aggregate queries reporting runs.
type Querier interface {
	SalesByDay(ctx context.Context, from, to pgtype.Timestamptz) ([]repo.SalesByDayRow, error)
	TopProducts(ctx context.Context, from, to pgtype.Timestamptz, limit int32) ([]repo.TopProductRow, error)
	PaymentMix(ctx context.Context, from, to pgtype.Timestamptz) ([]repo.PaymentMixRow, error)
}

// ShiftQuerier serves closed-shift reconciliation summaries.
type ShiftQuerier interface {
	Summaries(ctx context.Context, from, to pgtype.Timestamptz) ([]repo.SummaryRow, error)
}

// Service provides cached access to settlement and shift aggregates.
type Service struct {
	Q            Querier
	Shifts       ShiftQuerier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts)+1)
	formatted = append(formatted, "rp")
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// SalesDay is one day of sales aggregates.
type SalesDay struct {
	Day         time.Time `json:"day"`
	Settlements int64     `json:"settlements"`
	Revenue     int64     `json:"revenue"`
	Discounts   int64     `json:"discounts"`
	Tax         int64     `json:"tax"`
}

// TopProduct is one best-seller row.
type TopProduct struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	QtySold   int64  `json:"qtySold"`
	Revenue   int64  `json:"revenue"`
}

// PaymentSlice is one payment method's share of tendered amounts.
type PaymentSlice struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
	Count  int64  `json:"count"`
}

// ShiftSummary is one closed shift's reconciliation roll-up.
type ShiftSummary struct {
	ShiftID      string    `json:"shiftId"`
	CashierID    string    `json:"cashierId"`
	CashierName  string    `json:"cashierName"`
	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt"`
	TotalSales   int64     `json:"totalSales"`
	CashSales    int64     `json:"cashSales"`
	Transactions int32     `json:"transactions"`
	ExpectedCash int64     `json:"expectedCash"`
	EndingCash   int64     `json:"endingCash"`
	Variance     int64     `json:"variance"`
}

func window(from, to time.Time) (pgtype.Timestamptz, pgtype.Timestamptz) {
	return pgtype.Timestamptz{Time: from, Valid: true}, pgtype.Timestamptz{Time: to, Valid: true}
}

// Sales returns daily sales aggregates inside [from, to).
func (s *Service) Sales(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	key := cacheKey("sales", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []SalesDay
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	lo, hi := window(from, to)
	rows, err := s.Q.SalesByDay(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]SalesDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, SalesDay{
			Day:         row.Day.Time,
			Settlements: row.Settlements,
			Revenue:     row.Revenue,
			Discounts:   row.Discounts,
			Tax:         row.Tax,
		})
	}
	s.store(ctx, key, out)
	return out, nil
}

// TopProducts returns the best sellers inside [from, to) ordered by quantity.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int32) ([]TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey("top", from.Format("2006-01-02"), to.Format("2006-01-02"), limit)
	var cached []TopProduct
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	lo, hi := window(from, to)
	rows, err := s.Q.TopProducts(ctx, lo, hi, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TopProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, TopProduct{
			ProductID: repo.UUIDString(row.ProductID),
			Name:      row.Name,
			QtySold:   row.QtySold,
			Revenue:   row.Revenue,
		})
	}
	s.store(ctx, key, out)
	return out, nil
}

// PaymentMix returns tendered amounts per payment method inside [from, to).
func (s *Service) PaymentMix(ctx context.Context, from, to time.Time) ([]PaymentSlice, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	key := cacheKey("mix", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []PaymentSlice
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	lo, hi := window(from, to)
	rows, err := s.Q.PaymentMix(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentSlice, 0, len(rows))
	for _, row := range rows {
		out = append(out, PaymentSlice{Method: row.Method, Amount: row.Amount, Count: row.Count})
	}
	s.store(ctx, key, out)
	return out, nil
}

// ShiftSummaries returns closed-shift reconciliation rows inside [from, to).
func (s *Service) ShiftSummaries(ctx context.Context, from, to time.Time) ([]ShiftSummary, error) {
	if s == nil || s.Shifts == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	key := cacheKey("shifts", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []ShiftSummary
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	lo, hi := window(from, to)
	rows, err := s.Shifts.Summaries(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]ShiftSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, ShiftSummary{
			ShiftID:      repo.UUIDString(row.ShiftID),
			CashierID:    repo.UUIDString(row.CashierID),
			CashierName:  row.CashierName,
			StartedAt:    row.StartedAt.Time,
			EndedAt:      row.EndedAt.Time,
			TotalSales:   row.TotalSales,
			CashSales:    row.CashSales,
			Transactions: row.Transactions,
			ExpectedCash: row.ExpectedCash.Int64,
			EndingCash:   row.EndingCash.Int64,
			Variance:     row.Variance.Int64,
		})
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
