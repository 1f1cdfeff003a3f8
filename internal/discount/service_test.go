package discount

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/repo"
)

type stubQuerier struct {
	discounts map[string]repo.Discount
	usages    map[string]bool
	recorded  int
}

func newStubQuerier(defs ...repo.Discount) *stubQuerier {
	q := &stubQuerier{
		discounts: map[string]repo.Discount{},
		usages:    map[string]bool{},
	}
	for _, d := range defs {
		q.discounts[strings.ToLower(d.Code)] = d
	}
	return q
}

func (q *stubQuerier) GetByCode(_ context.Context, code string) (repo.Discount, error) {
	d, ok := q.discounts[strings.ToLower(code)]
	if !ok {
		return repo.Discount{}, pgx.ErrNoRows
	}
	return d, nil
}

func (q *stubQuerier) GetByCodeForUpdate(ctx context.Context, code string) (repo.Discount, error) {
	return q.GetByCode(ctx, code)
}

func (q *stubQuerier) GetUsageBySettlement(_ context.Context, discountID, settlementID pgtype.UUID) (bool, error) {
	return q.usages[repo.UUIDString(discountID)+"/"+repo.UUIDString(settlementID)], nil
}

func (q *stubQuerier) RecordUsage(_ context.Context, discountID, settlementID, _ pgtype.UUID, _ int64) error {
	q.usages[repo.UUIDString(discountID)+"/"+repo.UUIDString(settlementID)] = true
	q.recorded++
	d := q.discounts[strings.ToLower(q.codeFor(discountID))]
	d.UsedCount++
	q.discounts[strings.ToLower(d.Code)] = d
	return nil
}

func (q *stubQuerier) codeFor(id pgtype.UUID) string {
	for _, d := range q.discounts {
		if repo.UUIDEqual(d.ID, id) {
			return d.Code
		}
	}
	return ""
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func percentDef(code string, bps int32) repo.Discount {
	return repo.Discount{
		ID:         repo.NewUUID(),
		Code:       code,
		Kind:       KindPercentage,
		PercentBps: pgtype.Int4{Int32: bps, Valid: true},
		IsActive:   true,
		StartsAt:   timestamptz(time.Now().Add(-time.Hour)),
		EndsAt:     timestamptz(time.Now().Add(time.Hour)),
	}
}

func TestEvaluatePercentage(t *testing.T) {
	q := newStubQuerier(percentDef("SAVE10", 1000))
	svc := &Service{Q: q, Now: time.Now}

	ev, err := svc.Evaluate(context.Background(), "save10", 10_000, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Amount != 1000 {
		t.Fatalf("amount = %d, want 1000", ev.Amount)
	}
	if ev.Code != "SAVE10" {
		t.Fatalf("code = %q, want canonical SAVE10", ev.Code)
	}
	if q.recorded != 0 {
		t.Fatalf("evaluate must not record usage, recorded %d", q.recorded)
	}
}

func TestEvaluateUnknownCode(t *testing.T) {
	svc := &Service{Q: newStubQuerier(), Now: time.Now}
	if _, err := svc.Evaluate(context.Background(), "NOPE", 10_000, nil); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestEvaluateMinimumPurchase(t *testing.T) {
	def := repo.Discount{
		ID:          repo.NewUUID(),
		Code:        "NEWCUSTOMER",
		Kind:        KindFixed,
		Value:       500,
		MinPurchase: pgtype.Int8{Int64: 2500, Valid: true},
		IsActive:    true,
		StartsAt:    timestamptz(time.Now().Add(-time.Hour)),
		EndsAt:      timestamptz(time.Now().Add(time.Hour)),
	}
	svc := &Service{Q: newStubQuerier(def), Now: time.Now}

	if _, err := svc.Evaluate(context.Background(), "NEWCUSTOMER", 2000, nil); !errors.Is(err, ErrMinimumPurchaseUnmet) {
		t.Fatalf("expected ErrMinimumPurchaseUnmet, got %v", err)
	}
	ev, err := svc.Evaluate(context.Background(), "NEWCUSTOMER", 2500, nil)
	if err != nil {
		t.Fatalf("evaluate at minimum: %v", err)
	}
	if ev.Amount != 500 {
		t.Fatalf("amount = %d, want 500", ev.Amount)
	}
}

func TestEvaluateExpired(t *testing.T) {
	def := percentDef("OLD", 1000)
	def.EndsAt = timestamptz(time.Now().Add(-time.Minute))
	svc := &Service{Q: newStubQuerier(def), Now: time.Now}
	if _, err := svc.Evaluate(context.Background(), "OLD", 10_000, nil); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestSettleIdempotent(t *testing.T) {
	def := percentDef("SAVE10", 1000)
	q := newStubQuerier(def)
	svc := &Service{Q: q, Now: time.Now}
	settlementID := repo.NewUUID()

	for i := 0; i < 3; i++ {
		if err := svc.Settle(context.Background(), "SAVE10", settlementID, pgtype.UUID{}, 1000); err != nil {
			t.Fatalf("settle #%d: %v", i+1, err)
		}
	}
	if q.recorded != 1 {
		t.Fatalf("usage recorded %d times, want 1", q.recorded)
	}
	if got := q.discounts["save10"].UsedCount; got != 1 {
		t.Fatalf("used_count = %d, want 1", got)
	}
}

func TestSettleDistinctSettlements(t *testing.T) {
	q := newStubQuerier(percentDef("SAVE10", 1000))
	svc := &Service{Q: q, Now: time.Now}

	if err := svc.Settle(context.Background(), "SAVE10", repo.NewUUID(), pgtype.UUID{}, 1000); err != nil {
		t.Fatalf("settle first: %v", err)
	}
	if err := svc.Settle(context.Background(), "SAVE10", repo.NewUUID(), pgtype.UUID{}, 1000); err != nil {
		t.Fatalf("settle second: %v", err)
	}
	if q.recorded != 2 {
		t.Fatalf("usage recorded %d times, want 2", q.recorded)
	}
}
