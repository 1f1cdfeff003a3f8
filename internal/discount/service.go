package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/repo"
)

// Querier captures the persistence methods required by the discount service.
type Querier interface {
	GetByCode(ctx context.Context, code string) (repo.Discount, error)
	GetByCodeForUpdate(ctx context.Context, code string) (repo.Discount, error)
	GetUsageBySettlement(ctx context.Context, discountID, settlementID pgtype.UUID) (bool, error)
	RecordUsage(ctx context.Context, discountID, settlementID, customerID pgtype.UUID, amount int64) error
}

// Evaluation describes the outcome of evaluating a code against a cart.
type Evaluation struct {
	DiscountID pgtype.UUID
	Code       string
	Amount     int64
}

// Service encapsulates discount evaluation and settlement-time accounting.
type Service struct {
	Q   Querier
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Evaluate resolves a code case-insensitively and computes the discount
// amount for the cart. It never mutates state: usage counting happens only at
// settlement completion via Settle.
func (s *Service) Evaluate(ctx context.Context, code string, subtotal int64, items []Item) (Evaluation, error) {
	if s == nil || s.Q == nil {
		return Evaluation{}, errors.New("discount service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Evaluation{}, ErrNotEligible
	}
	def, err := s.Q.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Evaluation{}, ErrNotEligible
		}
		return Evaluation{}, err
	}
	rule := RuleFromModel(def)
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return Evaluation{}, err
	}
	amount := Compute(rule, subtotal, items)
	if amount <= 0 {
		return Evaluation{}, ErrNotEligible
	}
	return Evaluation{DiscountID: def.ID, Code: def.Code, Amount: amount}, nil
}

// Settle records discount usage for a completed settlement, incrementing the
// definition's usage count exactly once per settlement. Safe to call again
// for the same settlement.
func (s *Service) Settle(ctx context.Context, code string, settlementID, customerID pgtype.UUID, amount int64) error {
	if s == nil || s.Q == nil {
		return errors.New("discount service not configured")
	}
	if strings.TrimSpace(code) == "" || !settlementID.Valid {
		return nil
	}
	def, err := s.Q.GetByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	used, err := s.Q.GetUsageBySettlement(ctx, def.ID, settlementID)
	if err != nil {
		return err
	}
	if used {
		return nil
	}
	if amount < 0 {
		amount = 0
	}
	return s.Q.RecordUsage(ctx, def.ID, settlementID, customerID, amount)
}

// RuleFromModel converts the stored definition into a Rule used for
// evaluation.
func RuleFromModel(d repo.Discount) Rule {
	rule := Rule{
		Code:      d.Code,
		Kind:      d.Kind,
		Value:     d.Value,
		Active:    d.IsActive,
		UsedCount: d.UsedCount,
	}
	if d.PercentBps.Valid {
		v := d.PercentBps.Int32
		rule.PercentBps = &v
	}
	if d.BuyQty.Valid {
		rule.BuyQty = d.BuyQty.Int32
	}
	if d.GetQty.Valid {
		rule.GetQty = d.GetQty.Int32
	}
	if d.MinPurchase.Valid {
		v := d.MinPurchase.Int64
		rule.MinPurchase = &v
	}
	if d.MaxDiscount.Valid {
		v := d.MaxDiscount.Int64
		rule.MaxDiscount = &v
	}
	if d.UsageLimit.Valid {
		v := d.UsageLimit.Int32
		rule.UsageLimit = &v
	}
	if d.StartsAt.Valid {
		rule.StartsAt = d.StartsAt.Time
	}
	if d.EndsAt.Valid {
		rule.EndsAt = d.EndsAt.Time
	}
	return rule
}
