package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/repo"
	"github.com/noah-isme/backend-pos/internal/tender"
)

var (
	// ErrEmptyCart is returned when finalizing a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoTender is returned when no tender session exists for the cart.
	ErrNoTender = errors.New("no tender session for cart")
	// ErrTenderStale is returned when the session total no longer matches the
	// cart. The register must reopen tender after any repricing.
	ErrTenderStale = errors.New("tender session out of date")
	// ErrInsufficientPayment is returned when the tendered amount does not
	// cover the total.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrNotFound is returned when a referenced settlement does not exist.
	ErrNotFound = errors.New("settlement not found")
)

// CartStore reads and clears carts within the settlement transaction.
type CartStore interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Cart, error)
	ListItems(ctx context.Context, cartID pgtype.UUID) ([]repo.CartItem, error)
	Clear(ctx context.Context, cartID pgtype.UUID) error
	SetDiscountCode(ctx context.Context, id pgtype.UUID, code pgtype.Text) error
}

// ProductStore mutates stock atomically.
type ProductStore interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
	AdjustStock(ctx context.Context, id pgtype.UUID, delta int32) (int32, error)
}

// SettlementStore persists immutable settlement snapshots.
type SettlementStore interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Settlement, error)
	Create(ctx context.Context, s repo.Settlement) (repo.Settlement, error)
	CreateItem(ctx context.Context, it repo.SettlementItem) error
	ListItems(ctx context.Context, settlementID pgtype.UUID) ([]repo.SettlementItem, error)
}

// MovementStore appends inventory log entries.
type MovementStore interface {
	Create(ctx context.Context, m repo.Movement) (repo.Movement, error)
}

// CustomerStore applies loyalty accrual.
type CustomerStore interface {
	AccrueLoyalty(ctx context.Context, id pgtype.UUID, points, spent int64, visit pgtype.Timestamptz) error
}

// ShiftStore attributes sales to the cashier's active shift.
type ShiftStore interface {
	GetActiveByCashier(ctx context.Context, cashierID pgtype.UUID) (repo.Shift, error)
	AccumulateSale(ctx context.Context, id pgtype.UUID, total, cashPortion int64) error
}

// Stores bundles the repositories bound to one database transaction.
type Stores struct {
	Carts       CartStore
	Products    ProductStore
	Settlements SettlementStore
	Movements   MovementStore
	Customers   CustomerStore
	Discounts   discount.Querier
	Shifts      ShiftStore
}

// TxRunner executes fn against transaction-bound stores, committing only when
// fn returns nil. Any error rolls back every mutation fn made.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

// Service turns a paid cart into an immutable settlement.
type Service struct {
	Tx          TxRunner
	TenderStore tender.Store
	TaxBps      int
	// LoyaltyUnit is the amount, in minor units, that earns one loyalty
	// point. Points accrue on the whole-unit floor of the total.
	LoyaltyUnit int64
	Events      *events.Bus
	Now         func() time.Time
}

// ReturnItem is one product line being returned.
type ReturnItem struct {
	ProductID string
	Qty       int32
}

// ReturnInput describes a return request.
type ReturnInput struct {
	OriginalID string
	CashierID  pgtype.UUID
	Items      []ReturnItem
	Reason     string
	Method     string
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) loyaltyUnit() int64 {
	if s == nil || s.LoyaltyUnit <= 0 {
		return 100
	}
	return s.LoyaltyUnit
}

// Finalize settles the cart: it recomputes pricing from the stored lines,
// requires the tender session to cover the total, and applies every mutation
// in a single transaction so a stock shortage on any line leaves nothing
// changed.
func (s *Service) Finalize(ctx context.Context, cartID string) (repo.Settlement, error) {
	if s == nil || s.Tx == nil {
		return repo.Settlement{}, errors.New("checkout service not configured")
	}
	cID, err := repo.ToUUID(cartID)
	if err != nil {
		return repo.Settlement{}, fmt.Errorf("parse cart id: %w", err)
	}
	sess, err := s.TenderStore.Get(ctx, cartID)
	if err != nil {
		if errors.Is(err, tender.ErrSessionNotFound) {
			recordRejection(ErrNoTender)
			return repo.Settlement{}, ErrNoTender
		}
		return repo.Settlement{}, err
	}
	if !sess.Complete() {
		recordRejection(ErrInsufficientPayment)
		return repo.Settlement{}, ErrInsufficientPayment
	}

	now := s.now()
	var settlement repo.Settlement
	var movements int
	err = s.Tx.InTx(ctx, func(st Stores) error {
		c, err := st.Carts.Get(ctx, cID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("cart %s: %w", cartID, ErrNotFound)
			}
			return err
		}
		items, err := st.Carts.ListItems(ctx, cID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		movements = len(items)

		var discountAmount int64
		discounts := &discount.Service{Q: st.Discounts, Now: s.Now}
		if c.AppliedDiscountCode.Valid {
			var subtotal int64
			lines := make([]discount.Item, 0, len(items))
			for _, it := range items {
				subtotal += it.Subtotal
				lines = append(lines, discount.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
			}
			ev, err := discounts.Evaluate(ctx, c.AppliedDiscountCode.String, subtotal, lines)
			if err != nil {
				return fmt.Errorf("applied discount: %w", err)
			}
			discountAmount = ev.Amount
		}

		priced := make([]pricing.Item, 0, len(items))
		for _, it := range items {
			priced = append(priced, pricing.Item{Qty: int(it.Qty), UnitPrice: it.UnitPrice})
		}
		summary := pricing.Compute(priced, discountAmount, s.TaxBps)
		if summary.Total != sess.Total {
			return ErrTenderStale
		}

		for _, it := range items {
			if _, err := st.Products.AdjustStock(ctx, it.ProductID, -it.Qty); err != nil {
				if errors.Is(err, repo.ErrInsufficientStock) {
					return fmt.Errorf("%s: %w", it.Name, repo.ErrInsufficientStock)
				}
				return err
			}
		}

		payments, err := json.Marshal(sess.Payments)
		if err != nil {
			return err
		}
		var shiftID pgtype.UUID
		shift, err := st.Shifts.GetActiveByCashier(ctx, c.CashierID)
		switch {
		case err == nil:
			shiftID = shift.ID
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return err
		}

		settlement, err = st.Settlements.Create(ctx, repo.Settlement{
			Kind:         repo.SettlementKindSale,
			CashierID:    c.CashierID,
			CustomerID:   c.CustomerID,
			ShiftID:      shiftID,
			Subtotal:     summary.Subtotal,
			Discount:     summary.Discount,
			DiscountCode: c.AppliedDiscountCode,
			Tax:          summary.Tax,
			Total:        summary.Total,
			Payments:     payments,
		})
		if err != nil {
			return err
		}
		reference := pgtype.Text{String: repo.UUIDString(settlement.ID), Valid: true}
		for _, it := range items {
			if err := st.Settlements.CreateItem(ctx, repo.SettlementItem{
				SettlementID: settlement.ID,
				ProductID:    it.ProductID,
				Name:         it.Name,
				Qty:          it.Qty,
				UnitPrice:    it.UnitPrice,
				Subtotal:     it.Subtotal,
			}); err != nil {
				return err
			}
			if _, err := st.Movements.Create(ctx, repo.Movement{
				ProductID:  it.ProductID,
				Kind:       repo.MovementOut,
				Qty:        it.Qty,
				Reason:     "Sale",
				Reference:  reference,
				RecordedBy: c.CashierID,
			}); err != nil {
				return err
			}
		}

		if c.CustomerID.Valid {
			points := summary.Total / s.loyaltyUnit()
			if err := st.Customers.AccrueLoyalty(ctx, c.CustomerID, points, summary.Total,
				pgtype.Timestamptz{Time: now, Valid: true}); err != nil {
				return err
			}
		}
		if c.AppliedDiscountCode.Valid {
			if err := discounts.Settle(ctx, c.AppliedDiscountCode.String, settlement.ID, c.CustomerID, summary.Discount); err != nil {
				return err
			}
		}
		if shiftID.Valid {
			if err := st.Shifts.AccumulateSale(ctx, shiftID, summary.Total, sess.CashPortion()); err != nil {
				return err
			}
		}
		if err := st.Carts.Clear(ctx, cID); err != nil {
			return err
		}
		return st.Carts.SetDiscountCode(ctx, cID, pgtype.Text{})
	})
	if err != nil {
		recordRejection(err)
		return repo.Settlement{}, err
	}
	recordSettlement(repo.SettlementKindSale, settlement.Total, repo.MovementOut, movements)

	_ = s.TenderStore.Delete(ctx, cartID)
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicSettlementCompleted, settlement.ID, map[string]any{
			"settlementId": repo.UUIDString(settlement.ID),
			"cashierId":    repo.UUIDString(settlement.CashierID),
			"total":        settlement.Total,
		})
	}
	return settlement, nil
}

// ProcessReturn records a return: stock comes back, movements log the reason,
// and a kind=return settlement snapshots the refund. Loyalty points and
// discount usage from the original sale are left untouched.
func (s *Service) ProcessReturn(ctx context.Context, in ReturnInput) (repo.Settlement, error) {
	if s == nil || s.Tx == nil {
		return repo.Settlement{}, errors.New("checkout service not configured")
	}
	if len(in.Items) == 0 {
		return repo.Settlement{}, errors.New("return requires at least one item")
	}
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return repo.Settlement{}, errors.New("return quantities must be positive")
		}
	}
	method := in.Method
	if method == "" {
		method = tender.MethodCash
	}

	var settlement repo.Settlement
	var movements int
	err := s.Tx.InTx(ctx, func(st Stores) error {
		var originalID pgtype.UUID
		originalPrices := map[string]int64{}
		if in.OriginalID != "" {
			id, err := repo.ToUUID(in.OriginalID)
			if err != nil {
				return fmt.Errorf("parse original id: %w", err)
			}
			original, err := st.Settlements.Get(ctx, id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if original.Kind != repo.SettlementKindSale {
				return errors.New("can only return against a sale")
			}
			originalID = original.ID
			lines, err := st.Settlements.ListItems(ctx, original.ID)
			if err != nil {
				return err
			}
			for _, line := range lines {
				originalPrices[repo.UUIDString(line.ProductID)] = line.UnitPrice
			}
		}

		reason := "Return"
		if in.Reason != "" {
			reason = "Return: " + in.Reason
		}

		type resolved struct {
			product repo.Product
			qty     int32
			price   int64
		}
		var lines []resolved
		for _, it := range in.Items {
			pID, err := repo.ToUUID(it.ProductID)
			if err != nil {
				return fmt.Errorf("parse product id: %w", err)
			}
			product, err := st.Products.Get(ctx, pID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("product %s: %w", it.ProductID, ErrNotFound)
				}
				return err
			}
			price := product.Price
			if orig, ok := originalPrices[it.ProductID]; ok {
				price = orig
			}
			lines = append(lines, resolved{product: product, qty: it.Qty, price: price})
		}
		movements = len(lines)
		priced := make([]pricing.Item, 0, len(lines))
		for _, line := range lines {
			priced = append(priced, pricing.Item{Qty: int(line.qty), UnitPrice: line.price})
		}
		summary := pricing.Compute(priced, 0, s.TaxBps)

		payments, err := json.Marshal([]tender.Payment{{Method: method, Amount: summary.Total}})
		if err != nil {
			return err
		}
		settlement, err = st.Settlements.Create(ctx, repo.Settlement{
			Kind:       repo.SettlementKindReturn,
			CashierID:  in.CashierID,
			OriginalID: originalID,
			Subtotal:   summary.Subtotal,
			Tax:        summary.Tax,
			Total:      summary.Total,
			Payments:   payments,
			Notes:      pgtype.Text{String: reason, Valid: true},
		})
		if err != nil {
			return err
		}
		reference := pgtype.Text{String: repo.UUIDString(settlement.ID), Valid: true}
		for _, line := range lines {
			if _, err := st.Products.AdjustStock(ctx, line.product.ID, line.qty); err != nil {
				return err
			}
			if err := st.Settlements.CreateItem(ctx, repo.SettlementItem{
				SettlementID: settlement.ID,
				ProductID:    line.product.ID,
				Name:         line.product.Name,
				Qty:          line.qty,
				UnitPrice:    line.price,
				Subtotal:     int64(line.qty) * line.price,
			}); err != nil {
				return err
			}
			if _, err := st.Movements.Create(ctx, repo.Movement{
				ProductID:  line.product.ID,
				Kind:       repo.MovementReturn,
				Qty:        line.qty,
				Reason:     reason,
				Reference:  reference,
				RecordedBy: in.CashierID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return repo.Settlement{}, err
	}
	recordSettlement(repo.SettlementKindReturn, settlement.Total, repo.MovementReturn, movements)

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicSettlementReturned, settlement.ID, map[string]any{
			"settlementId": repo.UUIDString(settlement.ID),
			"originalId":   repo.UUIDString(settlement.OriginalID),
			"total":        settlement.Total,
		})
	}
	return settlement, nil
}

func recordSettlement(kind string, total int64, movementKind string, movements int) {
	if obs.SettlementsTotal != nil {
		obs.SettlementsTotal.WithLabelValues(kind, "completed").Inc()
	}
	if obs.SettlementValue != nil {
		obs.SettlementValue.WithLabelValues(kind).Observe(float64(total))
	}
	if obs.StockMovementsTotal != nil && movements > 0 {
		obs.StockMovementsTotal.WithLabelValues(movementKind).Add(float64(movements))
	}
}

func recordRejection(err error) {
	if obs.CheckoutRejections == nil {
		return
	}
	var reason string
	switch {
	case errors.Is(err, ErrNoTender):
		reason = "no_tender"
	case errors.Is(err, ErrInsufficientPayment):
		reason = "insufficient_payment"
	case errors.Is(err, ErrEmptyCart):
		reason = "empty_cart"
	case errors.Is(err, ErrTenderStale):
		reason = "tender_stale"
	case errors.Is(err, repo.ErrInsufficientStock):
		reason = "insufficient_stock"
	default:
		return
	}
	obs.CheckoutRejections.WithLabelValues(reason).Inc()
}
