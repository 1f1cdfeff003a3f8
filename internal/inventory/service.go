package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("product not found")

// ProductStore mutates catalog stock levels.
type ProductStore interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
	AdjustStock(ctx context.Context, id pgtype.UUID, delta int32) (int32, error)
	SetCostPrice(ctx context.Context, id pgtype.UUID, cost int64) error
}

// MovementStore appends the inventory log.
type MovementStore interface {
	Create(ctx context.Context, m repo.Movement) (repo.Movement, error)
	List(ctx context.Context, productID pgtype.UUID, limit, offset int32) ([]repo.Movement, error)
}

// Stores bundles the repositories bound to one transaction.
type Stores struct {
	Products  ProductStore
	Movements MovementStore
}

// TxRunner executes fn atomically: the stock change and its log entry land
// together or not at all.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

// Service is the single entry point for manual stock mutation. Sales and
// returns go through checkout; everything else goes through here.
type Service struct {
	Tx        TxRunner
	Movements MovementStore
}

// AdjustInput sets a product to an absolute stock level.
type AdjustInput struct {
	ProductID  string
	NewLevel   int32
	Reason     string
	RecordedBy pgtype.UUID
}

// ReceiveInput books incoming supplier stock.
type ReceiveInput struct {
	ProductID  string
	Qty        int32
	CostPrice  int64
	Reference  string
	RecordedBy pgtype.UUID
}

// Adjust moves a product to the requested absolute level, logging the change
// as an adjustment movement. Movement quantities are magnitudes; the notes
// record the level transition, which carries the direction.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (repo.Product, error) {
	if s == nil || s.Tx == nil {
		return repo.Product{}, errors.New("inventory service not configured")
	}
	if in.NewLevel < 0 {
		return repo.Product{}, errors.New("stock level must not be negative")
	}
	pID, err := repo.ToUUID(in.ProductID)
	if err != nil {
		return repo.Product{}, fmt.Errorf("parse product id: %w", err)
	}
	reason := in.Reason
	if reason == "" {
		reason = "Manual adjustment"
	}
	var out repo.Product
	var logged bool
	err = s.Tx.InTx(ctx, func(st Stores) error {
		product, err := st.Products.Get(ctx, pID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		delta := in.NewLevel - product.Stock
		if delta == 0 {
			out = product
			return nil
		}
		stock, err := st.Products.AdjustStock(ctx, pID, delta)
		if err != nil {
			return err
		}
		qty := delta
		if qty < 0 {
			qty = -qty
		}
		if _, err := st.Movements.Create(ctx, repo.Movement{
			ProductID:  pID,
			Kind:       repo.MovementAdjustment,
			Qty:        qty,
			Reason:     reason,
			RecordedBy: in.RecordedBy,
			Notes:      pgtype.Text{String: fmt.Sprintf("stock %d -> %d", product.Stock, in.NewLevel), Valid: true},
		}); err != nil {
			return err
		}
		logged = true
		product.Stock = stock
		out = product
		return nil
	})
	if err == nil && logged && obs.StockMovementsTotal != nil {
		obs.StockMovementsTotal.WithLabelValues(repo.MovementAdjustment).Inc()
	}
	return out, err
}

// Receive books supplier stock in and updates the cost price when provided.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (repo.Product, error) {
	if s == nil || s.Tx == nil {
		return repo.Product{}, errors.New("inventory service not configured")
	}
	if in.Qty <= 0 {
		return repo.Product{}, errors.New("received quantity must be positive")
	}
	pID, err := repo.ToUUID(in.ProductID)
	if err != nil {
		return repo.Product{}, fmt.Errorf("parse product id: %w", err)
	}
	var out repo.Product
	err = s.Tx.InTx(ctx, func(st Stores) error {
		product, err := st.Products.Get(ctx, pID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		stock, err := st.Products.AdjustStock(ctx, pID, in.Qty)
		if err != nil {
			return err
		}
		if in.CostPrice > 0 {
			if err := st.Products.SetCostPrice(ctx, pID, in.CostPrice); err != nil {
				return err
			}
			product.CostPrice = in.CostPrice
		}
		var reference pgtype.Text
		if in.Reference != "" {
			reference = pgtype.Text{String: in.Reference, Valid: true}
		}
		if _, err := st.Movements.Create(ctx, repo.Movement{
			ProductID:  pID,
			Kind:       repo.MovementIn,
			Qty:        in.Qty,
			Reason:     "Stock received",
			Reference:  reference,
			RecordedBy: in.RecordedBy,
		}); err != nil {
			return err
		}
		product.Stock = stock
		out = product
		return nil
	})
	if err == nil && obs.StockMovementsTotal != nil {
		obs.StockMovementsTotal.WithLabelValues(repo.MovementIn).Inc()
	}
	return out, err
}

// History lists movements, optionally scoped to one product.
func (s *Service) History(ctx context.Context, productID string, limit, offset int32) ([]repo.Movement, error) {
	if s == nil || s.Movements == nil {
		return nil, errors.New("inventory service not configured")
	}
	var pID pgtype.UUID
	if productID != "" {
		var err error
		pID, err = repo.ToUUID(productID)
		if err != nil {
			return nil, fmt.Errorf("parse product id: %w", err)
		}
	}
	return s.Movements.List(ctx, pID, limit, offset)
}
