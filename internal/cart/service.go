package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrInsufficientStock is returned when a line would exceed available stock.
// The check here is advisory; the authoritative guard runs at checkout.
var ErrInsufficientStock = errors.New("insufficient stock")

// Store captures the cart persistence methods used by the service.
type Store interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Cart, error)
	Create(ctx context.Context, cashierID pgtype.UUID, expiresAt pgtype.Timestamptz) (repo.Cart, error)
	Touch(ctx context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error
	SetCustomer(ctx context.Context, id, customerID pgtype.UUID) error
	SetDiscountCode(ctx context.Context, id pgtype.UUID, code pgtype.Text) error
	ListItems(ctx context.Context, cartID pgtype.UUID) ([]repo.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID pgtype.UUID) (repo.CartItem, error)
	CreateItem(ctx context.Context, it repo.CartItem) (repo.CartItem, error)
	UpdateItemQty(ctx context.Context, itemID pgtype.UUID, qty int32, subtotal int64) error
	DeleteItem(ctx context.Context, cartID, itemID pgtype.UUID) error
	Clear(ctx context.Context, cartID pgtype.UUID) error
}

// ProductStore resolves catalog entries for cart lines.
type ProductStore interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (repo.Product, error)
}

// Service encapsulates register basket operations.
type Service struct {
	Store     Store
	Products  ProductStore
	Discounts *discount.Service
	TaxBps    int
	TTL       time.Duration
	Now       func() time.Time
}

// Totals is a cart with its lines and computed pricing.
type Totals struct {
	Cart    repo.Cart
	Items   []repo.CartItem
	Summary pricing.Summary
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 12 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) expires() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
}

// EnsureCart loads the identified cart or creates a fresh one for the cashier.
func (s *Service) EnsureCart(ctx context.Context, cartID string, cashierID pgtype.UUID) (repo.Cart, error) {
	if s == nil || s.Store == nil {
		return repo.Cart{}, errors.New("cart service not configured")
	}
	if cartID != "" {
		id, err := repo.ToUUID(cartID)
		if err != nil {
			return repo.Cart{}, fmt.Errorf("parse cart id: %w", err)
		}
		c, err := s.Store.Get(ctx, id)
		if err == nil {
			_ = s.Store.Touch(ctx, c.ID, s.expires())
			return c, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return repo.Cart{}, err
		}
	}
	return s.Store.Create(ctx, cashierID, s.expires())
}

// Get loads a cart by its string identifier.
func (s *Service) Get(ctx context.Context, cartID string) (repo.Cart, error) {
	if s == nil || s.Store == nil {
		return repo.Cart{}, errors.New("cart service not configured")
	}
	id, err := repo.ToUUID(cartID)
	if err != nil {
		return repo.Cart{}, fmt.Errorf("parse cart id: %w", err)
	}
	c, err := s.Store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.Cart{}, ErrNotFound
	}
	return c, err
}

// AddItem inserts a product line or increments an existing one. The quantity
// is capped against current stock so the register surfaces shortages early.
func (s *Service) AddItem(ctx context.Context, cartID string, productID string, barcode string, qty int32) (repo.CartItem, error) {
	if s == nil || s.Store == nil || s.Products == nil {
		return repo.CartItem{}, errors.New("cart service not configured")
	}
	if qty <= 0 {
		return repo.CartItem{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return repo.CartItem{}, err
	}

	var product repo.Product
	switch {
	case productID != "":
		pID, err := repo.ToUUID(productID)
		if err != nil {
			return repo.CartItem{}, fmt.Errorf("parse product id: %w", err)
		}
		product, err = s.Products.Get(ctx, pID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repo.CartItem{}, fmt.Errorf("product not found: %w", ErrInvalidInput)
			}
			return repo.CartItem{}, err
		}
	case barcode != "":
		product, err = s.Products.GetByBarcode(ctx, barcode)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repo.CartItem{}, fmt.Errorf("barcode not found: %w", ErrInvalidInput)
			}
			return repo.CartItem{}, err
		}
	default:
		return repo.CartItem{}, fmt.Errorf("productId or barcode required: %w", ErrInvalidInput)
	}
	if !product.IsActive {
		return repo.CartItem{}, fmt.Errorf("product inactive: %w", ErrInvalidInput)
	}

	existing, err := s.Store.FindItemByProduct(ctx, c.ID, product.ID)
	if err == nil {
		newQty := existing.Qty + qty
		if newQty > product.Stock {
			return repo.CartItem{}, ErrInsufficientStock
		}
		if err := s.Store.UpdateItemQty(ctx, existing.ID, newQty, int64(newQty)*existing.UnitPrice); err != nil {
			return repo.CartItem{}, err
		}
		existing.Qty = newQty
		existing.Subtotal = int64(newQty) * existing.UnitPrice
		_ = s.Store.Touch(ctx, c.ID, s.expires())
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return repo.CartItem{}, err
	}

	if qty > product.Stock {
		return repo.CartItem{}, ErrInsufficientStock
	}
	item, err := s.Store.CreateItem(ctx, repo.CartItem{
		CartID:    c.ID,
		ProductID: product.ID,
		Name:      product.Name,
		Qty:       qty,
		UnitPrice: product.Price,
		Subtotal:  int64(qty) * product.Price,
	})
	if err != nil {
		return repo.CartItem{}, err
	}
	_ = s.Store.Touch(ctx, c.ID, s.expires())
	return item, nil
}

// UpdateQty sets a line to an absolute quantity. Zero removes the line.
func (s *Service) UpdateQty(ctx context.Context, cartID, itemID string, qty int32) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty < 0 {
		return fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	iID, err := repo.ToUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	if qty == 0 {
		if err := s.Store.DeleteItem(ctx, c.ID, iID); err != nil {
			return err
		}
		_ = s.Store.Touch(ctx, c.ID, s.expires())
		return nil
	}
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if !repo.UUIDEqual(it.ID, iID) {
			continue
		}
		if s.Products != nil {
			product, err := s.Products.Get(ctx, it.ProductID)
			if err == nil && qty > product.Stock {
				return ErrInsufficientStock
			}
		}
		if err := s.Store.UpdateItemQty(ctx, it.ID, qty, int64(qty)*it.UnitPrice); err != nil {
			return err
		}
		_ = s.Store.Touch(ctx, c.ID, s.expires())
		return nil
	}
	return ErrNotFound
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	iID, err := repo.ToUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	if err := s.Store.DeleteItem(ctx, c.ID, iID); err != nil {
		return err
	}
	_ = s.Store.Touch(ctx, c.ID, s.expires())
	return nil
}

// Clear removes all lines and the applied discount code.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	if err := s.Store.Clear(ctx, c.ID); err != nil {
		return err
	}
	return s.Store.SetDiscountCode(ctx, c.ID, pgtype.Text{})
}

// ApplyDiscount validates the code against the current cart and attaches it,
// returning the discount amount it would grant right now.
func (s *Service) ApplyDiscount(ctx context.Context, cartID, code string) (int64, error) {
	if s == nil || s.Store == nil || s.Discounts == nil {
		return 0, errors.New("cart service not configured")
	}
	if code == "" {
		return 0, fmt.Errorf("discount code required: %w", ErrInvalidInput)
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return 0, err
	}
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("cart empty: %w", ErrInvalidInput)
	}
	var subtotal int64
	lines := make([]discount.Item, 0, len(items))
	for _, it := range items {
		subtotal += it.Subtotal
		lines = append(lines, discount.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	ev, err := s.Discounts.Evaluate(ctx, code, subtotal, lines)
	if err != nil {
		return 0, err
	}
	if err := s.Store.SetDiscountCode(ctx, c.ID, pgtype.Text{String: ev.Code, Valid: true}); err != nil {
		return 0, err
	}
	_ = s.Store.Touch(ctx, c.ID, s.expires())
	return ev.Amount, nil
}

// RemoveDiscount clears an applied discount code.
func (s *Service) RemoveDiscount(ctx context.Context, cartID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	return s.Store.SetDiscountCode(ctx, c.ID, pgtype.Text{})
}

// AttachCustomer links a loyalty customer to the cart.
func (s *Service) AttachCustomer(ctx context.Context, cartID, customerID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	var cID pgtype.UUID
	if customerID != "" {
		cID, err = repo.ToUUID(customerID)
		if err != nil {
			return fmt.Errorf("parse customer id: %w", err)
		}
	}
	return s.Store.SetCustomer(ctx, c.ID, cID)
}

// Totals loads the cart with its lines and computes register totals. The
// applied discount is re-evaluated against the current lines; a code that no
// longer qualifies contributes zero rather than failing the read.
func (s *Service) Totals(ctx context.Context, cartID string) (Totals, error) {
	if s == nil || s.Store == nil {
		return Totals{}, errors.New("cart service not configured")
	}
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return Totals{}, err
	}
	return s.TotalsFor(ctx, c)
}

// CartTotal returns the amount currently due for the cart. Tender sessions
// use this to detect repricing between payments.
func (s *Service) CartTotal(ctx context.Context, cartID string) (int64, error) {
	t, err := s.Totals(ctx, cartID)
	if err != nil {
		return 0, err
	}
	return t.Summary.Total, nil
}

// TotalsFor computes register totals for an already loaded cart.
func (s *Service) TotalsFor(ctx context.Context, c repo.Cart) (Totals, error) {
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return Totals{}, err
	}
	var discountAmount int64
	if c.AppliedDiscountCode.Valid && s.Discounts != nil {
		var subtotal int64
		lines := make([]discount.Item, 0, len(items))
		for _, it := range items {
			subtotal += it.Subtotal
			lines = append(lines, discount.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
		}
		if ev, err := s.Discounts.Evaluate(ctx, c.AppliedDiscountCode.String, subtotal, lines); err == nil {
			discountAmount = ev.Amount
		}
	}
	priced := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		priced = append(priced, pricing.Item{Qty: int(it.Qty), UnitPrice: it.UnitPrice})
	}
	return Totals{
		Cart:    c,
		Items:   items,
		Summary: pricing.Compute(priced, discountAmount, s.TaxBps),
	}, nil
}
