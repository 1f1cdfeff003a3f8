package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Carts provides register basket persistence.
type Carts struct {
	DB DBTX
}

const cartColumns = `id, cashier_id, customer_id, applied_discount_code, created_at, updated_at, expires_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.CashierID, &c.CustomerID, &c.AppliedDiscountCode, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// Get returns one cart by id.
func (r Carts) Get(ctx context.Context, id pgtype.UUID) (Cart, error) {
	return scanCart(r.DB.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
}

// Create opens a new cart for the cashier.
func (r Carts) Create(ctx context.Context, cashierID pgtype.UUID, expiresAt pgtype.Timestamptz) (Cart, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO carts (cashier_id, expires_at) VALUES ($1, $2)
		RETURNING `+cartColumns, cashierID, expiresAt)
	return scanCart(row)
}

// Touch extends the cart lifetime.
func (r Carts) Touch(ctx context.Context, id pgtype.UUID, expiresAt pgtype.Timestamptz) error {
	_, err := r.DB.Exec(ctx, `UPDATE carts SET updated_at = now(), expires_at = $2 WHERE id = $1`, id, expiresAt)
	return err
}

// SetCustomer attaches or detaches the loyalty customer.
func (r Carts) SetCustomer(ctx context.Context, id, customerID pgtype.UUID) error {
	_, err := r.DB.Exec(ctx, `UPDATE carts SET customer_id = $2, updated_at = now() WHERE id = $1`, id, customerID)
	return err
}

// SetDiscountCode stores the applied code, replacing any previous one. An
// invalid pgtype.Text clears it.
func (r Carts) SetDiscountCode(ctx context.Context, id pgtype.UUID, code pgtype.Text) error {
	_, err := r.DB.Exec(ctx, `UPDATE carts SET applied_discount_code = $2, updated_at = now() WHERE id = $1`, id, code)
	return err
}

// ListItems returns cart lines in insertion order.
func (r Carts) ListItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, cart_id, product_id, name, qty, unit_price, subtotal
		FROM cart_items WHERE cart_id = $1 ORDER BY id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindItemByProduct returns the line holding the product, if any.
func (r Carts) FindItemByProduct(ctx context.Context, cartID, productID pgtype.UUID) (CartItem, error) {
	var it CartItem
	err := r.DB.QueryRow(ctx, `
		SELECT id, cart_id, product_id, name, qty, unit_price, subtotal
		FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Qty, &it.UnitPrice, &it.Subtotal)
	return it, err
}

// CreateItem inserts a new line.
func (r Carts) CreateItem(ctx context.Context, it CartItem) (CartItem, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, name, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`, it.CartID, it.ProductID, it.Name, it.Qty, it.UnitPrice, it.Subtotal).Scan(&it.ID)
	return it, err
}

// UpdateItemQty replaces a line's quantity and derived subtotal.
func (r Carts) UpdateItemQty(ctx context.Context, itemID pgtype.UUID, qty int32, subtotal int64) error {
	_, err := r.DB.Exec(ctx, `UPDATE cart_items SET qty = $2, subtotal = $3 WHERE id = $1`, itemID, qty, subtotal)
	return err
}

// DeleteItem removes a line.
func (r Carts) DeleteItem(ctx context.Context, cartID, itemID pgtype.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}

// Clear removes every line and detaches discount and customer. Used after a
// settlement completes or the cashier abandons the sale.
func (r Carts) Clear(ctx context.Context, cartID pgtype.UUID) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	_, err := r.DB.Exec(ctx, `
		UPDATE carts SET applied_discount_code = NULL, customer_id = NULL, updated_at = now()
		WHERE id = $1`, cartID)
	return err
}
