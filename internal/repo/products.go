package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrInsufficientStock is returned when a stock delta would drive the level
// below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Products provides catalog persistence.
type Products struct {
	DB DBTX
}

const productColumns = `id, name, barcode, category, description, price, cost_price, stock, min_stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &p.Description, &p.Price, &p.CostPrice, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Get returns one product by id.
func (r Products) Get(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// GetByBarcode returns one product by its barcode.
func (r Products) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode)
	return scanProduct(row)
}

// List returns active products filtered by an optional free-text query and
// category, newest first.
func (r Products) List(ctx context.Context, query, category string, limit, offset int32) ([]Product, error) {
	q := strings.TrimSpace(query)
	rows, err := r.DB.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE is_active
		  AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR barcode = $1)
		  AND ($2 = '' OR category = $2)
		ORDER BY name
		LIMIT $3 OFFSET $4`, q, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListLowStock returns active products at or below their reorder level.
func (r Products) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND stock <= min_stock ORDER BY stock`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new product.
func (r Products) Create(ctx context.Context, p Product) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products (name, barcode, category, description, price, cost_price, stock, min_stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		p.Name, p.Barcode, p.Category, p.Description, p.Price, p.CostPrice, p.Stock, p.MinStock, p.IsActive)
	return scanProduct(row)
}

// Update replaces the mutable descriptive fields of a product. Stock is not
// touched here; all stock changes go through AdjustStock.
func (r Products) Update(ctx context.Context, p Product) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, description = $5, price = $6,
		    cost_price = $7, min_stock = $8, is_active = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Barcode, p.Category, p.Description, p.Price, p.CostPrice, p.MinStock, p.IsActive)
	return scanProduct(row)
}

// AdjustStock applies a signed delta as a single atomic read-modify-write. A
// delta that would take stock negative matches no row and returns
// ErrInsufficientStock, leaving the level untouched.
func (r Products) AdjustStock(ctx context.Context, id pgtype.UUID, delta int32) (int32, error) {
	var stock int32
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock`, id, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientStock
	}
	return stock, err
}

// SetCostPrice records the latest unit cost, used by stock receiving.
func (r Products) SetCostPrice(ctx context.Context, id pgtype.UUID, cost int64) error {
	_, err := r.DB.Exec(ctx, `UPDATE products SET cost_price = $2, updated_at = now() WHERE id = $1`, id, cost)
	return err
}
