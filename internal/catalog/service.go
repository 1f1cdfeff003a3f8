package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/repo"
)

// ErrNotFound indicates no product matched.
var ErrNotFound = errors.New("product not found")

const cachePrefix = "catalog:"

// Store captures product persistence for the directory.
type Store interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (repo.Product, error)
	List(ctx context.Context, query, category string, limit, offset int32) ([]repo.Product, error)
	ListLowStock(ctx context.Context) ([]repo.Product, error)
	Create(ctx context.Context, p repo.Product) (repo.Product, error)
	Update(ctx context.Context, p repo.Product) (repo.Product, error)
}

// Service orchestrates product lookups, DTO assembly, and caching.
type Service struct {
	Store Store
	Cache *Cache
}

// ListParams captures register-side product filters.
type ListParams struct {
	Query    string
	Category string
	Barcode  string
	Limit    int32
	Offset   int32
}

// Product is the directory payload.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Barcode     string `json:"barcode,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Stock       int32  `json:"stock"`
	MinStock    int32  `json:"minStock"`
	LowStock    bool   `json:"lowStock"`
	Active      bool   `json:"active"`
}

func toProduct(p repo.Product) Product {
	return Product{
		ID:          repo.UUIDString(p.ID),
		Name:        p.Name,
		Barcode:     p.Barcode,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		MinStock:    p.MinStock,
		LowStock:    p.Stock <= p.MinStock,
		Active:      p.IsActive,
	}
}

func listCacheKey(p ListParams) string {
	return cachePrefix + "list:" + strings.ToLower(p.Query) + ":" + strings.ToLower(p.Category) +
		":" + strconv.Itoa(int(p.Limit)) + ":" + strconv.Itoa(int(p.Offset))
}

// List returns products matching the filters, serving from cache when warm.
// A barcode filter resolves exactly one product and bypasses the cache.
func (s *Service) List(ctx context.Context, p ListParams) ([]Product, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("catalog service not configured")
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Barcode != "" {
		product, err := s.Store.GetByBarcode(ctx, p.Barcode)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return []Product{}, nil
			}
			return nil, err
		}
		return []Product{toProduct(product)}, nil
	}
	key := listCacheKey(p)
	var cached []Product
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	products, err := s.Store.List(ctx, p.Query, p.Category, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(products))
	for _, product := range products {
		out = append(out, toProduct(product))
	}
	_ = s.Cache.SetJSON(ctx, key, out)
	return out, nil
}

// Get returns one product by id.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	pID, err := repo.ToUUID(id)
	if err != nil {
		return Product{}, fmt.Errorf("parse product id: %w", err)
	}
	product, err := s.Store.Get(ctx, pID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return toProduct(product), nil
}

// LowStock lists products at or below their minimum level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("catalog service not configured")
	}
	products, err := s.Store.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(products))
	for _, product := range products {
		out = append(out, toProduct(product))
	}
	return out, nil
}

// Input carries admin product fields.
type Input struct {
	Name        string `json:"name" validate:"required"`
	Barcode     string `json:"barcode"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"gte=0"`
	CostPrice   int64  `json:"costPrice" validate:"gte=0"`
	Stock       int32  `json:"stock" validate:"gte=0"`
	MinStock    int32  `json:"minStock" validate:"gte=0"`
	Active      *bool  `json:"active"`
}

// Create inserts a product and invalidates listings.
func (s *Service) Create(ctx context.Context, in Input) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	product, err := s.Store.Create(ctx, repo.Product{
		Name:        strings.TrimSpace(in.Name),
		Barcode:     strings.TrimSpace(in.Barcode),
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Price:       in.Price,
		CostPrice:   in.CostPrice,
		Stock:       in.Stock,
		MinStock:    in.MinStock,
		IsActive:    active,
	})
	if err != nil {
		return Product{}, err
	}
	_ = s.Cache.InvalidatePrefix(ctx, cachePrefix)
	return toProduct(product), nil
}

// Update replaces a product's catalog fields and invalidates listings. Stock
// is not written here; it only moves through inventory and checkout.
func (s *Service) Update(ctx context.Context, id string, in Input) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	pID, err := repo.ToUUID(id)
	if err != nil {
		return Product{}, fmt.Errorf("parse product id: %w", err)
	}
	existing, err := s.Store.Get(ctx, pID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Barcode = strings.TrimSpace(in.Barcode)
	existing.Category = strings.TrimSpace(in.Category)
	existing.Description = in.Description
	existing.Price = in.Price
	existing.CostPrice = in.CostPrice
	existing.MinStock = in.MinStock
	if in.Active != nil {
		existing.IsActive = *in.Active
	}
	updated, err := s.Store.Update(ctx, existing)
	if err != nil {
		return Product{}, err
	}
	_ = s.Cache.InvalidatePrefix(ctx, cachePrefix)
	return toProduct(updated), nil
}

// Invalidate drops cached listings. Inventory calls this after stock moves.
func (s *Service) Invalidate(ctx context.Context) {
	_ = s.Cache.InvalidatePrefix(ctx, cachePrefix)
}
