package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/repo"
)

type memStore struct {
	products []repo.Product
	listHits int
}

func (m *memStore) Get(_ context.Context, id pgtype.UUID) (repo.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return repo.Product{}, pgx.ErrNoRows
}

func (m *memStore) GetByBarcode(_ context.Context, barcode string) (repo.Product, error) {
	for _, p := range m.products {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return repo.Product{}, pgx.ErrNoRows
}

func (m *memStore) List(_ context.Context, query, category string, limit, offset int32) ([]repo.Product, error) {
	m.listHits++
	var out []repo.Product
	for _, p := range m.products {
		if query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) ListLowStock(_ context.Context) ([]repo.Product, error) {
	var out []repo.Product
	for _, p := range m.products {
		if p.Stock <= p.MinStock {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, p repo.Product) (repo.Product, error) {
	p.ID = repo.NewUUID()
	m.products = append(m.products, p)
	return p, nil
}

func (m *memStore) Update(_ context.Context, p repo.Product) (repo.Product, error) {
	for i := range m.products {
		if m.products[i].ID == p.ID {
			m.products[i] = p
			return p, nil
		}
	}
	return repo.Product{}, pgx.ErrNoRows
}

func newTestService(t *testing.T) (*Service, *memStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := &memStore{products: []repo.Product{
		{ID: repo.NewUUID(), Name: "Espresso", Barcode: "750000000001", Category: "drinks", Price: 299, Stock: 10, MinStock: 3, IsActive: true},
		{ID: repo.NewUUID(), Name: "Croissant", Category: "bakery", Price: 450, Stock: 2, MinStock: 5, IsActive: true},
	}}
	return &Service{Store: store, Cache: NewCache(client, time.Minute)}, store, mr
}

func TestListServesSecondReadFromCache(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.List(ctx, ListParams{Category: "drinks"})
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if len(first) != 1 || first[0].Name != "Espresso" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second, err := svc.List(ctx, ListParams{Category: "drinks"})
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(second) != 1 || second[0].Name != "Espresso" {
		t.Fatalf("unexpected cached page: %+v", second)
	}
	if store.listHits != 1 {
		t.Fatalf("expected one store read, got %d", store.listHits)
	}
}

func TestMutationInvalidatesCachedListings(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, ListParams{}); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := svc.Create(ctx, Input{Name: "Bagel", Category: "bakery", Price: 350, Stock: 6, MinStock: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	page, err := svc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list after create: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 products after create, got %d", len(page))
	}
	if store.listHits != 2 {
		t.Fatalf("expected cache miss after invalidation, store reads = %d", store.listHits)
	}
}

func TestBarcodeLookupBypassesCache(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		page, err := svc.List(ctx, ListParams{Barcode: "750000000001"})
		if err != nil {
			t.Fatalf("barcode lookup: %v", err)
		}
		if len(page) != 1 || page[0].Name != "Espresso" {
			t.Fatalf("unexpected barcode result: %+v", page)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("barcode lookups must not populate the cache, keys = %v", mr.Keys())
	}
	if store.listHits != 0 {
		t.Fatalf("barcode lookup should not touch the list query")
	}

	page, err := svc.List(ctx, ListParams{Barcode: "000000000000"})
	if err != nil {
		t.Fatalf("unknown barcode: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("unknown barcode should yield no products, got %+v", page)
	}
}

func TestLowStockFlag(t *testing.T) {
	svc, _, _ := newTestService(t)

	low, err := svc.LowStock(context.Background())
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].Name != "Croissant" || !low[0].LowStock {
		t.Fatalf("unexpected low stock page: %+v", low)
	}
}

func TestUpdateNeverWritesStock(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	id := repo.UUIDString(store.products[0].ID)
	updated, err := svc.Update(ctx, id, Input{Name: "Double Espresso", Category: "drinks", Price: 399, Stock: 999, MinStock: 3})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price != 399 || updated.Name != "Double Espresso" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.Stock != 10 {
		t.Fatalf("stock must only move through inventory, got %d", updated.Stock)
	}
}

func TestGetUnknownProduct(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), repo.UUIDString(repo.NewUUID())); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
