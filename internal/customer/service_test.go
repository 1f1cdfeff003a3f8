package customer

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/repo"
)

type memStore struct {
	customers []repo.Customer
}

func (m *memStore) Get(_ context.Context, id pgtype.UUID) (repo.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return repo.Customer{}, pgx.ErrNoRows
}

func (m *memStore) Search(_ context.Context, query string, limit, offset int32) ([]repo.Customer, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []repo.Customer
	for _, c := range m.customers {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) || strings.Contains(c.Phone, q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, c repo.Customer) (repo.Customer, error) {
	c.ID = repo.NewUUID()
	m.customers = append(m.customers, c)
	return c, nil
}

func (m *memStore) Update(_ context.Context, c repo.Customer) (repo.Customer, error) {
	for i := range m.customers {
		if m.customers[i].ID == c.ID {
			m.customers[i] = c
			return c, nil
		}
	}
	return repo.Customer{}, pgx.ErrNoRows
}

func newTestService() (*Service, *memStore) {
	store := &memStore{customers: []repo.Customer{
		{ID: repo.NewUUID(), Name: "Dana Whitfield", Email: "dana@example.com", Phone: "555-0101", LoyaltyPoints: 42, TotalSpent: 12900},
		{ID: repo.NewUUID(), Name: "Marcus Reed", Phone: "555-0199"},
	}}
	return &Service{Store: store}, store
}

func TestSearchMatchesNameEmailAndPhone(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, q := range []string{"dana", "DANA@EXAMPLE", "555-0101"} {
		got, err := svc.Search(ctx, q, 50, 0)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(got) != 1 || got[0].Name != "Dana Whitfield" {
			t.Fatalf("search %q: unexpected result %+v", q, got)
		}
	}
	all, err := svc.Search(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(all))
	}
}

func TestCreateNormalisesContactFields(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.Create(context.Background(), Input{Name: "  Avery Cole ", Email: "  Avery@Example.COM ", Phone: " 555-0123 "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Avery Cole" || c.Email != "avery@example.com" || c.Phone != "555-0123" {
		t.Fatalf("unexpected normalisation: %+v", c)
	}
	if c.LoyaltyPoints != 0 || c.TotalSpent != 0 {
		t.Fatalf("new customers start with zero loyalty state: %+v", c)
	}
}

func TestUpdatePreservesLoyaltyState(t *testing.T) {
	svc, store := newTestService()
	id := repo.UUIDString(store.customers[0].ID)

	updated, err := svc.Update(context.Background(), id, Input{Name: "Dana W.", Email: "dana@example.com", Phone: "555-2222"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != "555-2222" {
		t.Fatalf("phone not updated: %+v", updated)
	}
	if updated.LoyaltyPoints != 42 || updated.TotalSpent != 12900 {
		t.Fatalf("loyalty state must survive contact edits: %+v", updated)
	}
}

func TestGetUnknownCustomer(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Get(context.Background(), repo.UUIDString(repo.NewUUID())); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
