package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/repo"
)

type memState struct {
	products  map[string]repo.Product
	movements []repo.Movement
}

func (m *memState) clone() *memState {
	c := &memState{products: map[string]repo.Product{}}
	for k, v := range m.products {
		c.products[k] = v
	}
	c.movements = append([]repo.Movement(nil), m.movements...)
	return c
}

type memTx struct {
	st *memState
}

func (m *memTx) InTx(_ context.Context, fn func(Stores) error) error {
	work := m.st.clone()
	if err := fn(Stores{Products: (*memProducts)(work), Movements: (*memMovements)(work)}); err != nil {
		return err
	}
	*m.st = *work
	return nil
}

type memProducts memState

func (m *memProducts) Get(_ context.Context, id pgtype.UUID) (repo.Product, error) {
	p, ok := m.products[repo.UUIDString(id)]
	if !ok {
		return repo.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memProducts) AdjustStock(_ context.Context, id pgtype.UUID, delta int32) (int32, error) {
	p, ok := m.products[repo.UUIDString(id)]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if p.Stock+delta < 0 {
		return 0, repo.ErrInsufficientStock
	}
	p.Stock += delta
	m.products[repo.UUIDString(id)] = p
	return p.Stock, nil
}

func (m *memProducts) SetCostPrice(_ context.Context, id pgtype.UUID, cost int64) error {
	p, ok := m.products[repo.UUIDString(id)]
	if !ok {
		return pgx.ErrNoRows
	}
	p.CostPrice = cost
	m.products[repo.UUIDString(id)] = p
	return nil
}

type memMovements memState

func (m *memMovements) Create(_ context.Context, mv repo.Movement) (repo.Movement, error) {
	// Mirrors the inventory_movements CHECK (qty > 0) constraint.
	if mv.Qty <= 0 {
		return repo.Movement{}, errors.New("movement qty must be positive")
	}
	mv.ID = int64(len(m.movements) + 1)
	m.movements = append(m.movements, mv)
	return mv, nil
}

func (m *memMovements) List(_ context.Context, productID pgtype.UUID, limit, offset int32) ([]repo.Movement, error) {
	var out []repo.Movement
	for _, mv := range m.movements {
		if productID.Valid && !repo.UUIDEqual(mv.ProductID, productID) {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func newService(t *testing.T, stock int32) (*Service, *memState, repo.Product) {
	t.Helper()
	product := repo.Product{ID: repo.NewUUID(), Name: "Beans", Stock: stock, CostPrice: 500}
	st := &memState{products: map[string]repo.Product{repo.UUIDString(product.ID): product}}
	svc := &Service{Tx: &memTx{st: st}, Movements: (*memMovements)(st)}
	return svc, st, product
}

func TestAdjustDerivesDelta(t *testing.T) {
	svc, st, product := newService(t, 10)
	out, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID: repo.UUIDString(product.ID),
		NewLevel:  4,
		Reason:    "shrinkage count",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if out.Stock != 4 {
		t.Fatalf("stock = %d, want 4", out.Stock)
	}
	if len(st.movements) != 1 {
		t.Fatalf("movements = %d, want 1", len(st.movements))
	}
	mv := st.movements[0]
	if mv.Kind != repo.MovementAdjustment || mv.Qty != 6 || mv.Reason != "shrinkage count" {
		t.Fatalf("movement = %+v, want adjustment/6", mv)
	}
	if !mv.Notes.Valid || mv.Notes.String != "stock 10 -> 4" {
		t.Fatalf("notes = %+v, want the level transition", mv.Notes)
	}
}

func TestAdjustUpLogsMagnitudeAndTransition(t *testing.T) {
	svc, st, product := newService(t, 4)
	out, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID: repo.UUIDString(product.ID),
		NewLevel:  12,
		Reason:    "recount",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if out.Stock != 12 {
		t.Fatalf("stock = %d, want 12", out.Stock)
	}
	mv := st.movements[0]
	if mv.Qty != 8 {
		t.Fatalf("qty = %d, want 8", mv.Qty)
	}
	if !mv.Notes.Valid || mv.Notes.String != "stock 4 -> 12" {
		t.Fatalf("notes = %+v, want the level transition", mv.Notes)
	}
}

func TestAdjustNoOpAtSameLevel(t *testing.T) {
	svc, st, product := newService(t, 10)
	if _, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID: repo.UUIDString(product.ID),
		NewLevel:  10,
	}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(st.movements) != 0 {
		t.Fatal("no movement may be logged when the level is unchanged")
	}
}

func TestAdjustRejectsNegativeLevel(t *testing.T) {
	svc, _, product := newService(t, 10)
	if _, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID: repo.UUIDString(product.ID),
		NewLevel:  -1,
	}); err == nil {
		t.Fatal("expected rejection of negative level")
	}
}

func TestAdjustUnknownProduct(t *testing.T) {
	svc, _, _ := newService(t, 10)
	if _, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID: repo.UUIDString(repo.NewUUID()),
		NewLevel:  5,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReceiveUpdatesStockAndCost(t *testing.T) {
	svc, st, product := newService(t, 10)
	out, err := svc.Receive(context.Background(), ReceiveInput{
		ProductID: repo.UUIDString(product.ID),
		Qty:       24,
		CostPrice: 450,
		Reference: "PO-1042",
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if out.Stock != 34 {
		t.Fatalf("stock = %d, want 34", out.Stock)
	}
	if out.CostPrice != 450 {
		t.Fatalf("cost = %d, want 450", out.CostPrice)
	}
	mv := st.movements[0]
	if mv.Kind != repo.MovementIn || mv.Qty != 24 {
		t.Fatalf("movement = %+v, want in/24", mv)
	}
	if !mv.Reference.Valid || mv.Reference.String != "PO-1042" {
		t.Fatalf("reference = %+v, want PO-1042", mv.Reference)
	}
}

func TestReceiveKeepsCostWhenZero(t *testing.T) {
	svc, _, product := newService(t, 10)
	out, err := svc.Receive(context.Background(), ReceiveInput{
		ProductID: repo.UUIDString(product.ID),
		Qty:       5,
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if out.CostPrice != 500 {
		t.Fatalf("cost = %d, want 500 unchanged", out.CostPrice)
	}
}

func TestHistoryFiltersByProduct(t *testing.T) {
	svc, st, product := newService(t, 10)
	other := repo.Product{ID: repo.NewUUID(), Name: "Other", Stock: 3}
	st.products[repo.UUIDString(other.ID)] = other

	if _, err := svc.Receive(context.Background(), ReceiveInput{ProductID: repo.UUIDString(product.ID), Qty: 5}); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := svc.Receive(context.Background(), ReceiveInput{ProductID: repo.UUIDString(other.ID), Qty: 2}); err != nil {
		t.Fatalf("receive other: %v", err)
	}

	movements, err := svc.History(context.Background(), repo.UUIDString(product.ID), 50, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("movements = %d, want 1 scoped to product", len(movements))
	}
	all, err := svc.History(context.Background(), "", 50, 0)
	if err != nil {
		t.Fatalf("history all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("movements = %d, want 2 unscoped", len(all))
	}
}
