package tender

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Store{R: client, TTL: time.Minute}, mr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	sess := NewSession("cart-1", 1000, time.Now())
	if err := sess.Add(MethodCash, 600); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Get(ctx, "cart-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Total != 1000 || len(loaded.Payments) != 1 || loaded.Payments[0].Amount != 600 {
		t.Fatalf("loaded session mismatch: %+v", loaded)
	}
	if loaded.Remaining() != 400 {
		t.Fatalf("remaining = %d, want 400", loaded.Remaining())
	}
}

func TestStoreMissingSession(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, NewSession("cart-2", 500, time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "cart-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, NewSession("cart-3", 500, time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "cart-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "cart-3"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}
