package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestIdemBlocksDuplicateCheckout(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	var finalized int
	handler := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		finalized++
		w.WriteHeader(http.StatusCreated)
	}))

	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/abc/checkout", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := post("register-7:sale-001"); rr.Code != http.StatusCreated {
		t.Fatalf("first checkout = %d, want 201", rr.Code)
	}
	rr := post("register-7:sale-001")
	if rr.Code != http.StatusConflict {
		t.Fatalf("replayed checkout = %d, want 409", rr.Code)
	}
	if finalized != 1 {
		t.Fatalf("handler ran %d times, want 1", finalized)
	}

	// A new key is a new sale.
	if rr := post("register-7:sale-002"); rr.Code != http.StatusCreated {
		t.Fatalf("next sale = %d, want 201", rr.Code)
	}

	// Requests without a key are passed through untouched.
	if rr := post(""); rr.Code != http.StatusCreated {
		t.Fatalf("keyless request = %d, want 201", rr.Code)
	}
	if finalized != 3 {
		t.Fatalf("handler ran %d times, want 3", finalized)
	}
}
