package discount

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/repo"
)

type memAdminStore struct {
	created []repo.Discount
}

func (m *memAdminStore) GetByCode(_ context.Context, code string) (repo.Discount, error) {
	for _, d := range m.created {
		if d.Code == code {
			return d, nil
		}
	}
	return repo.Discount{}, pgx.ErrNoRows
}

func (m *memAdminStore) List(_ context.Context, _, _ int32) ([]repo.Discount, error) {
	return m.created, nil
}

func (m *memAdminStore) Create(_ context.Context, d repo.Discount) (repo.Discount, error) {
	d.ID = repo.NewUUID()
	m.created = append(m.created, d)
	return d, nil
}

func (m *memAdminStore) Update(_ context.Context, d repo.Discount) (repo.Discount, error) {
	return d, nil
}

func postCreate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/discounts", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Error.Code
}

func TestCreateRequiresValidityWindow(t *testing.T) {
	store := &memAdminStore{}
	h := &Handler{Store: store}

	rr := postCreate(t, h, `{"code":"WELCOME10","name":"Welcome","kind":"percentage","percentBps":1000}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if code := errorCode(t, rr); code != "VALIDATION" {
		t.Fatalf("error code = %q, want VALIDATION", code)
	}
	if len(store.created) != 0 {
		t.Fatalf("nothing should be persisted, got %d", len(store.created))
	}

	// Only one bound set is still incomplete.
	rr = postCreate(t, h, `{"code":"WELCOME10","name":"Welcome","kind":"percentage","percentBps":1000,"startsAt":"2026-09-01T00:00:00Z"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if code := errorCode(t, rr); code != "VALIDATION" {
		t.Fatalf("error code = %q, want VALIDATION", code)
	}
}

func TestCreatePersistsWithWindow(t *testing.T) {
	store := &memAdminStore{}
	h := &Handler{Store: store}

	rr := postCreate(t, h, `{"code":"WELCOME10","name":"Welcome","kind":"percentage","percentBps":1000,"startsAt":"2026-09-01T00:00:00Z","endsAt":"2026-12-31T00:00:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatalf("created = %d, want 1", len(store.created))
	}
	d := store.created[0]
	if !d.StartsAt.Valid || !d.EndsAt.Valid {
		t.Fatalf("window must be stored, got %+v / %+v", d.StartsAt, d.EndsAt)
	}
	if !d.EndsAt.Time.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("endsAt = %v", d.EndsAt.Time)
	}
}
