package discount

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// Store captures the persistence methods the admin endpoints need.
type Store interface {
	GetByCode(ctx context.Context, code string) (repo.Discount, error)
	List(ctx context.Context, limit, offset int32) ([]repo.Discount, error)
	Create(ctx context.Context, d repo.Discount) (repo.Discount, error)
	Update(ctx context.Context, d repo.Discount) (repo.Discount, error)
}

// Handler exposes administrative discount management endpoints.
type Handler struct {
	Store Store
	Svc   *Service
}

type discountPayload struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Value       int64      `json:"value"`
	PercentBps  *int32     `json:"percentBps"`
	BuyQuantity *int32     `json:"buyQuantity"`
	GetQuantity *int32     `json:"getQuantity"`
	MinPurchase *int64     `json:"minPurchase"`
	MaxDiscount *int64     `json:"maxDiscount"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
	Active      *bool      `json:"active"`
	UsageLimit  *int32     `json:"usageLimit"`
}

type discountResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Value       int64      `json:"value"`
	PercentBps  *int32     `json:"percentBps,omitempty"`
	BuyQuantity *int32     `json:"buyQuantity,omitempty"`
	GetQuantity *int32     `json:"getQuantity,omitempty"`
	MinPurchase *int64     `json:"minPurchase,omitempty"`
	MaxDiscount *int64     `json:"maxDiscount,omitempty"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	Active      bool       `json:"active"`
	UsageLimit  *int32     `json:"usageLimit,omitempty"`
	UsedCount   int32      `json:"usedCount"`
}

type previewRequest struct {
	Code     string               `json:"code"`
	Subtotal int64                `json:"subtotal"`
	Items    []previewRequestItem `json:"items"`
}

type previewRequestItem struct {
	Qty       int32 `json:"qty"`
	UnitPrice int64 `json:"unitPrice"`
}

// List returns all discount definitions, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	if perPage > 200 {
		perPage = 200
	}
	defs, err := h.Store.List(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list discounts", nil)
		return
	}
	out := make([]discountResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, toResponse(d))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Create inserts a new discount definition.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount store not configured", nil)
		return
	}
	var payload discountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	model, err := buildModel(repo.Discount{}, payload, true)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(r.Context(), model)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", "discount code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create discount", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(created)})
}

// Update mutates an existing definition identified by code. The usage count
// is untouched.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount store not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	existing, err := h.Store.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "discount not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load discount", nil)
		return
	}
	var payload discountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	model, err := buildModel(existing, payload, false)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	updated, err := h.Store.Update(r.Context(), model)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update discount", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(updated)})
}

// Preview computes the discount a code would grant without recording usage.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Qty <= 0 {
			continue
		}
		items = append(items, Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	ev, err := h.Svc.Evaluate(r.Context(), req.Code, req.Subtotal, items)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"code":   ev.Code,
		"amount": ev.Amount,
	}})
}

func buildModel(existing repo.Discount, payload discountPayload, create bool) (repo.Discount, error) {
	model := existing
	if create {
		model.Code = strings.TrimSpace(payload.Code)
		if model.Code == "" {
			return repo.Discount{}, errors.New("code is required")
		}
	}
	if name := strings.TrimSpace(payload.Name); name != "" {
		model.Name = name
	}
	kind := strings.TrimSpace(payload.Kind)
	if kind == "" && !create {
		kind = existing.Kind
	}
	switch kind {
	case KindPercentage:
		if payload.PercentBps == nil || *payload.PercentBps <= 0 || *payload.PercentBps > 10000 {
			if !existing.PercentBps.Valid || create {
				return repo.Discount{}, errors.New("percentBps must be in (0, 10000]")
			}
		} else {
			model.PercentBps = pgtype.Int4{Int32: *payload.PercentBps, Valid: true}
		}
	case KindFixed:
		if payload.Value < 0 {
			return repo.Discount{}, errors.New("value must not be negative")
		}
		model.Value = payload.Value
	case KindBuyXGetY:
		if payload.BuyQuantity != nil {
			model.BuyQty = pgtype.Int4{Int32: *payload.BuyQuantity, Valid: true}
		}
		if payload.GetQuantity != nil {
			model.GetQty = pgtype.Int4{Int32: *payload.GetQuantity, Valid: true}
		}
		if !model.BuyQty.Valid || model.BuyQty.Int32 <= 0 || !model.GetQty.Valid || model.GetQty.Int32 <= 0 {
			return repo.Discount{}, errors.New("buyQuantity and getQuantity must be positive")
		}
	default:
		return repo.Discount{}, errors.New("invalid kind")
	}
	model.Kind = kind
	if payload.MinPurchase != nil {
		model.MinPurchase = pgtype.Int8{Int64: *payload.MinPurchase, Valid: true}
	}
	if payload.MaxDiscount != nil {
		model.MaxDiscount = pgtype.Int8{Int64: *payload.MaxDiscount, Valid: true}
	}
	if payload.StartsAt != nil {
		model.StartsAt = pgtype.Timestamptz{Time: *payload.StartsAt, Valid: true}
	}
	if payload.EndsAt != nil {
		model.EndsAt = pgtype.Timestamptz{Time: *payload.EndsAt, Valid: true}
	}
	// starts_at and ends_at are NOT NULL columns; catch a missing window here
	// instead of surfacing a database error.
	if !model.StartsAt.Valid || !model.EndsAt.Valid {
		return repo.Discount{}, errors.New("startsAt and endsAt are required")
	}
	if model.EndsAt.Time.Before(model.StartsAt.Time) {
		return repo.Discount{}, errors.New("endsAt must not precede startsAt")
	}
	if payload.Active != nil {
		model.IsActive = *payload.Active
	} else if create {
		model.IsActive = true
	}
	if payload.UsageLimit != nil {
		model.UsageLimit = pgtype.Int4{Int32: *payload.UsageLimit, Valid: true}
	}
	return model, nil
}

func toResponse(d repo.Discount) discountResponse {
	resp := discountResponse{
		ID:        repo.UUIDString(d.ID),
		Code:      d.Code,
		Name:      d.Name,
		Kind:      d.Kind,
		Value:     d.Value,
		Active:    d.IsActive,
		UsedCount: d.UsedCount,
	}
	if d.PercentBps.Valid {
		v := d.PercentBps.Int32
		resp.PercentBps = &v
	}
	if d.BuyQty.Valid {
		v := d.BuyQty.Int32
		resp.BuyQuantity = &v
	}
	if d.GetQty.Valid {
		v := d.GetQty.Int32
		resp.GetQuantity = &v
	}
	if d.MinPurchase.Valid {
		v := d.MinPurchase.Int64
		resp.MinPurchase = &v
	}
	if d.MaxDiscount.Valid {
		v := d.MaxDiscount.Int64
		resp.MaxDiscount = &v
	}
	if d.StartsAt.Valid {
		t := d.StartsAt.Time
		resp.StartsAt = &t
	}
	if d.EndsAt.Valid {
		t := d.EndsAt.Time
		resp.EndsAt = &t
	}
	if d.UsageLimit.Valid {
		v := d.UsageLimit.Int32
		resp.UsageLimit = &v
	}
	return resp
}
