package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/repo"
	"github.com/noah-isme/backend-pos/internal/tender"
)

// Reader lists settlements outside the transactional path.
type Reader interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Settlement, error)
	List(ctx context.Context, from, to pgtype.Timestamptz, limit, offset int32) ([]repo.Settlement, error)
	ListItems(ctx context.Context, settlementID pgtype.UUID) ([]repo.SettlementItem, error)
}

// Handler wires settlement operations to HTTP.
type Handler struct {
	Svc    *Service
	Reader Reader
}

type settlementResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	CashierID    string          `json:"cashierId,omitempty"`
	CustomerID   string          `json:"customerId,omitempty"`
	ShiftID      string          `json:"shiftId,omitempty"`
	OriginalID   string          `json:"originalId,omitempty"`
	Subtotal     int64           `json:"subtotal"`
	Discount     int64           `json:"discount"`
	DiscountCode string          `json:"discountCode,omitempty"`
	Tax          int64           `json:"tax"`
	Total        int64           `json:"total"`
	Payments     json.RawMessage `json:"payments"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Items        []lineResponse  `json:"items,omitempty"`
}

type lineResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int32  `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

// Finalize settles the cart against its tender session.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	settlement, err := h.Svc.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toSettlementResponse(settlement, nil)})
}

// Return processes a product return.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload struct {
		OriginalID string `json:"originalId"`
		Reason     string `json:"reason"`
		Method     string `json:"method"`
		Items      []struct {
			ProductID string `json:"productId"`
			Qty       int32  `json:"qty"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	in := ReturnInput{
		OriginalID: strings.TrimSpace(payload.OriginalID),
		Reason:     strings.TrimSpace(payload.Reason),
		Method:     strings.TrimSpace(payload.Method),
	}
	if uid, ok := common.UserID(r.Context()); ok {
		in.CashierID, _ = repo.ToUUID(uid)
	}
	for _, it := range payload.Items {
		in.Items = append(in.Items, ReturnItem{ProductID: strings.TrimSpace(it.ProductID), Qty: it.Qty})
	}
	settlement, err := h.Svc.ProcessReturn(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toSettlementResponse(settlement, nil)})
}

// List returns settlements in an optional time range.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Reader == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement reader not configured", nil)
		return
	}
	from, to := parseRange(r)
	page, perPage := common.ParsePagination(r, 50)
	if perPage > 200 {
		perPage = 200
	}
	settlements, err := h.Reader.List(r.Context(), from, to, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list settlements", nil)
		return
	}
	out := make([]settlementResponse, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, toSettlementResponse(s, nil))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Get returns one settlement with its lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Reader == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement reader not configured", nil)
		return
	}
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid settlement id", nil)
		return
	}
	settlement, err := h.Reader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "settlement not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settlement", nil)
		return
	}
	items, err := h.Reader.ListItems(r.Context(), settlement.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settlement items", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSettlementResponse(settlement, items)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "cart is empty", nil)
	case errors.Is(err, ErrNoTender):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "open a tender session first", nil)
	case errors.Is(err, ErrTenderStale):
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", "cart changed since tender opened", nil)
	case errors.Is(err, ErrInsufficientPayment):
		common.JSONError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_PAYMENT", "payments do not cover the total", nil)
	case errors.Is(err, repo.ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, discount.ErrNotEligible),
		errors.Is(err, discount.ErrInactive),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrUsageLimitReached),
		errors.Is(err, discount.ErrMinimumPurchaseUnmet):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_INVALID", err.Error(), nil)
	case errors.Is(err, tender.ErrSessionNotFound):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "open a tender session first", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement failed", nil)
	}
}

func parseRange(r *http.Request) (from, to pgtype.Timestamptz) {
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = pgtype.Timestamptz{Time: t, Valid: true}
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = pgtype.Timestamptz{Time: t, Valid: true}
		}
	}
	return from, to
}

func toSettlementResponse(s repo.Settlement, items []repo.SettlementItem) settlementResponse {
	resp := settlementResponse{
		ID:         repo.UUIDString(s.ID),
		Kind:       s.Kind,
		CashierID:  repo.UUIDString(s.CashierID),
		CustomerID: repo.UUIDString(s.CustomerID),
		ShiftID:    repo.UUIDString(s.ShiftID),
		OriginalID: repo.UUIDString(s.OriginalID),
		Subtotal:   s.Subtotal,
		Discount:   s.Discount,
		Tax:        s.Tax,
		Total:      s.Total,
		Payments:   s.Payments,
	}
	if s.DiscountCode.Valid {
		resp.DiscountCode = s.DiscountCode.String
	}
	if s.Notes.Valid {
		resp.Notes = s.Notes.String
	}
	if s.CreatedAt.Valid {
		resp.CreatedAt = s.CreatedAt.Time
	}
	for _, it := range items {
		resp.Items = append(resp.Items, lineResponse{
			ProductID: repo.UUIDString(it.ProductID),
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return resp
}
