package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/discount"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// Handler wires cart operations to HTTP.
type Handler struct {
	Svc *Service
}

type itemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Qty       int32  `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

type totalsResponse struct {
	CartID       string         `json:"cartId"`
	CustomerID   *string        `json:"customerId,omitempty"`
	DiscountCode *string        `json:"discountCode,omitempty"`
	Items        []itemResponse `json:"items"`
	Subtotal     int64          `json:"subtotal"`
	Discount     int64          `json:"discount"`
	Tax          int64          `json:"tax"`
	Total        int64          `json:"total"`
}

// Create opens a cart for the authenticated cashier, reusing an existing one
// when its identifier is supplied.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		CartID string `json:"cartId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	var cashierID pgtype.UUID
	if uid, ok := common.UserID(r.Context()); ok {
		cashierID, _ = repo.ToUUID(uid)
	}
	c, err := h.Svc.EnsureCart(r.Context(), strings.TrimSpace(payload.CartID), cashierID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{"cartId": repo.UUIDString(c.ID)},
	})
}

// Get returns cart contents and the current pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	totals, err := h.Svc.Totals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toTotalsResponse(totals)})
}

// AddItem adds a product line by id or barcode.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		Barcode   string `json:"barcode"`
		Qty       int32  `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty == 0 {
		payload.Qty = 1
	}
	item, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"),
		strings.TrimSpace(payload.ProductID), strings.TrimSpace(payload.Barcode), payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toItemResponse(item)})
}

// UpdateItem sets a line to an absolute quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		Qty int32 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"updated": true}})
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyDiscount attaches a discount code to the cart.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	amount, err := h.Svc.ApplyDiscount(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(payload.Code))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"discount": amount}})
}

// RemoveDiscount clears an applied code.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if err := h.Svc.RemoveDiscount(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachCustomer links a loyalty customer to the cart.
func (h *Handler) AttachCustomer(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		CustomerID string `json:"customerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.AttachCustomer(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(payload.CustomerID)); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"attached": true}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "requested quantity exceeds stock", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, discount.ErrNotEligible),
		errors.Is(err, discount.ErrInactive),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrUsageLimitReached),
		errors.Is(err, discount.ErrMinimumPurchaseUnmet):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}

func toItemResponse(it repo.CartItem) itemResponse {
	return itemResponse{
		ID:        repo.UUIDString(it.ID),
		ProductID: repo.UUIDString(it.ProductID),
		Name:      it.Name,
		Qty:       it.Qty,
		UnitPrice: it.UnitPrice,
		Subtotal:  it.Subtotal,
	}
}

func toTotalsResponse(t Totals) totalsResponse {
	resp := totalsResponse{
		CartID:   repo.UUIDString(t.Cart.ID),
		Items:    make([]itemResponse, 0, len(t.Items)),
		Subtotal: t.Summary.Subtotal,
		Discount: t.Summary.Discount,
		Tax:      t.Summary.Tax,
		Total:    t.Summary.Total,
	}
	if t.Cart.CustomerID.Valid {
		v := repo.UUIDString(t.Cart.CustomerID)
		resp.CustomerID = &v
	}
	if t.Cart.AppliedDiscountCode.Valid {
		v := t.Cart.AppliedDiscountCode.String
		resp.DiscountCode = &v
	}
	for _, it := range t.Items {
		resp.Items = append(resp.Items, toItemResponse(it))
	}
	return resp
}
