package inventory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// Handler wires inventory operations to HTTP.
type Handler struct {
	Svc *Service
}

type productStockResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Stock     int32  `json:"stock"`
	CostPrice int64  `json:"costPrice"`
}

type movementResponse struct {
	ID        int64     `json:"id"`
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Qty       int32     `json:"qty"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Adjust sets a product to an absolute stock level.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "inventory service not configured", nil)
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		NewLevel  int32  `json:"newLevel"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	in := AdjustInput{
		ProductID: strings.TrimSpace(payload.ProductID),
		NewLevel:  payload.NewLevel,
		Reason:    strings.TrimSpace(payload.Reason),
	}
	if uid, ok := common.UserID(r.Context()); ok {
		in.RecordedBy, _ = repo.ToUUID(uid)
	}
	product, err := h.Svc.Adjust(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toStockResponse(product)})
}

// Receive books incoming supplier stock.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "inventory service not configured", nil)
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		Qty       int32  `json:"qty"`
		CostPrice int64  `json:"costPrice"`
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	in := ReceiveInput{
		ProductID: strings.TrimSpace(payload.ProductID),
		Qty:       payload.Qty,
		CostPrice: payload.CostPrice,
		Reference: strings.TrimSpace(payload.Reference),
	}
	if uid, ok := common.UserID(r.Context()); ok {
		in.RecordedBy, _ = repo.ToUUID(uid)
	}
	product, err := h.Svc.Receive(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toStockResponse(product)})
}

// Movements lists the inventory log.
func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "inventory service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	if perPage > 200 {
		perPage = 200
	}
	movements, err := h.Svc.History(r.Context(), strings.TrimSpace(r.URL.Query().Get("productId")),
		int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		resp := movementResponse{
			ID:        m.ID,
			ProductID: repo.UUIDString(m.ProductID),
			Kind:      m.Kind,
			Qty:       m.Qty,
			Reason:    m.Reason,
		}
		if m.Reference.Valid {
			resp.Reference = m.Reference.String
		}
		if m.Notes.Valid {
			resp.Notes = m.Notes.String
		}
		if m.CreatedAt.Valid {
			resp.CreatedAt = m.CreatedAt.Time
		}
		out = append(out, resp)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, repo.ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "stock cannot go negative", nil)
	default:
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	}
}

func toStockResponse(p repo.Product) productStockResponse {
	return productStockResponse{
		ID:        repo.UUIDString(p.ID),
		Name:      p.Name,
		Stock:     p.Stock,
		CostPrice: p.CostPrice,
	}
}
