package tender

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes tender session endpoints under a cart.
type Handler struct {
	Svc *Service
}

type sessionResponse struct {
	CartID    string    `json:"cartId"`
	Total     int64     `json:"total"`
	Payments  []Payment `json:"payments"`
	Paid      int64     `json:"paid"`
	Remaining int64     `json:"remaining"`
	Complete  bool      `json:"complete"`
}

// Open starts or refreshes the tender session for the cart.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tender service not configured", nil)
		return
	}
	sess, err := h.Svc.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toSessionResponse(sess)})
}

// Get returns the current session state.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tender service not configured", nil)
		return
	}
	sess, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSessionResponse(sess)})
}

// AddPayment appends a payment line.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tender service not configured", nil)
		return
	}
	var payload struct {
		Method string `json:"method"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	sess, err := h.Svc.AddPayment(r.Context(), chi.URLParam(r, "id"), payload.Method, payload.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toSessionResponse(sess)})
}

// RemovePayment deletes a payment line by index.
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tender service not configured", nil)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payment index", nil)
		return
	}
	sess, err := h.Svc.RemovePayment(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSessionResponse(sess)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "tender session not found", nil)
	case errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrInvalidAmount):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrExceedsRemaining):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrNoSuchPayment):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tender operation failed", nil)
	}
}

func toSessionResponse(s *Session) sessionResponse {
	payments := s.Payments
	if payments == nil {
		payments = []Payment{}
	}
	return sessionResponse{
		CartID:    s.CartID,
		Total:     s.Total,
		Payments:  payments,
		Paid:      s.Paid(),
		Remaining: s.Remaining(),
		Complete:  s.Complete(),
	}
}
