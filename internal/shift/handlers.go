package shift

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/repo"
)

// Handler wires shift operations to HTTP.
type Handler struct {
	Svc *Service
}

type shiftResponse struct {
	ID                string     `json:"id"`
	CashierID         string     `json:"cashierId"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	StartingCash      int64      `json:"startingCash"`
	EndingCash        *int64     `json:"endingCash,omitempty"`
	CashSales         int64      `json:"cashSales"`
	TotalSales        int64      `json:"totalSales"`
	TotalTransactions int32      `json:"totalTransactions"`
	ExpectedCash      *int64     `json:"expectedCash,omitempty"`
	Variance          *int64     `json:"variance,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

func cashierFromContext(r *http.Request) pgtype.UUID {
	if uid, ok := common.UserID(r.Context()); ok {
		id, _ := repo.ToUUID(uid)
		return id
	}
	return pgtype.UUID{}
}

// Start opens a shift for the authenticated cashier.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift service not configured", nil)
		return
	}
	var payload struct {
		StartingCash int64 `json:"startingCash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	sh, err := h.Svc.Start(r.Context(), cashierFromContext(r), payload.StartingCash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toShiftResponse(sh)})
}

// Close ends the shift with the counted drawer amount.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift service not configured", nil)
		return
	}
	var payload struct {
		EndingCash int64  `json:"endingCash"`
		Notes      string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	sh, err := h.Svc.End(r.Context(), chi.URLParam(r, "id"), cashierFromContext(r),
		payload.EndingCash, strings.TrimSpace(payload.Notes))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toShiftResponse(sh)})
}

// Active returns the caller's open shift.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift service not configured", nil)
		return
	}
	sh, err := h.Svc.Active(r.Context(), cashierFromContext(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toShiftResponse(sh)})
}

// List returns the caller's shift history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shift service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	shifts, err := h.Svc.History(r.Context(), cashierFromContext(r), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]shiftResponse, 0, len(shifts))
	for _, sh := range shifts {
		out = append(out, toShiftResponse(sh))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrActiveShiftExists):
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", "an active shift already exists", nil)
	case errors.Is(err, ErrShiftClosed):
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", "shift is already closed", nil)
	case errors.Is(err, ErrNotOwner):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "shift belongs to another cashier", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shift not found", nil)
	default:
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	}
}

func toShiftResponse(sh repo.Shift) shiftResponse {
	resp := shiftResponse{
		ID:                repo.UUIDString(sh.ID),
		CashierID:         repo.UUIDString(sh.CashierID),
		Status:            sh.Status,
		StartingCash:      sh.StartingCash,
		CashSales:         sh.CashSales,
		TotalSales:        sh.TotalSales,
		TotalTransactions: sh.TotalTransactions,
	}
	if sh.StartedAt.Valid {
		resp.StartedAt = sh.StartedAt.Time
	}
	if sh.EndedAt.Valid {
		t := sh.EndedAt.Time
		resp.EndedAt = &t
	}
	if sh.EndingCash.Valid {
		v := sh.EndingCash.Int64
		resp.EndingCash = &v
	}
	if sh.ExpectedCash.Valid {
		v := sh.ExpectedCash.Int64
		resp.ExpectedCash = &v
	}
	if sh.Variance.Valid {
		v := sh.Variance.Int64
		resp.Variance = &v
	}
	if sh.Notes.Valid {
		resp.Notes = sh.Notes.String
	}
	return resp
}
