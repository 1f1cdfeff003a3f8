package report

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes reporting read endpoints.
type Handler struct {
	Svc *Service
}

func (h *Handler) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	now := h.Svc.now()
	var from, to time.Time
	if fromStr != "" && toStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return from, to, false
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return from, to, false
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if raw := query.Get("days"); raw != "" {
			parsed := common.AtoiDefault(raw, days)
			if parsed > 0 {
				days = parsed
			}
		}
		to = now
		from = to.AddDate(0, 0, -days)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return from, to, false
	}
	return from, to, true
}

// Sales returns daily sales aggregates for the requested range.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.Sales(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load sales report", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// TopProducts returns the best sellers for the requested range.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	rows, err := h.Svc.TopProducts(r.Context(), from, to, int32(limit))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load top products", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// PaymentMix returns tendered amounts per payment method for the range.
func (h *Handler) PaymentMix(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.PaymentMix(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load payment mix", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Shifts returns closed-shift reconciliation summaries for the range.
func (h *Handler) Shifts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.ShiftSummaries(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load shift summaries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
