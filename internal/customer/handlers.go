package customer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes the customer directory endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// List searches customers by a q fragment across name, email, and phone.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	if perPage > 100 {
		perPage = 100
	}
	customers, err := h.Svc.Search(r.Context(), r.URL.Query().Get("q"), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to search customers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": customers})
}

// Get returns one customer with loyalty state.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

// Create registers a customer.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, c)
}

// Update replaces a customer's contact details.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return in, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return in, false
		}
	}
	return in, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", "email or phone already registered", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "customer operation failed", nil)
	}
}
