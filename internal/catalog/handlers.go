package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler serves the product directory and its admin endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// List returns products matching q, category, or barcode filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	if perPage > 100 {
		perPage = 100
	}
	q := r.URL.Query()
	products, err := h.Svc.List(r.Context(), ListParams{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Barcode:  q.Get("barcode"),
		Limit:    int32(perPage),
		Offset:   int32((page - 1) * perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Get returns one product by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, product)
}

// LowStock lists products at or below their minimum stock level.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.Svc.LowStock(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list low stock products", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Create inserts a product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	product, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, product)
}

// Update replaces a product's catalog fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	product, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, product)
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
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", "barcode already in use", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog operation failed", nil)
	}
}
