package catalog

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cpq/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service    *Service
	validate   *validator.Validate
	defaultOrg string
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service    *Service
	Validate   *validator.Validate
	DefaultOrg string
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v, defaultOrg: cfg.DefaultOrg}
}

// OrgID resolves the org for a request, falling back to the configured default.
func OrgID(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Org-ID")); v != "" {
		return v
	}
	return fallback
}

// Routes mounts catalog endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.Products)
	r.Post("/products", h.CreateProduct)
	r.Get("/products/{id}", h.Product)
	r.Put("/products/{id}", h.UpdateProduct)
	r.Get("/categories", h.Categories)
	r.Post("/categories", h.CreateCategory)
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListProducts(r.Context(), OrgID(r, h.defaultOrg))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Product handles GET /api/v1/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "product id must be a UUID", nil)
		return
	}
	p, err := h.service.GetProduct(r.Context(), OrgID(r, h.defaultOrg), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// CreateProduct handles POST /api/v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid product payload", err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), OrgID(r, h.defaultOrg), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "product id must be a UUID", nil)
		return
	}
	var in ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid product payload", err.Error())
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), OrgID(r, h.defaultOrg), id, in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListCategories(r.Context(), OrgID(r, h.defaultOrg))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CreateCategory handles POST /api/v1/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid category payload", err.Error())
		return
	}
	c, err := h.service.CreateCategory(r.Context(), OrgID(r, h.defaultOrg), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}
