package rules

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cpq/internal/catalog"
	"github.com/noah-isme/backend-cpq/internal/common"
)

// Handler exposes pricing rule admin endpoints.
type Handler struct {
	service    *Service
	validate   *validator.Validate
	defaultOrg string
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, validate *validator.Validate, defaultOrg string) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{service: service, validate: validate, defaultOrg: defaultOrg}
}

// Routes mounts rule endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/rules", h.List)
	r.Post("/rules", h.Create)
	r.Post("/rules/preview", h.Preview)
	r.Get("/rules/{id}", h.Get)
	r.Put("/rules/{id}", h.Update)
	r.Delete("/rules/{id}", h.Delete)
}

// List handles GET /api/v1/rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context(), catalog.OrgID(r, h.defaultOrg))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Get handles GET /api/v1/rules/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "rule id must be a UUID", nil)
		return
	}
	rule, err := h.service.Get(r.Context(), catalog.OrgID(r, h.defaultOrg), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Create handles POST /api/v1/rules.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid rule payload", err.Error())
		return
	}
	rule, err := h.service.Create(r.Context(), catalog.OrgID(r, h.defaultOrg), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rule})
}

// Update handles PUT /api/v1/rules/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "rule id must be a UUID", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid rule payload", err.Error())
		return
	}
	rule, err := h.service.Update(r.Context(), catalog.OrgID(r, h.defaultOrg), id, in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Delete handles DELETE /api/v1/rules/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "rule id must be a UUID", nil)
		return
	}
	if err := h.service.Delete(r.Context(), catalog.OrgID(r, h.defaultOrg), id); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles POST /api/v1/rules/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var in PreviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid preview payload", err.Error())
		return
	}
	result, err := h.service.Preview(r.Context(), catalog.OrgID(r, h.defaultOrg), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
