package quote

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cpq/internal/catalog"
	"github.com/noah-isme/backend-cpq/internal/common"
)

// Handler exposes quote admin endpoints plus the public share surface.
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

// Routes mounts admin quote endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/quotes", h.List)
	r.Post("/quotes", h.Create)
	r.Get("/quotes/{id}", h.Get)
	r.Get("/quotes/{id}/events", h.History)
	r.Patch("/quotes/{id}", h.UpdateHeader)
	r.Post("/quotes/{id}/lines", h.AddLine)
	r.Put("/quotes/{id}/lines/{lineId}", h.UpdateLine)
	r.Delete("/quotes/{id}/lines/{lineId}", h.RemoveLine)
	r.Post("/quotes/{id}/submit", h.Submit)
	r.Post("/quotes/{id}/approve", h.Approve)
	r.Post("/quotes/{id}/reject", h.Reject)
	r.Post("/quotes/{id}/send", h.Send)
}

// ShareRoutes mounts the public customer-facing endpoints.
func (h *Handler) ShareRoutes(r chi.Router) {
	r.Get("/share/{token}", h.Shared)
	r.Post("/share/{token}/respond", h.Respond)
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "quote id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/v1/quotes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 20)
	offset := common.AtoiDefault(r.URL.Query().Get("offset"), 0)
	rows, err := h.service.List(r.Context(), catalog.OrgID(r, h.defaultOrg), limit, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid quote payload", err.Error())
		return
	}
	q, err := h.service.Create(r.Context(), catalog.OrgID(r, h.defaultOrg), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": q})
}

// Get handles GET /api/v1/quotes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), catalog.OrgID(r, h.defaultOrg), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// History handles GET /api/v1/quotes/{id}/events.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	evs, err := h.service.History(r.Context(), catalog.OrgID(r, h.defaultOrg), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": evs})
}

// UpdateHeader handles PATCH /api/v1/quotes/{id}.
func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var in HeaderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	detail, err := h.service.UpdateHeader(r.Context(), catalog.OrgID(r, h.defaultOrg), id, in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

func (h *Handler) decodeLine(w http.ResponseWriter, r *http.Request) (LineInput, bool) {
	var in LineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return in, false
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid line payload", err.Error())
		return in, false
	}
	return in, true
}

// AddLine handles POST /api/v1/quotes/{id}/lines.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeLine(w, r)
	if !ok {
		return
	}
	detail, err := h.service.AddLine(r.Context(), catalog.OrgID(r, h.defaultOrg), id, in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail})
}

// UpdateLine handles PUT /api/v1/quotes/{id}/lines/{lineId}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "line id must be a UUID", nil)
		return
	}
	in, ok := h.decodeLine(w, r)
	if !ok {
		return
	}
	detail, err := h.service.UpdateLine(r.Context(), catalog.OrgID(r, h.defaultOrg), id, lineID, in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// RemoveLine handles DELETE /api/v1/quotes/{id}/lines/{lineId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "line id must be a UUID", nil)
		return
	}
	detail, err := h.service.RemoveLine(r.Context(), catalog.OrgID(r, h.defaultOrg), id, lineID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// Submit handles POST /api/v1/quotes/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.Submit)
}

// Approve handles POST /api/v1/quotes/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.Approve)
}

// Reject handles POST /api/v1/quotes/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&in)
	}
	q, err := h.service.Reject(r.Context(), catalog.OrgID(r, h.defaultOrg), id, in.Reason)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Send handles POST /api/v1/quotes/{id}/send.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	q, share, err := h.service.Send(r.Context(), catalog.OrgID(r, h.defaultOrg), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q, "share": share})
}

func (h *Handler) simpleTransition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, string, uuid.UUID) (Quote, error)) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	q, err := fn(r.Context(), catalog.OrgID(r, h.defaultOrg), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Shared handles GET /share/{token}: the customer-facing quote view.
func (h *Handler) Shared(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// Respond handles POST /share/{token}/respond.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	q, err := h.service.Respond(r.Context(), chi.URLParam(r, "token"), in.Response)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}
