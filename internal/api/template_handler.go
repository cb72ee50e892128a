package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/service"
	"github.com/phrazzld/imagegen-api/internal/variant"
)

// TemplateHandler handles template-related HTTP requests
type TemplateHandler struct {
	templateService service.TemplateService
	validator       *validator.Validate
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		validator:       newValidator(),
	}
}

func templateToResponse(t *domain.Template) TemplateResponse {
	return TemplateResponse{
		ID:           t.ID,
		Name:         t.Name,
		Content:      t.Content,
		Placeholders: variant.Extract(t.Content),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// CreateTemplate handles POST /api/templates requests
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	t, err := h.templateService.CreateTemplate(r.Context(), req.Name, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create template")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, templateToResponse(t))
}

// ListTemplates handles GET /api/templates requests
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateService.ListTemplates(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list templates")
		return
	}

	resp := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		resp = append(resp, templateToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTemplate handles GET /api/templates/{id} requests
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.templateService.GetTemplate(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get template")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, templateToResponse(t))
}

// UpdateTemplate handles PUT /api/templates/{id} requests
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req TemplateRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	t, err := h.templateService.UpdateTemplate(r.Context(), id, req.Name, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update template")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, templateToResponse(t))
}

// DeleteTemplate handles DELETE /api/templates/{id} requests
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.templateService.DeleteTemplate(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete template")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ValidateTemplate handles POST /api/templates/validate requests
func (h *TemplateHandler) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req ValidateTemplateRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	report, err := h.templateService.ValidateContent(r.Context(), req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to validate template")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// PreviewVariants handles GET /api/templates/{id}/variants requests
func (h *TemplateHandler) PreviewVariants(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	preview, err := h.templateService.PreviewVariants(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to preview variants")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, preview)
}
