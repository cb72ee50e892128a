package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/service"
)

// ParameterHandler handles parameter-related HTTP requests
type ParameterHandler struct {
	parameterService service.ParameterService
	validator        *validator.Validate
}

// NewParameterHandler creates a new ParameterHandler
func NewParameterHandler(parameterService service.ParameterService) *ParameterHandler {
	return &ParameterHandler{
		parameterService: parameterService,
		validator:        newValidator(),
	}
}

// CreateParameter handles POST /api/parameters requests
func (h *ParameterHandler) CreateParameter(w http.ResponseWriter, r *http.Request) {
	var req ParameterRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	p, err := h.parameterService.CreateParameter(r.Context(), req.Name, req.ParsedValues())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create parameter")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, parameterToResponse(p))
}

// ListParameters handles GET /api/parameters requests
func (h *ParameterHandler) ListParameters(w http.ResponseWriter, r *http.Request) {
	params, err := h.parameterService.ListParameters(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list parameters")
		return
	}

	resp := make([]ParameterResponse, 0, len(params))
	for _, p := range params {
		resp = append(resp, parameterToResponse(p))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetParameter handles GET /api/parameters/{id} requests
func (h *ParameterHandler) GetParameter(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.parameterService.GetParameter(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get parameter")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, parameterToResponse(p))
}

// UpdateParameter handles PUT /api/parameters/{id} requests
func (h *ParameterHandler) UpdateParameter(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ParameterRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	p, err := h.parameterService.UpdateParameter(r.Context(), id, req.Name, req.ParsedValues())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update parameter")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, parameterToResponse(p))
}

// DeleteParameter handles DELETE /api/parameters/{id} requests
func (h *ParameterHandler) DeleteParameter(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.parameterService.DeleteParameter(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete parameter")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
