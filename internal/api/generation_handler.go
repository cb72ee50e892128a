package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/service"
	"github.com/phrazzld/imagegen-api/internal/task"
)

// GenerationHandler handles generation-related HTTP requests
type GenerationHandler struct {
	generationService service.GenerationService
	validator         *validator.Validate
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(generationService service.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		validator:         newValidator(),
	}
}

// CreateGeneration handles POST /api/generations requests
func (h *GenerationHandler) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req CreateGenerationRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	// validated as a uuid above
	templateID := uuid.MustParse(req.TemplateID)

	g, err := h.generationService.CreateGeneration(r.Context(), service.CreateGenerationParams{
		Name:       req.Name,
		TemplateID: templateID,
		Model:      domain.ModelSelector(req.Model),
		RateLimit:  req.RateLimit,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, generationToResponse(g))
}

// ListGenerations handles GET /api/generations requests
func (h *GenerationHandler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	gens, err := h.generationService.ListGenerations(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list generations")
		return
	}

	resp := make([]GenerationSummary, 0, len(gens))
	for _, g := range gens {
		resp = append(resp, generationToSummary(g))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetGeneration handles GET /api/generations/{id} requests
func (h *GenerationHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	g, err := h.generationService.GetGeneration(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generationToResponse(g))
}

// DeleteGeneration handles DELETE /api/generations/{id} requests
func (h *GenerationHandler) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.generationService.DeleteGeneration(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete generation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartGeneration handles POST /api/generations/{id}/start requests
func (h *GenerationHandler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.generationService.StartGeneration(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to start generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, StateResponse{
		GenerationID: id,
		State:        task.StateRunning,
	})
}

// StopGeneration handles POST /api/generations/{id}/stop requests
func (h *GenerationHandler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	state, err := h.generationService.StopGeneration(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to stop generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StateResponse{GenerationID: id, State: state})
}

// GetProgress handles GET /api/generations/{id}/progress requests
func (h *GenerationHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.generationService.GetProgress(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get progress")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, progress)
}

// DeleteTask handles DELETE /api/generations/{id}/tasks/{taskID} requests
func (h *GenerationHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := handlePathUUID(w, r, "taskID")
	if !ok {
		return
	}

	g, err := h.generationService.DeleteTask(r.Context(), id, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generationToResponse(g))
}

// ClearTasks handles POST /api/generations/{id}/tasks/clear requests
func (h *GenerationHandler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ClearTasksRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	n, err := h.generationService.ClearTasks(r.Context(), id, domain.TaskStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to clear tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: n})
}

// ClearAllTasks handles POST /api/generations/{id}/tasks/clear-all requests
func (h *GenerationHandler) ClearAllTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ClearAllTasksRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	n, err := h.generationService.ClearAllTasks(r.Context(), id, req.Confirm)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to clear tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: n})
}

// EnqueueGeneration handles POST /api/generations/{id}/enqueue requests
func (h *GenerationHandler) EnqueueGeneration(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.generationService.EnqueueGeneration, "Failed to enqueue generation")
}

// CancelQueued handles POST /api/generations/{id}/cancel-queued requests
func (h *GenerationHandler) CancelQueued(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.generationService.CancelQueued, "Failed to cancel queued tasks")
}

// SyncResults handles POST /api/generations/{id}/sync requests
func (h *GenerationHandler) SyncResults(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.generationService.SyncResults, "Failed to sync results")
}

// count runs a generation operation that reports how many tasks it touched.
func (h *GenerationHandler) count(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (int, error),
	failMsg string,
) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	n, err := op(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, failMsg)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CountResponse{Count: n})
}
