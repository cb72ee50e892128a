package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/sink"
)

// maxTakeTaskIDs bounds the task_ids list of a single take request.
const maxTakeTaskIDs = 1000

// TaskResultsResponse carries taken results keyed by task ID.
type TaskResultsResponse struct {
	Results map[string]sink.Result `json:"results"`
}

// TaskResultHandler exposes a ResultSink over HTTP so that workers outside
// this process can deliver results and the server can collect them.
type TaskResultHandler struct {
	results sink.ResultSink
}

// NewTaskResultHandler creates a new TaskResultHandler
func NewTaskResultHandler(results sink.ResultSink) *TaskResultHandler {
	return &TaskResultHandler{results: results}
}

// PutResult handles POST /api/task-results requests
func (h *TaskResultHandler) PutResult(w http.ResponseWriter, r *http.Request) {
	var result sink.Result
	if err := shared.DecodeJSON(r, &result); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.results.Put(r.Context(), result); err != nil {
		HandleAPIError(w, r, err, "Failed to store result")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TakeResults handles GET /api/task-results?generation_id=&task_ids= requests
func (h *TaskResultHandler) TakeResults(w http.ResponseWriter, r *http.Request) {
	generationID, taskIDs, err := parseTakeQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	taken, err := h.results.Take(r.Context(), generationID, taskIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to take results")
		return
	}

	resp := TaskResultsResponse{Results: make(map[string]sink.Result, len(taken))}
	for id, result := range taken {
		resp.Results[id.String()] = result
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

func parseTakeQuery(r *http.Request) (uuid.UUID, []uuid.UUID, error) {
	q := r.URL.Query()

	generationID, err := uuid.Parse(q.Get("generation_id"))
	if err != nil {
		return uuid.Nil, nil, domain.NewValidationError("generation_id", "has invalid format", domain.ErrInvalidID)
	}

	raw := strings.TrimSpace(q.Get("task_ids"))
	if raw == "" {
		return generationID, nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxTakeTaskIDs {
		return uuid.Nil, nil, domain.NewValidationError("task_ids",
			fmt.Sprintf("must list at most %d IDs", maxTakeTaskIDs), domain.ErrValidation)
	}

	taskIDs := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return uuid.Nil, nil, domain.NewValidationError("task_ids", "has invalid format", domain.ErrInvalidID)
		}
		taskIDs = append(taskIDs, id)
	}
	return generationID, taskIDs, nil
}
