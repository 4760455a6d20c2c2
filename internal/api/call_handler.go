package api

import (
	"net/http"
	"strconv"
)

// ListRecentCalls возвращает последние завершённые звонки.
// GET /api/v1/calls?limit=N
func (h *Handler) ListRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.callRepo.ListRecent(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CallRecordResponse, len(records))
	for i, rec := range records {
		result[i] = CallRecordResponse{
			CallID:     rec.CallID,
			Caller:     rec.Caller,
			Called:     rec.Called,
			FlowID:     rec.FlowID,
			Status:     string(rec.Status),
			QueueName:  rec.QueueName,
			AgentID:    rec.AgentID,
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
		}
	}

	List(w, result, len(result))
}
