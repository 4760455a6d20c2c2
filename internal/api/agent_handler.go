package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Kommutator/internal/domain"
)

// ListAgents возвращает список операторов.
// GET /api/v1/agents
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agentRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]AgentResponse, len(agents))
	for i, a := range agents {
		result[i] = AgentFromDomain(a)
	}

	List(w, result, len(result))
}

// CreateAgent регистрирует оператора.
// POST /api/v1/agents
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.ID == "" {
		BadRequest(w, "id is required")
		return
	}
	if req.MaxConcurrent <= 0 {
		req.MaxConcurrent = 1
	}

	agent := &domain.Agent{
		ID:            req.ID,
		Name:          req.Name,
		MaxConcurrent: req.MaxConcurrent,
		Skills:        req.Skills,
		Weight:        req.Weight,
	}

	if err := h.agentRepo.Create(r.Context(), agent); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, AgentFromDomain(*agent))
}

// GetAgent возвращает оператора по ID.
// GET /api/v1/agents/{id}
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.agentRepo.GetByID(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "agent not found") {
		return
	}

	Success(w, AgentFromDomain(*agent))
}

// DeleteAgent удаляет оператора.
// DELETE /api/v1/agents/{id}
func (h *Handler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.agentRepo.Delete(r.Context(), r.PathValue("id")); err != nil {
		if HandleRepoError(w, h.logger, err, "agent not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}
