package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

// IngestTelephonyEvent принимает событие вебхука телефонного
// провайдера и публикует его в шину для engine.
//
// Gateway отвечает 202 сразу после публикации: провайдеру не нужно
// ждать исполнения flow, а повторная доставка безопасна — engine
// идемпотентен к дубликатам.
// POST /api/v1/telephony/events
func (h *Handler) IngestTelephonyEvent(w http.ResponseWriter, r *http.Request) {
	var req TelephonyEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	ev := req.ToDomain()
	if err := h.publisher.PublishTelephonyEvent(r.Context(), ev); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Debug("telephony event accepted",
		"call_id", ev.CallID,
		"type", ev.Type,
	)

	Accepted(w, map[string]string{
		"call_id": ev.CallID,
		"status":  "accepted",
	})
}

// SetAgentStatus принимает смену статуса оператора и публикует её
// в шину для engine.
// POST /api/v1/agents/{id}/status
func (h *Handler) SetAgentStatus(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	if agentID == "" {
		BadRequest(w, "agent id is required")
		return
	}

	var req AgentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	status := domain.AgentStatus(req.Status)
	if !status.IsValid() || status == domain.AgentOnCall {
		BadRequest(w, "invalid agent status")
		return
	}

	// Оператор должен быть зарегистрирован
	_, err := h.agentRepo.GetByID(r.Context(), agentID)
	if HandleRepoError(w, h.logger, err, "agent not found") {
		return
	}

	upd := &domain.AgentStatusUpdate{
		AgentID: agentID,
		Status:  status,
		At:      time.Now(),
	}
	if err := h.publisher.PublishAgentStatus(r.Context(), upd); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, map[string]string{
		"agent_id": agentID,
		"status":   string(status),
	})
}
