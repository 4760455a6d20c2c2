package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Kommutator/internal/domain"
)

// ListQueues возвращает список очередей ожидания.
// GET /api/v1/queues
func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.queueRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]QueueResponse, len(queues))
	for i, q := range queues {
		result[i] = QueueFromDomain(q)
	}

	List(w, result, len(result))
}

// CreateQueue создаёт очередь ожидания.
// Конфигурация подхватывается engine при следующем старте.
// POST /api/v1/queues
func (h *Handler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	var req CreateQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	strategy := domain.QueueStrategy(req.Strategy)
	if strategy == "" {
		strategy = domain.StrategyFIFO
	}
	if !strategy.IsValid() {
		BadRequest(w, "unknown strategy: "+req.Strategy)
		return
	}

	cfg := &domain.QueueConfig{
		Name:                req.Name,
		MaxSize:             req.MaxSize,
		MaxWaitSec:          req.MaxWaitSec,
		Strategy:            strategy,
		HoldAudioRef:        req.HoldAudioRef,
		AnnounceAudioRef:    req.AnnounceAudioRef,
		AnnounceIntervalSec: req.AnnounceIntervalSec,
	}

	if err := h.queueRepo.Create(r.Context(), cfg); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, QueueFromDomain(*cfg))
}

// GetQueue возвращает очередь по имени.
// GET /api/v1/queues/{name}
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.queueRepo.GetByName(r.Context(), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "queue not found") {
		return
	}

	Success(w, QueueFromDomain(*cfg))
}

// DeleteQueue удаляет очередь.
// DELETE /api/v1/queues/{name}
func (h *Handler) DeleteQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.queueRepo.Delete(r.Context(), r.PathValue("name")); err != nil {
		if HandleRepoError(w, h.logger, err, "queue not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}
