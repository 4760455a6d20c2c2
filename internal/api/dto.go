package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Kommutator/internal/domain"
)

// Telephony DTOs

// TelephonyEventRequest — событие вебхука телефонного провайдера.
type TelephonyEventRequest struct {
	CallID   string            `json:"call_id"`
	Type     string            `json:"type"`
	Digits   string            `json:"digits,omitempty"`
	Caller   string            `json:"caller,omitempty"`
	Called   string            `json:"called,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate проверяет обязательные поля события.
func (r *TelephonyEventRequest) Validate() error {
	if r.CallID == "" {
		return fmt.Errorf("call_id is required")
	}
	t := domain.WebhookEventType(r.Type)
	if !t.IsValid() {
		return fmt.Errorf("unknown event type: %q", r.Type)
	}
	if t == domain.EventStarted && r.Called == "" {
		return fmt.Errorf("called is required for started event")
	}
	if t == domain.EventDigits && r.Digits == "" {
		return fmt.Errorf("digits is required for digits event")
	}
	return nil
}

// ToDomain конвертирует запрос в domain.WebhookEvent.
func (r *TelephonyEventRequest) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		CallID:     r.CallID,
		Type:       domain.WebhookEventType(r.Type),
		Digits:     r.Digits,
		Caller:     r.Caller,
		Called:     r.Called,
		Metadata:   r.Metadata,
		ReceivedAt: time.Now(),
	}
}

// AgentStatusRequest — смена статуса оператора.
type AgentStatusRequest struct {
	Status string `json:"status"`
}

// Flow DTOs

// CreateFlowRequest — запрос на создание flow.
type CreateFlowRequest struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// UpdateFlowRequest — запрос на обновление flow.
type UpdateFlowRequest struct {
	Name     *string `json:"name,omitempty"`
	Number   *string `json:"number,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// FlowResponse — ответ с flow.
type FlowResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Number           string    `json:"number"`
	IsActive         bool      `json:"is_active"`
	PublishedVersion int       `json:"published_version"`
	CreatedAt        time.Time `json:"created_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
func FlowFromDomain(f domain.Flow) FlowResponse {
	return FlowResponse{
		ID:               f.ID,
		Name:             f.Name,
		Number:           f.Number,
		IsActive:         f.IsActive,
		PublishedVersion: f.PublishedVersion,
		CreatedAt:        f.CreatedAt,
	}
}

// FlowVersion DTOs

// CreateFlowVersionRequest — запрос на создание версии графа.
type CreateFlowVersionRequest struct {
	Graph *domain.FlowGraph `json:"graph"`
}

// FlowVersionResponse — ответ с версией flow.
type FlowVersionResponse struct {
	FlowID    uuid.UUID         `json:"flow_id"`
	Version   int               `json:"version"`
	Graph     *domain.FlowGraph `json:"graph,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// FlowVersionFromDomain конвертирует domain.FlowVersion в FlowVersionResponse.
func FlowVersionFromDomain(v domain.FlowVersion) FlowVersionResponse {
	return FlowVersionResponse{
		FlowID:    v.FlowID,
		Version:   v.Version,
		Graph:     v.Graph,
		CreatedAt: v.CreatedAt,
	}
}

// Agent DTOs

// CreateAgentRequest — запрос на регистрацию оператора.
type CreateAgentRequest struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MaxConcurrent int      `json:"max_concurrent"`
	Skills        []string `json:"skills,omitempty"`
	Weight        int      `json:"weight"`
}

// AgentResponse — ответ с оператором.
type AgentResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MaxConcurrent int      `json:"max_concurrent"`
	Skills        []string `json:"skills,omitempty"`
	Weight        int      `json:"weight"`
}

// AgentFromDomain конвертирует domain.Agent в AgentResponse.
func AgentFromDomain(a domain.Agent) AgentResponse {
	return AgentResponse{
		ID:            a.ID,
		Name:          a.Name,
		MaxConcurrent: a.MaxConcurrent,
		Skills:        a.Skills,
		Weight:        a.Weight,
	}
}

// Queue DTOs

// CreateQueueRequest — запрос на создание очереди.
type CreateQueueRequest struct {
	Name                string `json:"name"`
	MaxSize             int    `json:"max_size"`
	MaxWaitSec          int    `json:"max_wait_sec"`
	Strategy            string `json:"strategy"`
	HoldAudioRef        string `json:"hold_audio_ref,omitempty"`
	AnnounceAudioRef    string `json:"announce_audio_ref,omitempty"`
	AnnounceIntervalSec int    `json:"announce_interval_sec,omitempty"`
}

// QueueResponse — ответ с очередью.
type QueueResponse struct {
	Name                string `json:"name"`
	MaxSize             int    `json:"max_size"`
	MaxWaitSec          int    `json:"max_wait_sec"`
	Strategy            string `json:"strategy"`
	HoldAudioRef        string `json:"hold_audio_ref,omitempty"`
	AnnounceAudioRef    string `json:"announce_audio_ref,omitempty"`
	AnnounceIntervalSec int    `json:"announce_interval_sec,omitempty"`
}

// QueueFromDomain конвертирует domain.QueueConfig в QueueResponse.
func QueueFromDomain(q domain.QueueConfig) QueueResponse {
	return QueueResponse{
		Name:                q.Name,
		MaxSize:             q.MaxSize,
		MaxWaitSec:          q.MaxWaitSec,
		Strategy:            string(q.Strategy),
		HoldAudioRef:        q.HoldAudioRef,
		AnnounceAudioRef:    q.AnnounceAudioRef,
		AnnounceIntervalSec: q.AnnounceIntervalSec,
	}
}

// Call DTOs

// CallRecordResponse — запись о завершённом звонке.
type CallRecordResponse struct {
	CallID     string    `json:"call_id"`
	Caller     string    `json:"caller"`
	Called     string    `json:"called"`
	FlowID     string    `json:"flow_id"`
	Status     string    `json:"status"`
	QueueName  string    `json:"queue_name,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
