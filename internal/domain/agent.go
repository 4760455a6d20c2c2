package domain

import "time"

// Agent — оператор колл-центра.
//
// Конфигурационная часть (лимиты, навыки, вес) приходит из
// хранилища; живая часть (статус, счётчик активных звонков,
// время последнего перехода в ONLINE) ведётся реестром операторов.
type Agent struct {
	// ID — уникальный идентификатор оператора (extension).
	ID string `json:"id"`

	// Name — имя оператора.
	Name string `json:"name"`

	// Status — текущий статус.
	Status AgentStatus `json:"status"`

	// MaxConcurrent — лимит одновременных звонков (минимум 1).
	MaxConcurrent int `json:"max_concurrent"`

	// ActiveCalls — текущее число назначенных звонков.
	ActiveCalls int `json:"active_calls"`

	// Skills — навыки оператора (язык, продукт и т.п.).
	Skills []string `json:"skills,omitempty"`

	// Weight — приоритет при выборе (больше — раньше).
	Weight int `json:"weight"`

	// OnlineSince — момент последнего перехода в ONLINE.
	// Тай-брейк при равном весе: дольше всех простаивающий первым.
	OnlineSince time.Time `json:"online_since,omitempty"`
}

// HasSkills возвращает true, если required — подмножество навыков оператора.
func (a *Agent) HasSkills(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(a.Skills))
	for _, s := range a.Skills {
		have[s] = true
	}
	for _, r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}

// CanAccept возвращает true, если оператору можно назначить звонок.
func (a *Agent) CanAccept() bool {
	return a.Status == AgentOnline && a.ActiveCalls < a.MaxConcurrent
}

// AgentStatusUpdate — внешнее событие смены статуса оператора
// (heartbeat/действие клиента оператора).
type AgentStatusUpdate struct {
	// AgentID — оператор.
	AgentID string `json:"agent_id"`

	// Status — новый статус (ONLINE/OFFLINE/BUSY).
	Status AgentStatus `json:"status"`

	// At — время события.
	At time.Time `json:"at"`
}
