package domain

import "time"

// QueueStrategy — стратегия очереди.
type QueueStrategy string

const (
	// StrategyFIFO — первый пришёл — первый назначен.
	StrategyFIFO QueueStrategy = "fifo"

	// StrategyPriority — по убыванию приоритета, при равенстве —
	// по возрастанию времени постановки (стабильный порядок).
	StrategyPriority QueueStrategy = "priority"

	// StrategyLongestIdle — FIFO по звонкам, оператор выбирается
	// только по наибольшему времени простоя (вес игнорируется).
	StrategyLongestIdle QueueStrategy = "longest-idle-agent"
)

// IsValid возвращает true для известной стратегии.
func (s QueueStrategy) IsValid() bool {
	switch s {
	case StrategyFIFO, StrategyPriority, StrategyLongestIdle:
		return true
	default:
		return false
	}
}

// QueueConfig — конфигурация именованной очереди.
//
// Читается из хранилища при старте; engine не изменяет конфигурацию.
type QueueConfig struct {
	// Name — уникальное имя очереди.
	Name string `json:"name"`

	// MaxSize — максимальный размер (0 — без ограничения).
	MaxSize int `json:"max_size"`

	// MaxWaitSec — максимальное время ожидания в секундах;
	// по истечении звонок уходит по overflow-ребру enqueue-узла.
	MaxWaitSec int `json:"max_wait_sec"`

	// Strategy — стратегия упорядочивания и выбора оператора.
	Strategy QueueStrategy `json:"strategy"`

	// HoldAudioRef — музыка ожидания.
	HoldAudioRef string `json:"hold_audio_ref,omitempty"`

	// AnnounceAudioRef — периодическое объявление в очереди.
	AnnounceAudioRef string `json:"announce_audio_ref,omitempty"`

	// AnnounceIntervalSec — период объявления (0 — не объявлять).
	AnnounceIntervalSec int `json:"announce_interval_sec,omitempty"`
}

// MaxWait возвращает максимальное время ожидания как Duration.
func (c *QueueConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSec) * time.Second
}

// QueueEntry — звонок, ожидающий в очереди.
//
// Инвариант: один звонок находится не более чем в одной очереди.
type QueueEntry struct {
	// CallID — идентификатор звонка.
	CallID string `json:"call_id"`

	// Priority — приоритет (из конфигурации enqueue-узла, default 0).
	Priority int `json:"priority"`

	// Skills — требуемые навыки оператора.
	Skills []string `json:"skills,omitempty"`

	// EnqueuedAt — время постановки в очередь.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Age возвращает время ожидания записи на момент now.
func (e *QueueEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.EnqueuedAt)
}
