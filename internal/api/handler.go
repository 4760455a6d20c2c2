package api

import (
	"log/slog"

	"github.com/shaiso/Kommutator/internal/mq"
	"github.com/shaiso/Kommutator/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
//
// Gateway не держит состояния звонков: события телефонии и статусы
// операторов уходят в RabbitMQ и обрабатываются engine; здесь —
// только валидация, конфигурация и чтение из БД.
type Handler struct {
	flowRepo  *repo.FlowRepo
	agentRepo *repo.AgentRepo
	queueRepo *repo.QueueRepo
	callRepo  *repo.CallRepo
	publisher *mq.Publisher
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	FlowRepo  *repo.FlowRepo
	AgentRepo *repo.AgentRepo
	QueueRepo *repo.QueueRepo
	CallRepo  *repo.CallRepo
	Publisher *mq.Publisher
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		flowRepo:  cfg.FlowRepo,
		agentRepo: cfg.AgentRepo,
		queueRepo: cfg.QueueRepo,
		callRepo:  cfg.CallRepo,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}
