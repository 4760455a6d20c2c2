// Kommutator Engine — исполняет звонки.
//
// Engine:
//   - Получает события телефонии и статусы операторов из RabbitMQ
//   - Исполняет граф flow для каждого звонка
//   - Держит очереди ожидания и назначает операторов
//   - Публикует команды провайдеру и lifecycle-события
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Kommutator/internal/engine"
	"github.com/shaiso/Kommutator/internal/mq"
	"github.com/shaiso/Kommutator/internal/repo"
	"github.com/shaiso/Kommutator/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("kommutator-engine")
	logger.Info("starting kommutator-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	flowRepo := repo.NewFlowRepo(pool)
	agentRepo := repo.NewAgentRepo(pool)
	queueRepo := repo.NewQueueRepo(pool)
	callRepo := repo.NewCallRepo(pool)

	// Очереди и операторы загружаются при старте; изменения в репозитории
	// подхватываются после рестарта engine.
	queues, err := queueRepo.List(ctx)
	if err != nil {
		logger.Error("failed to load queues", "error", err)
		os.Exit(1)
	}
	agents, err := agentRepo.List(ctx)
	if err != nil {
		logger.Error("failed to load agents", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded", "queues", len(queues), "agents", len(agents))

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection

	mqConn, err = mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events will not be consumed", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём engine
	cfg := engine.Config{
		FlowStore: flowRepo,
		CallLog:   callRepo,
		Conn:      mqConn,
		Queues:    queues,
		Agents:    agents,
		Logger:    logger,
	}
	// nil *mq.Publisher, завёрнутый в интерфейс, перестаёт быть nil —
	// интерфейсное поле заполняется только живым publisher
	if publisher != nil {
		cfg.Publisher = publisher
	}
	eng := engine.New(cfg)

	// Запускаем engine
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем engine
	eng.Stop()
	logger.Info("kommutator-engine stopped")
}
