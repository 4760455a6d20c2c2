// Package api содержит HTTP API сервер (gateway).
//
// Структура:
//   - handler.go           — Handler с DI (репозитории, publisher, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - telephony_handler.go — приём вебхуков провайдера и статусов операторов
//   - flow_handler.go      — обработчики для /flows (CRUD, версии, публикация)
//   - agent_handler.go     — обработчики для /agents
//   - queue_handler.go     — обработчики для /queues
//   - call_handler.go      — журнал завершённых звонков
//
// Gateway — тонкий слой без состояния звонков: вебхуки телефонии
// валидируются и публикуются в RabbitMQ, исполняет их engine.
package api
