// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — типизированное потребление (Consumer[T] декодирует payload)
//
// Типы сообщений:
//   - telephony.event — событие телефонного провайдера (started, digits, ended...)
//   - agent.status    — смена статуса оператора
//   - call.command    — исходящая команда транспорту (play, collect, transfer...)
//   - lifecycle.event — событие жизненного цикла для внешних подписчиков
//
// Exchanges:
//   - kommutator.telephony — входящие события звонков и операторов
//   - kommutator.commands  — исходящие команды транспорту
//   - kommutator.lifecycle — fanout жизненного цикла
//   - kommutator.dlq       — dead letter queue
package mq
