// Package engine содержит ядро обработки звонков.
//
// Включает:
//   - engine.go   — Engine: сессии, consumers, кэш графов, lifecycle
//   - state.go    — callState: per-call сериализация событий
//   - handlers.go — обработчики событий и результаты интерпретатора
//
// Engine связывает все части воедино: принимает события телефонии
// и статусов операторов из RabbitMQ, ведёт сессии звонков в памяти,
// продвигает их через flow.Interpreter, держит очереди ожидания и
// реестр операторов (internal/dispatch) и публикует исходящие
// команды и события жизненного цикла обратно в шину.
package engine
