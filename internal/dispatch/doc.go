// Package dispatch содержит реестры очередей и операторов и
// планировщик назначений.
//
// Включает:
//   - queue.go     — QueueRegistry: именованные очереди ожидания
//   - agents.go    — AgentRegistry: статусы и загрузка операторов
//   - scheduler.go — Scheduler: детерминированное сопоставление
//
// Планировщик — единственная точка, где звонок встречается с
// оператором: каждый проход обходит очереди в фиксированном порядке,
// снимает просроченные записи и назначает голову очереди на лучшего
// подходящего оператора. Результаты отдаются через callbacks после
// освобождения внутренних блокировок.
package dispatch
