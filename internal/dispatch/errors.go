package dispatch

import "errors"

var (
	// ErrUnknownQueue — очередь с таким именем не сконфигурирована.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrQueueFull — очередь достигла max_size.
	ErrQueueFull = errors.New("queue is full")

	// ErrAlreadyQueued — звонок уже стоит в очереди.
	ErrAlreadyQueued = errors.New("call is already queued")

	// ErrUnknownAgent — оператор не зарегистрирован.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrNoEligibleAgent — ни один оператор не подходит
	// (статус, загрузка или навыки).
	ErrNoEligibleAgent = errors.New("no eligible agent")

	// ErrBadStatus — недопустимый статус оператора.
	ErrBadStatus = errors.New("invalid agent status")
)
