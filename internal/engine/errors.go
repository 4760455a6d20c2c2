package engine

import "errors"

var (
	// ErrUnknownCall — событие для звонка без живой сессии
	// (логируется и отбрасывается).
	ErrUnknownCall = errors.New("unknown call id")

	// ErrSessionExists — повторное "started" для живого звонка.
	ErrSessionExists = errors.New("session already exists")

	// ErrNoFlowForNumber — на набранный номер не опубликован
	// активный flow: звонок отклоняется.
	ErrNoFlowForNumber = errors.New("no active flow for called number")
)
