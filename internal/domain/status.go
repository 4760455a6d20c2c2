package domain

// CallStatus — статус живой сессии звонка.
//
// Жизненный цикл:
//
//	CREATED → IN_FLOW ⇄ QUEUED → COMPLETED
//	                           ↘ FAILED
//	                           ↘ ABANDONED
//
// IN_FLOW и QUEUED могут чередоваться несколько раз (повторная
// постановка в очередь после разговора с оператором). Терминальные
// статусы поглощающие: события для завершённого звонка логируются
// и отбрасываются.
type CallStatus string

const (
	// CallStatusCreated — сессия создана, flow ещё не начал выполняться.
	CallStatusCreated CallStatus = "CREATED"

	// CallStatusInFlow — сессия интерпретируется по графу.
	CallStatusInFlow CallStatus = "IN_FLOW"

	// CallStatusQueued — звонок ждёт оператора в очереди.
	CallStatusQueued CallStatus = "QUEUED"

	// CallStatusCompleted — звонок завершён штатно.
	CallStatusCompleted CallStatus = "COMPLETED"

	// CallStatusFailed — звонок завершён из-за ошибки графа/исполнения.
	CallStatusFailed CallStatus = "FAILED"

	// CallStatusAbandoned — звонящий положил трубку до завершения flow.
	CallStatusAbandoned CallStatus = "ABANDONED"
)

// IsTerminal возвращает true, если статус финальный.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusAbandoned:
		return true
	default:
		return false
	}
}

// AgentStatus — статус оператора.
//
// Внешние переходы (клиент оператора): ONLINE, OFFLINE, BUSY.
// Внутренние переходы (планировщик): ON_CALL при достижении лимита
// параллельных звонков, обратно в ONLINE при освобождении слота.
type AgentStatus string

const (
	// AgentOnline — оператор доступен для назначения.
	AgentOnline AgentStatus = "ONLINE"

	// AgentOffline — оператор не в системе.
	AgentOffline AgentStatus = "OFFLINE"

	// AgentBusy — оператор недоступен по собственной инициативе (пауза).
	AgentBusy AgentStatus = "BUSY"

	// AgentOnCall — все слоты оператора заняты звонками.
	AgentOnCall AgentStatus = "ON_CALL"
)

// IsValid возвращает true для известного статуса оператора.
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentOnline, AgentOffline, AgentBusy, AgentOnCall:
		return true
	default:
		return false
	}
}

// Await — чего ждёт сессия от внешнего мира.
//
// Приостановка сессии — явное значение состояния, а не заблокированная
// горутина: gather ждёт цифры, play с wait_for_completion ждёт конца
// проигрывания, enqueue ждёт решения планировщика.
type Await string

const (
	// AwaitNone — сессия ничего не ждёт (терминальный узел или transfer).
	AwaitNone Await = ""

	// AwaitDigits — сессия ждёт DTMF цифры или таймаут.
	AwaitDigits Await = "digits"

	// AwaitAudio — сессия ждёт окончания проигрывания аудио.
	AwaitAudio Await = "audio"

	// AwaitQueue — сессия ждёт назначения оператора или overflow.
	AwaitQueue Await = "queue"
)
