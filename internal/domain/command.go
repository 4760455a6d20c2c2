package domain

// CommandType — тип исходящей команды телефонному транспорту.
type CommandType string

const (
	// CommandPlayAudio — проиграть аудио звонящему.
	CommandPlayAudio CommandType = "play-audio"

	// CommandCollectDigits — собрать DTMF ввод.
	CommandCollectDigits CommandType = "collect-digits"

	// CommandTransferAgent — соединить звонок с оператором.
	CommandTransferAgent CommandType = "transfer-agent"

	// CommandHangup — завершить звонок.
	CommandHangup CommandType = "hangup"

	// CommandReject — отклонить входящий звонок.
	CommandReject CommandType = "reject"
)

// Command — исходящая команда для одного звонка.
//
// Команда — чистое значение данных; транспортный слой превращает
// её в сигнализацию конкретного провайдера.
type Command struct {
	// CallID — звонок, к которому относится команда.
	CallID string `json:"call_id"`

	// Type — тип команды.
	Type CommandType `json:"type"`

	// AudioRef — аудио для play-audio.
	AudioRef string `json:"audio_ref,omitempty"`

	// MaxDigits, Terminator, TimeoutMs — параметры collect-digits.
	MaxDigits  int    `json:"max_digits,omitempty"`
	Terminator string `json:"terminator,omitempty"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`

	// AgentID — оператор для transfer-agent.
	AgentID string `json:"agent_id,omitempty"`
}

// PlayAudio создаёт команду проигрывания аудио.
func PlayAudio(callID, audioRef string) Command {
	return Command{CallID: callID, Type: CommandPlayAudio, AudioRef: audioRef}
}

// CollectDigits создаёт команду сбора DTMF ввода.
func CollectDigits(callID string, maxDigits int, terminator string, timeoutMs int) Command {
	return Command{
		CallID:     callID,
		Type:       CommandCollectDigits,
		MaxDigits:  maxDigits,
		Terminator: terminator,
		TimeoutMs:  timeoutMs,
	}
}

// TransferToAgent создаёт команду перевода на оператора.
func TransferToAgent(callID, agentID string) Command {
	return Command{CallID: callID, Type: CommandTransferAgent, AgentID: agentID}
}

// Hangup создаёт команду завершения звонка.
func Hangup(callID string) Command {
	return Command{CallID: callID, Type: CommandHangup}
}

// Reject создаёт команду отклонения звонка.
func Reject(callID string) Command {
	return Command{CallID: callID, Type: CommandReject}
}
