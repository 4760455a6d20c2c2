package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shaiso/Kommutator/internal/domain"
)

// publish-сторона и consume-сторона должны сходиться на одном формате
// envelope: тест кодирует Message и декодирует его как consumer.
func TestDecode_RoundTrip(t *testing.T) {
	msg := Message{
		ID:   "msg-1",
		Type: MessageTypeTelephonyEvent,
		Payload: &domain.WebhookEvent{
			CallID: "call-42",
			Type:   domain.EventStarted,
			Caller: "+74950000001",
		},
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}

	payload, env, err := decode[domain.WebhookEvent](body, MessageTypeTelephonyEvent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID != "msg-1" {
		t.Errorf("envelope id = %q", env.ID)
	}
	if payload.CallID != "call-42" || payload.Type != domain.EventStarted {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Caller != "+74950000001" {
		t.Errorf("caller = %q", payload.Caller)
	}
}

func TestDecode_RejectsForeignType(t *testing.T) {
	body, err := json.Marshal(Message{
		ID:        "msg-2",
		Type:      MessageTypeAgentStatus,
		Payload:   &domain.AgentStatusUpdate{AgentID: "a1", Status: domain.AgentOnline},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}

	_, env, err := decode[domain.WebhookEvent](body, MessageTypeTelephonyEvent)
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	// Envelope разобран — у вызывающего есть ID для лога
	if env == nil || env.ID != "msg-2" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestDecode_MalformedEnvelope(t *testing.T) {
	if _, _, err := decode[domain.WebhookEvent]([]byte("{not json"), MessageTypeTelephonyEvent); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	body := []byte(`{"id":"msg-3","type":"telephony.event","payload":"not an object"}`)
	_, _, err := decode[domain.WebhookEvent](body, MessageTypeTelephonyEvent)
	if err == nil {
		t.Fatal("expected payload unmarshal error")
	}
}
