package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeGenerate         = "generate"
	TypeCancelGeneration = "cancel_generation"
	TypePing             = "ping"

	// Server -> Client
	TypeGenerationStarted  = "generation_started"
	TypeQuizReady          = "quiz_ready"
	TypeGenerationCanceled = "generation_canceled"
	TypeGenerationFailed   = "generation_failed"
	TypeDailyQuizReady     = "daily_quiz_ready"
	TypeError              = "error"
	TypePong               = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage encodes payload into a typed message.
func NewMessage(msgType, requestID string, payload any) (Message, error) {
	msg := Message{Type: msgType, RequestID: requestID}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = raw
	return msg, nil
}

// Client Messages (incoming)

type GeneratePayload struct {
	FileName string `json:"file_name,omitempty"`
	Text     string `json:"text"`
}

type CancelGenerationPayload struct {
	GenerationID string `json:"generation_id,omitempty"`
}

// Server Messages (outgoing)

type GenerationStartedPayload struct {
	GenerationID string `json:"generation_id"`
}

type QuizReadyPayload struct {
	GenerationID string          `json:"generation_id"`
	Quiz         json.RawMessage `json:"quiz"`
}

type GenerationEndedPayload struct {
	GenerationID string `json:"generation_id"`
	Reason       string `json:"reason,omitempty"`
}

type DailyQuizReadyPayload struct {
	Date      string `json:"date"`
	Questions int    `json:"questions"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
