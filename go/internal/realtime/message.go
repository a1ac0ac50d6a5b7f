package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// TopicPrefix scopes every program topic. The full topic doubles as a NATS subject.
const TopicPrefix = "kairon.program."

// Topic returns the broadcast topic for a program.
func Topic(programID string) string {
	return TopicPrefix + programID
}

// ProgramIDFromTopic extracts the program id from a topic.
func ProgramIDFromTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok || id == "" || strings.ContainsAny(id, ".*> ") {
		return "", false
	}
	return id, true
}

// ServerSender is the sender of messages a relay builds from persisted state rather than
// relaying from a live peer.
const ServerSender = "gateway"

// MessageType identifies a protocol message
type MessageType string

const (
	TypeTimerUpdate   MessageType = "timer_update"
	TypeProgramUpdate MessageType = "program_update"
	TypeSyncRequest   MessageType = "sync_request"
	TypeSyncResponse  MessageType = "sync_response"
)

// Message is the envelope carried on a program topic
type Message struct {
	ID        string          `json:"id"`
	ProgramID string          `json:"program_id"`
	Type      MessageType     `json:"type"`
	Sender    string          `json:"sender"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps payload in an envelope. A nil payload leaves Data empty.
func NewMessage(programID, sender string, typ MessageType, payload any) (*Message, error) {
	msg := &Message{
		ID:        uuid.NewString(),
		ProgramID: programID,
		Type:      typ,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// ParsePayload decodes the message data into the payload type for its message type.
// Unknown types yield (nil, nil).
func ParsePayload(msg *Message) (any, error) {
	switch msg.Type {
	case TypeTimerUpdate, TypeSyncResponse:
		var st models.TimerState
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return st, nil

	case TypeProgramUpdate:
		var p models.Program
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return p, nil

	case TypeSyncRequest:
		return struct{}{}, nil

	default:
		return nil, nil
	}
}
