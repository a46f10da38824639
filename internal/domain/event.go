package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates inbound chat frames.
type EventType string

const (
	EventConnectionEstablished EventType = "connection_established"
	EventThinking              EventType = "thinking"
	EventStream                EventType = "stream"
	EventTextResponse          EventType = "text_response"
	EventError                 EventType = "error"
	EventInfo                  EventType = "info"

	// EventUnknown is assigned to frames whose type is not recognized.
	EventUnknown EventType = "unknown"
)

// ServerEvent is one inbound frame from the chat channel. Only the fields
// belonging to Type are meaningful.
type ServerEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"` // connection_established
	Chunk     string    `json:"chunk,omitempty"`      // stream
	Text      string    `json:"text,omitempty"`       // text_response
	Message   string    `json:"message,omitempty"`    // error, info, thinking, connection_established
	Timestamp string    `json:"timestamp,omitempty"`
}

// DecodeServerEvent parses one JSON frame. Frames with an unrecognized type
// decode to EventUnknown rather than failing.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("%w: decode server event: %v", ErrInvalidInput, err)
	}
	switch ev.Type {
	case EventConnectionEstablished, EventThinking, EventStream,
		EventTextResponse, EventError, EventInfo:
	default:
		ev.Type = EventUnknown
	}
	return ev, nil
}

// Event constructors used by the gateway and by tests.

func ConnectionEstablished(sessionID, message string) ServerEvent {
	return ServerEvent{Type: EventConnectionEstablished, SessionID: sessionID, Message: message}
}

func Thinking() ServerEvent {
	return ServerEvent{Type: EventThinking, Message: "Thinking..."}
}

func Stream(chunk string) ServerEvent {
	return ServerEvent{Type: EventStream, Chunk: chunk, Timestamp: nowStamp()}
}

func TextResponse(text string) ServerEvent {
	return ServerEvent{Type: EventTextResponse, Text: text, Timestamp: nowStamp()}
}

func ErrorEvent(message string) ServerEvent {
	return ServerEvent{Type: EventError, Message: message}
}

func InfoEvent(message string) ServerEvent {
	return ServerEvent{Type: EventInfo, Message: message}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Outbound message types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// OutboundFrame is a client-to-server chat frame.
type OutboundFrame struct {
	MessageType string    `json:"message_type"`
	Text        string    `json:"text,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	UserData    *UserData `json:"user_data,omitempty"`
}
