package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ServerEvent
	}{
		{
			name: "connection established",
			raw:  `{"type":"connection_established","session_id":"abc","message":"Connected to VirtualFit assistant"}`,
			want: ServerEvent{Type: EventConnectionEstablished, SessionID: "abc", Message: "Connected to VirtualFit assistant"},
		},
		{
			name: "thinking",
			raw:  `{"type":"thinking","message":"Thinking..."}`,
			want: ServerEvent{Type: EventThinking, Message: "Thinking..."},
		},
		{
			name: "stream",
			raw:  `{"type":"stream","chunk":"Hel","timestamp":"2025-01-01T00:00:00"}`,
			want: ServerEvent{Type: EventStream, Chunk: "Hel", Timestamp: "2025-01-01T00:00:00"},
		},
		{
			name: "text response",
			raw:  `{"type":"text_response","text":"Hello there!"}`,
			want: ServerEvent{Type: EventTextResponse, Text: "Hello there!"},
		},
		{
			name: "error",
			raw:  `{"type":"error","message":"boom"}`,
			want: ServerEvent{Type: EventError, Message: "boom"},
		},
		{
			name: "info",
			raw:  `{"type":"info","message":"use the analyze endpoint"}`,
			want: ServerEvent{Type: EventInfo, Message: "use the analyze endpoint"},
		},
		{
			name: "unknown type",
			raw:  `{"type":"typing"}`,
			want: ServerEvent{Type: EventUnknown},
		},
		{
			name: "missing type",
			raw:  `{"message":"hi"}`,
			want: ServerEvent{Type: EventUnknown, Message: "hi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeServerEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeServerEvent_InvalidJSON(t *testing.T) {
	_, err := DecodeServerEvent([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOutboundFrameWireShape(t *testing.T) {
	frame := OutboundFrame{
		MessageType: MessageTypeText,
		Text:        "hi",
		UserID:      "u1",
		UserData:    &UserData{Name: "Ann", Age: 30, Goals: []string{"Lose weight"}},
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "text", m["message_type"])
	assert.Equal(t, "hi", m["text"])
	assert.Equal(t, "u1", m["user_id"])
	ud := m["user_data"].(map[string]any)
	assert.Equal(t, "Ann", ud["name"])
	assert.Equal(t, float64(30), ud["age"])
	assert.NotContains(t, ud, "email")
}

func TestEventConstructors(t *testing.T) {
	assert.Equal(t, EventThinking, Thinking().Type)
	assert.Equal(t, "Thinking...", Thinking().Message)
	s := Stream("abc")
	assert.Equal(t, "abc", s.Chunk)
	assert.NotEmpty(t, s.Timestamp)
	assert.Equal(t, "done", TextResponse("done").Text)
	assert.Equal(t, EventError, ErrorEvent("x").Type)
	assert.Equal(t, EventInfo, InfoEvent("x").Type)
	ce := ConnectionEstablished("sid", "hello")
	assert.Equal(t, "sid", ce.SessionID)
}
