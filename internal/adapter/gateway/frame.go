package gateway

import (
	"encoding/json"
	"fmt"

	"virtualfit/internal/domain"
)

// Protocol error texts sent to chat clients.
const (
	msgInvalidJSON    = "Invalid JSON format"
	msgMissingType    = "Missing message_type in request"
	msgEmptyMessage   = "Empty message received"
	msgImageRedirect  = "Please use the /analyze-food endpoint to upload and analyze food images"
	msgRateLimited    = "Rate limit exceeded, please slow down"
	msgConnected      = "Connected to VirtualFit assistant"
	msgProcessingFail = "Error processing message: %s"
)

// clientFrame is an inbound chat frame. user_data is decoded separately so a
// malformed profile never rejects the message itself.
type clientFrame struct {
	MessageType string          `json:"message_type"`
	Text        string          `json:"text"`
	UserID      string          `json:"user_id"`
	UserData    json.RawMessage `json:"user_data"`
}

// frameError is a protocol problem reported back as an error event.
type frameError struct {
	message string
}

func (e *frameError) Error() string { return e.message }

// decodeClientFrame parses one inbound frame. Valid JSON that is not an
// object carrying message_type is reported as a missing type.
func decodeClientFrame(data []byte) (clientFrame, *domain.UserData, error) {
	if !json.Valid(data) {
		return clientFrame{}, nil, &frameError{msgInvalidJSON}
	}
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil || f.MessageType == "" {
		return clientFrame{}, nil, &frameError{msgMissingType}
	}

	var ud *domain.UserData
	if len(f.UserData) > 0 && string(f.UserData) != "null" {
		var parsed domain.UserData
		if err := json.Unmarshal(f.UserData, &parsed); err == nil {
			ud = &parsed
		}
	}
	if f.UserID == "" {
		f.UserID = domain.AnonymousUserID
	}
	return f, ud, nil
}

func processingError(err error) string {
	return fmt.Sprintf(msgProcessingFail, err)
}
