package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClientMessage is the closed set of control messages a client can send.
// The server half of the protocol switches exhaustively over it.
type ClientMessage interface {
	clientMessage()
}

func (AudioPreference) clientMessage() {}
func (TextInput) clientMessage()       {}
func (AudioStreamEnd) clientMessage()  {}
func (Unknown) clientMessage()         {}

// DecodeClientMessage parses one text frame into its ClientMessage variant.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	switch env.Type {
	case MessageTypeAudioPreference:
		var msg AudioPreference
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio_preference message: %w", err)
		}
		return msg, nil

	case MessageTypeTextInput:
		var msg TextInput
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid text_input message: %w", err)
		}
		return msg, nil

	case MessageTypeAudioStreamEnd:
		var msg AudioStreamEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio_stream_end message: %w", err)
		}
		return msg, nil

	default:
		return Unknown{Tag: env.Type, Raw: data}, nil
	}
}

// NewConnected creates the session-established message.
func NewConnected(sessionID string) *Connected {
	return &Connected{
		Type:      MessageTypeConnected,
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// NewPreferenceAck creates a capability acknowledgment.
func NewPreferenceAck(prefs AckPreferences) *PreferenceAck {
	return &PreferenceAck{
		Type:        MessageTypePreferenceAck,
		Preferences: prefs,
	}
}

// NewTextResponse creates an assistant text turn.
func NewTextResponse(text string) *TextResponse {
	return &TextResponse{
		Type: MessageTypeTextResponse,
		Text: text,
	}
}

// NewVoiceTranscript creates a recognized-speech message.
func NewVoiceTranscript(transcript string) *VoiceTranscript {
	return &VoiceTranscript{
		Type:       MessageTypeVoiceTranscript,
		Transcript: transcript,
	}
}

// NewStreamStart announces an outbound binary audio stream.
func NewStreamStart(totalChunks, totalBytes int, format string) *StreamStart {
	return &StreamStart{
		Type:        MessageTypeStreamStart,
		TotalChunks: totalChunks,
		TotalBytes:  totalBytes,
		Format:      format,
	}
}

// NewStreamComplete terminates an outbound binary audio stream.
func NewStreamComplete(success bool, chunksSent int) *StreamComplete {
	return &StreamComplete{
		Type:       MessageTypeStreamComplete,
		Success:    success,
		ChunksSent: chunksSent,
	}
}

// NewProcessingStatus creates a processing-phase update.
func NewProcessingStatus(status string) *ProcessingStatus {
	return &ProcessingStatus{
		Type:   MessageTypeProcessingStatus,
		Status: status,
	}
}

// NewServerError creates an error message.
func NewServerError(message string) *ServerError {
	return &ServerError{
		Type:    MessageTypeError,
		Message: message,
	}
}
