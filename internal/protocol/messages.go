package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type tag of a JSON control message.
type MessageType string

// Client -> server message types
const (
	MessageTypeAudioPreference MessageType = "audio_preference"
	MessageTypeTextInput       MessageType = "text_input"
	MessageTypeAudioStreamEnd  MessageType = "audio_stream_end"
)

// Server -> client message types
const (
	MessageTypeConnected        MessageType = "connected"
	MessageTypePreferenceAck    MessageType = "audio_preference_ack"
	MessageTypeTextResponse     MessageType = "text_response"
	MessageTypeVoiceTranscript  MessageType = "voice_transcript"
	MessageTypeStreamStart      MessageType = "audio_stream_start"
	MessageTypeStreamComplete   MessageType = "audio_stream_complete"
	MessageTypeProcessingStatus MessageType = "processing_status"
	MessageTypeError            MessageType = "error"
)

// ServerMessage is the closed set of control messages a server can send.
// Decode returns exactly one of the variants below; anything with an
// unrecognized type tag decodes to Unknown so that callers can switch
// exhaustively over the set.
type ServerMessage interface {
	serverMessage()
}

// Connected is sent once per connection and carries the session identifier
// the server will use to correlate the conversation.
type Connected struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// AckPreferences carries the limits the server agreed to.
type AckPreferences struct {
	BinarySupported  bool `json:"binary_supported"`
	ChunkedSupported bool `json:"chunked_supported"`
	MaxChunkSize     int  `json:"max_chunk_size"`
}

// PreferenceAck acknowledges an AudioPreference announcement.
type PreferenceAck struct {
	Type        MessageType    `json:"type"`
	Preferences AckPreferences `json:"audio_preferences"`
}

// TextResponse carries one assistant text turn.
type TextResponse struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// VoiceTranscript carries the recognized text of a user voice turn.
type VoiceTranscript struct {
	Type       MessageType `json:"type"`
	Transcript string      `json:"transcript"`
}

// StreamStart announces an inbound binary audio stream. Every binary frame
// that follows, up to the matching StreamComplete, belongs to this stream.
type StreamStart struct {
	Type        MessageType `json:"type"`
	TotalChunks int         `json:"total_chunks"`
	TotalBytes  int         `json:"total_bytes"`
	Format      string      `json:"format"`
}

// StreamComplete terminates an inbound binary audio stream.
type StreamComplete struct {
	Type       MessageType `json:"type"`
	Success    bool        `json:"success"`
	ChunksSent int         `json:"chunks_sent"`
}

// ProcessingStatus is an informational processing-phase update.
type ProcessingStatus struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

// ServerError carries a human-readable error message.
type ServerError struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// Unknown preserves a message whose type tag this client does not recognize.
// The server is allowed to grow the protocol; unknown tags are not an error.
type Unknown struct {
	Tag MessageType
	Raw []byte
}

func (Connected) serverMessage()        {}
func (PreferenceAck) serverMessage()    {}
func (TextResponse) serverMessage()     {}
func (VoiceTranscript) serverMessage()  {}
func (StreamStart) serverMessage()      {}
func (StreamComplete) serverMessage()   {}
func (ProcessingStatus) serverMessage() {}
func (ServerError) serverMessage()      {}
func (Unknown) serverMessage()          {}

type envelope struct {
	Type MessageType `json:"type"`
}

// DecodeServerMessage parses one text frame into its ServerMessage variant.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	switch env.Type {
	case MessageTypeConnected:
		var msg Connected
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid connected message: %w", err)
		}
		return msg, nil

	case MessageTypePreferenceAck:
		var msg PreferenceAck
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio_preference_ack message: %w", err)
		}
		return msg, nil

	case MessageTypeTextResponse:
		var msg TextResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid text_response message: %w", err)
		}
		return msg, nil

	case MessageTypeVoiceTranscript:
		var msg VoiceTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid voice_transcript message: %w", err)
		}
		return msg, nil

	case MessageTypeStreamStart:
		var msg StreamStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio_stream_start message: %w", err)
		}
		return msg, nil

	case MessageTypeStreamComplete:
		var msg StreamComplete
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio_stream_complete message: %w", err)
		}
		return msg, nil

	case MessageTypeProcessingStatus:
		var msg ProcessingStatus
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid processing_status message: %w", err)
		}
		return msg, nil

	case MessageTypeError:
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid error message: %w", err)
		}
		return msg, nil

	default:
		return Unknown{Tag: env.Type, Raw: data}, nil
	}
}

// AudioPreference announces the client's preferred transfer mode. Sent once
// per connection, immediately after the transport opens.
type AudioPreference struct {
	Type          MessageType `json:"type"`
	PreferBinary  bool        `json:"prefer_binary"`
	PreferChunked bool        `json:"prefer_chunked"`
	ChunkSize     int         `json:"chunk_size"`
	Format        string      `json:"format"`
	SampleRate    int         `json:"sample_rate"`
	Channels      int         `json:"channels"`
	Timestamp     string      `json:"timestamp"`
	MessageID     string      `json:"message_id,omitempty"`
}

// TextInput carries one typed user turn.
type TextInput struct {
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// AudioStreamEnd signals that local audio capture stopped. TotalChunksSent
// lets the server reconcile against the binary frames it received.
type AudioStreamEnd struct {
	Type            MessageType `json:"type"`
	Timestamp       string      `json:"timestamp"`
	TotalChunksSent int         `json:"total_chunks_sent"`
	MessageID       string      `json:"message_id,omitempty"`
}

// NewAudioPreference creates a preference announcement for the given
// chunking and format parameters.
func NewAudioPreference(chunkSize int, format string, sampleRate, channels int) *AudioPreference {
	return &AudioPreference{
		Type:          MessageTypeAudioPreference,
		PreferBinary:  true,
		PreferChunked: true,
		ChunkSize:     chunkSize,
		Format:        format,
		SampleRate:    sampleRate,
		Channels:      channels,
		Timestamp:     time.Now().Format(time.RFC3339),
		MessageID:     uuid.NewString(),
	}
}

// NewTextInput creates a text-input message.
func NewTextInput(text string) *TextInput {
	return &TextInput{
		Type:      MessageTypeTextInput,
		Text:      text,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
	}
}

// NewAudioStreamEnd creates an end-of-capture message.
func NewAudioStreamEnd(totalChunksSent int) *AudioStreamEnd {
	return &AudioStreamEnd{
		Type:            MessageTypeAudioStreamEnd,
		Timestamp:       time.Now().Format(time.RFC3339),
		TotalChunksSent: totalChunksSent,
		MessageID:       uuid.NewString(),
	}
}
