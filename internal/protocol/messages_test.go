package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeServerMessage(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		check   func(t *testing.T, msg ServerMessage)
		wantErr bool
	}{
		{
			name:  "connected",
			frame: `{"type":"connected","session_id":"sess-123"}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(Connected)
				if !ok {
					t.Fatalf("expected Connected, got %T", msg)
				}
				if m.SessionID != "sess-123" {
					t.Errorf("expected session_id 'sess-123', got %q", m.SessionID)
				}
			},
		},
		{
			name:  "preference ack",
			frame: `{"type":"audio_preference_ack","audio_preferences":{"binary_supported":true,"chunked_supported":true,"max_chunk_size":8192}}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(PreferenceAck)
				if !ok {
					t.Fatalf("expected PreferenceAck, got %T", msg)
				}
				if !m.Preferences.BinarySupported {
					t.Error("expected binary_supported true")
				}
				if m.Preferences.MaxChunkSize != 8192 {
					t.Errorf("expected max_chunk_size 8192, got %d", m.Preferences.MaxChunkSize)
				}
			},
		},
		{
			name:  "text response",
			frame: `{"type":"text_response","text":"hello there"}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(TextResponse)
				if !ok {
					t.Fatalf("expected TextResponse, got %T", msg)
				}
				if m.Text != "hello there" {
					t.Errorf("unexpected text %q", m.Text)
				}
			},
		},
		{
			name:  "voice transcript",
			frame: `{"type":"voice_transcript","transcript":"good morning"}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(VoiceTranscript)
				if !ok {
					t.Fatalf("expected VoiceTranscript, got %T", msg)
				}
				if m.Transcript != "good morning" {
					t.Errorf("unexpected transcript %q", m.Transcript)
				}
			},
		},
		{
			name:  "stream start",
			frame: `{"type":"audio_stream_start","total_chunks":7,"total_bytes":7000,"format":"mp3"}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(StreamStart)
				if !ok {
					t.Fatalf("expected StreamStart, got %T", msg)
				}
				if m.TotalChunks != 7 || m.TotalBytes != 7000 || m.Format != "mp3" {
					t.Errorf("unexpected stream start %+v", m)
				}
			},
		},
		{
			name:  "stream complete",
			frame: `{"type":"audio_stream_complete","success":true,"chunks_sent":7}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(StreamComplete)
				if !ok {
					t.Fatalf("expected StreamComplete, got %T", msg)
				}
				if !m.Success || m.ChunksSent != 7 {
					t.Errorf("unexpected stream complete %+v", m)
				}
			},
		},
		{
			name:  "processing status",
			frame: `{"type":"processing_status","status":"transcribing"}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(ProcessingStatus)
				if !ok {
					t.Fatalf("expected ProcessingStatus, got %T", msg)
				}
				if m.Status != "transcribing" {
					t.Errorf("unexpected status %q", m.Status)
				}
			},
		},
		{
			name:  "error",
			frame: `{"type":"error","message":"something broke"}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(ServerError)
				if !ok {
					t.Fatalf("expected ServerError, got %T", msg)
				}
				if m.Message != "something broke" {
					t.Errorf("unexpected message %q", m.Message)
				}
			},
		},
		{
			name:  "unknown type tag",
			frame: `{"type":"shiny_new_feature","payload":42}`,
			check: func(t *testing.T, msg ServerMessage) {
				m, ok := msg.(Unknown)
				if !ok {
					t.Fatalf("expected Unknown, got %T", msg)
				}
				if m.Tag != "shiny_new_feature" {
					t.Errorf("unexpected tag %q", m.Tag)
				}
			},
		},
		{
			name:    "invalid JSON",
			frame:   `{not json}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeServerMessage([]byte(tt.frame))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeServerMessage failed: %v", err)
			}
			tt.check(t, msg)
		})
	}
}

func TestDecodeClientMessage(t *testing.T) {
	frame := `{"type":"audio_preference","prefer_binary":true,"prefer_chunked":true,"chunk_size":4096,"format":"pcm","sample_rate":16000,"channels":1,"timestamp":"2026-01-01T00:00:00Z"}`
	msg, err := DecodeClientMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeClientMessage failed: %v", err)
	}
	pref, ok := msg.(AudioPreference)
	if !ok {
		t.Fatalf("expected AudioPreference, got %T", msg)
	}
	if !pref.PreferBinary || !pref.PreferChunked {
		t.Error("expected binary and chunked preference")
	}
	if pref.ChunkSize != 4096 || pref.SampleRate != 16000 || pref.Channels != 1 {
		t.Errorf("unexpected preference fields %+v", pref)
	}

	msg, err = DecodeClientMessage([]byte(`{"type":"audio_stream_end","total_chunks_sent":12,"timestamp":"2026-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage failed: %v", err)
	}
	end, ok := msg.(AudioStreamEnd)
	if !ok {
		t.Fatalf("expected AudioStreamEnd, got %T", msg)
	}
	if end.TotalChunksSent != 12 {
		t.Errorf("expected total_chunks_sent 12, got %d", end.TotalChunksSent)
	}

	msg, err = DecodeClientMessage([]byte(`{"type":"mystery"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage failed: %v", err)
	}
	if _, ok := msg.(Unknown); !ok {
		t.Fatalf("expected Unknown, got %T", msg)
	}
}

func TestMessageConstructors(t *testing.T) {
	pref := NewAudioPreference(2048, "pcm", 16000, 1)
	if pref.Type != MessageTypeAudioPreference {
		t.Errorf("unexpected type tag %q", pref.Type)
	}
	if !pref.PreferBinary || !pref.PreferChunked {
		t.Error("preference must announce binary and chunked support")
	}
	if pref.Timestamp == "" || pref.MessageID == "" {
		t.Error("timestamp and message id must be populated")
	}

	text := NewTextInput("hi")
	if text.Type != MessageTypeTextInput || text.Text != "hi" {
		t.Errorf("unexpected text input %+v", text)
	}

	end := NewAudioStreamEnd(3)
	if end.Type != MessageTypeAudioStreamEnd || end.TotalChunksSent != 3 {
		t.Errorf("unexpected stream end %+v", end)
	}
}

func TestConstructorsRoundTrip(t *testing.T) {
	payload, err := json.Marshal(NewStreamStart(3, 300, "mp3"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	msg, err := DecodeServerMessage(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	start, ok := msg.(StreamStart)
	if !ok {
		t.Fatalf("expected StreamStart, got %T", msg)
	}
	if start.TotalChunks != 3 || start.TotalBytes != 300 || start.Format != "mp3" {
		t.Errorf("unexpected round-trip result %+v", start)
	}
}
