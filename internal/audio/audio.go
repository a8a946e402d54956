package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Chunk splits raw audio into size-byte chunks, preserving order. The last
// chunk may be shorter. A non-positive size returns the whole payload as one
// chunk.
func Chunk(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]byte{data}
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// ChunkFile reads an audio file and splits it into size-byte chunks.
func ChunkFile(path string, size int) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	return Chunk(data, size), nil
}

// Payload is one complete audio buffer handed to a playback sink.
type Payload struct {
	Format string
	Data   []byte
}

// BufferSink collects played audio in memory and signals arrivals on a
// channel. It is the playback collaborator used by tests and the CLI.
type BufferSink struct {
	mu       sync.Mutex
	payloads []Payload
	arrived  chan Payload
}

// NewBufferSink creates an in-memory playback sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{
		arrived: make(chan Payload, 16),
	}
}

// Play records one complete audio payload.
func (s *BufferSink) Play(format string, audio []byte) error {
	p := Payload{Format: format, Data: append([]byte(nil), audio...)}

	s.mu.Lock()
	s.payloads = append(s.payloads, p)
	s.mu.Unlock()

	select {
	case s.arrived <- p:
	default:
	}
	return nil
}

// Payloads returns a copy of everything played so far.
func (s *BufferSink) Payloads() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Payload, len(s.payloads))
	copy(out, s.payloads)
	return out
}

// Arrived delivers payloads as they are played.
func (s *BufferSink) Arrived() <-chan Payload {
	return s.arrived
}

// FileSink writes each played payload to a timestamped file in a directory,
// using the announced format as the file extension.
type FileSink struct {
	Dir string
}

// Play writes one complete audio payload to disk.
func (s *FileSink) Play(format string, audio []byte) error {
	if format == "" {
		format = "bin"
	}
	name := fmt.Sprintf("response-%d.%s", time.Now().UnixNano(), format)
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("write audio payload: %w", err)
	}
	return nil
}
