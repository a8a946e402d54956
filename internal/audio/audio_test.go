package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		size int
		want [][]byte
	}{
		{
			name: "even split",
			data: []byte("abcdef"),
			size: 2,
			want: [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")},
		},
		{
			name: "short tail",
			data: []byte("abcde"),
			size: 2,
			want: [][]byte{[]byte("ab"), []byte("cd"), []byte("e")},
		},
		{
			name: "single chunk",
			data: []byte("abc"),
			size: 10,
			want: [][]byte{[]byte("abc")},
		},
		{
			name: "non-positive size keeps payload whole",
			data: []byte("abc"),
			size: 0,
			want: [][]byte{[]byte("abc")},
		},
		{
			name: "empty input",
			data: nil,
			size: 4,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.data, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d chunks, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("chunk %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestChunkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.pcm")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write sample file: %v", err)
	}

	chunks, err := ChunkFile(path, 4)
	if err != nil {
		t.Fatalf("ChunkFile failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if !bytes.Equal(chunks[2], []byte("89")) {
		t.Errorf("unexpected tail chunk %q", chunks[2])
	}

	if _, err := ChunkFile(filepath.Join(t.TempDir(), "missing.pcm"), 4); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBufferSink(t *testing.T) {
	sink := NewBufferSink()

	src := []byte("payload")
	if err := sink.Play("mp3", src); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	// The sink must hold its own copy.
	src[0] = 'X'

	payloads := sink.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	if payloads[0].Format != "mp3" {
		t.Errorf("expected format 'mp3', got %q", payloads[0].Format)
	}
	if !bytes.Equal(payloads[0].Data, []byte("payload")) {
		t.Errorf("expected defensive copy, got %q", payloads[0].Data)
	}

	select {
	case p := <-sink.Arrived():
		if !bytes.Equal(p.Data, []byte("payload")) {
			t.Errorf("unexpected arrival payload %q", p.Data)
		}
	default:
		t.Error("expected arrival notification")
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	sink := &FileSink{Dir: dir}

	if err := sink.Play("mp3", []byte("audio-bytes")); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".mp3" {
		t.Errorf("expected .mp3 extension, got %q", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read payload file: %v", err)
	}
	if !bytes.Equal(data, []byte("audio-bytes")) {
		t.Errorf("unexpected file contents %q", data)
	}
}
