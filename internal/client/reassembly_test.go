package client

import (
	"bytes"
	"testing"
)

func TestReassemblyBuffer_AssembleInArrivalOrder(t *testing.T) {
	buf := newReassemblyBuffer(3, 9, "mp3")
	buf.append([]byte("abc"))
	buf.append([]byte("def"))
	buf.append([]byte("ghi"))

	if buf.received() != 3 {
		t.Errorf("expected 3 received chunks, got %d", buf.received())
	}

	got := buf.assemble()
	if !bytes.Equal(got, []byte("abcdefghi")) {
		t.Errorf("expected concatenation in arrival order, got %q", got)
	}
}

func TestReassemblyBuffer_CountMismatchStillAssembles(t *testing.T) {
	// The completion signal is trusted over the announced counter.
	buf := newReassemblyBuffer(5, 500, "pcm")
	buf.append([]byte("only"))
	buf.append([]byte("two"))

	got := buf.assemble()
	if !bytes.Equal(got, []byte("onlytwo")) {
		t.Errorf("expected %q, got %q", "onlytwo", got)
	}
}

func TestReassemblyBuffer_Empty(t *testing.T) {
	buf := newReassemblyBuffer(0, 0, "pcm")
	if buf.received() != 0 {
		t.Errorf("expected 0 received chunks, got %d", buf.received())
	}
	if got := buf.assemble(); len(got) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(got))
	}
}
