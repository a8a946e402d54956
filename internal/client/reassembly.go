package client

// reassemblyBuffer accumulates the binary frames of one inbound audio
// stream. Ordering comes from the transport's in-order delivery; chunks
// carry no embedded sequence numbers.
type reassemblyBuffer struct {
	chunks      [][]byte
	totalChunks int
	totalBytes  int
	format      string
}

func newReassemblyBuffer(totalChunks, totalBytes int, format string) *reassemblyBuffer {
	return &reassemblyBuffer{
		totalChunks: totalChunks,
		totalBytes:  totalBytes,
		format:      format,
	}
}

func (b *reassemblyBuffer) append(chunk []byte) {
	b.chunks = append(b.chunks, chunk)
}

func (b *reassemblyBuffer) received() int {
	return len(b.chunks)
}

// assemble concatenates the buffered chunks, in arrival order, into one
// contiguous payload.
func (b *reassemblyBuffer) assemble() []byte {
	size := 0
	for _, c := range b.chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}
