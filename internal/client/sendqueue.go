package client

// sendQueue holds outbound audio chunks produced before the socket is open
// or before capability negotiation resolved. Chunks are flushed in
// submission order and exactly once. sent counts chunks actually written to
// the transport, for end-of-stream reconciliation with the server.
type sendQueue struct {
	pending [][]byte
	sent    int
}

func (q *sendQueue) enqueue(chunk []byte) {
	q.pending = append(q.pending, chunk)
}

// flush sends every pending chunk, in order, through send. On a send error
// the failed chunk and everything after it stay pending. Flushing an empty
// queue is a no-op.
func (q *sendQueue) flush(send func([]byte) error) (int, error) {
	for i, chunk := range q.pending {
		if err := send(chunk); err != nil {
			q.pending = append([][]byte(nil), q.pending[i:]...)
			return i, err
		}
		q.sent++
	}
	n := len(q.pending)
	q.pending = nil
	return n, nil
}

func (q *sendQueue) reset() {
	q.pending = nil
	q.sent = 0
}
