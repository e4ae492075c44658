package pipeline

// compactAfter is the head offset past which popped slots are reclaimed.
const compactAfter = 1024

// chunkQueue is a FIFO of output chunks with O(1) amortized push/pop.
type chunkQueue struct {
	items [][]byte
	head  int
	bytes int
}

func (q *chunkQueue) push(chunk []byte) {
	q.items = append(q.items, chunk)
	q.bytes += len(chunk)
}

func (q *chunkQueue) pop() []byte {
	if q.len() == 0 {
		return nil
	}
	chunk := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	q.bytes -= len(chunk)
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactAfter && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return chunk
}

func (q *chunkQueue) len() int { return len(q.items) - q.head }

func (q *chunkQueue) size() int { return q.bytes }

func (q *chunkQueue) reset() {
	q.items = nil
	q.head = 0
	q.bytes = 0
}
