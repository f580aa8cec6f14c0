package worker

import (
	"github.com/docuflow/docuflow/internal/pkg/mapper"
)

// DefaultQueueSize bounds how many mapped-but-uncommitted documents a
// worker may hold. The bound is what turns a sustained I/O stall into
// backpressure instead of memory growth.
const DefaultQueueSize = 64

// CommitQueue decouples the mapping path from the commit path inside one
// worker. Enqueue blocks when the queue is full; nothing is ever dropped.
type CommitQueue struct {
	ch chan *mapper.DocumentRecords
}

func NewCommitQueue(capacity int) *CommitQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &CommitQueue{ch: make(chan *mapper.DocumentRecords, capacity)}
}

// Enqueue hands a mapped document to the background committer. Blocks while
// the queue is full.
func (q *CommitQueue) Enqueue(doc *mapper.DocumentRecords) {
	q.ch <- doc
}

// Close signals the committer that no more documents are coming.
func (q *CommitQueue) Close() {
	close(q.ch)
}

// Drain returns the receive side for the committer loop.
func (q *CommitQueue) Drain() <-chan *mapper.DocumentRecords {
	return q.ch
}

// Depth is the number of documents currently waiting to commit.
func (q *CommitQueue) Depth() int {
	return len(q.ch)
}

// Capacity is the queue bound.
func (q *CommitQueue) Capacity() int {
	return cap(q.ch)
}
