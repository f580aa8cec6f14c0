package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/internal/pkg/mapper"
)

func TestQueueDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultQueueSize, NewCommitQueue(0).Capacity())
	assert.Equal(t, DefaultQueueSize, NewCommitQueue(-1).Capacity())
	assert.Equal(t, 8, NewCommitQueue(8).Capacity())
}

// A full queue must block the producer rather than drop or grow.
func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := NewCommitQueue(2)
	q.Enqueue(&mapper.DocumentRecords{DocumentID: 1})
	q.Enqueue(&mapper.DocumentRecords{DocumentID: 2})
	require.Equal(t, 2, q.Depth())

	enqueued := make(chan struct{})
	go func() {
		q.Enqueue(&mapper.DocumentRecords{DocumentID: 3})
		close(enqueued)
	}()

	select {
	case <-enqueued:
		t.Fatal("enqueue on a full queue must block")
	case <-time.After(50 * time.Millisecond):
	}

	// Draining one slot releases the blocked producer.
	doc := <-q.Drain()
	assert.Equal(t, uint64(1), doc.DocumentID)

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("enqueue did not resume after a slot freed up")
	}
}

// Every enqueued document reaches the consumer exactly once, even with a
// consumer slower than the producer.
func TestQueueDeliversEverythingInOrder(t *testing.T) {
	const n = 100
	q := NewCommitQueue(4)

	var wg sync.WaitGroup
	wg.Add(1)
	var got []uint64
	go func() {
		defer wg.Done()
		for doc := range q.Drain() {
			got = append(got, doc.DocumentID)
			time.Sleep(time.Millisecond)
		}
	}()

	for i := uint64(1); i <= n; i++ {
		q.Enqueue(&mapper.DocumentRecords{DocumentID: i})
	}
	q.Close()
	wg.Wait()

	require.Len(t, got, n)
	for i, id := range got {
		assert.Equal(t, uint64(i+1), id)
	}
}

func TestDrainEndsAfterClose(t *testing.T) {
	q := NewCommitQueue(4)
	q.Enqueue(&mapper.DocumentRecords{DocumentID: 1})
	q.Close()

	var ids []uint64
	for doc := range q.Drain() {
		ids = append(ids, doc.DocumentID)
	}
	assert.Equal(t, []uint64{1}, ids)
}
