package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	q := NewInMemoryQueue(2)

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	assert.ErrorIs(t, q.Enqueue("c"), ErrQueueFull)
	assert.Equal(t, 2, q.Size())

	item, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, "a", item)

	require.NoError(t, q.Enqueue("c"))
	messages, err := q.ReadAllMessages()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"b", "c"}, messages)

	_, ok = q.Dequeue()
	assert.False(t, ok)

	messages, err = q.ReadAllMessages()
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestInMemoryQueue_ClearQueue(t *testing.T) {
	q := NewInMemoryQueue(0)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	q.ClearQueue()
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, q.Enqueue(j))
			}
		}()
	}
	wg.Wait()

	messages, err := q.ReadAllMessages()
	require.NoError(t, err)
	assert.Len(t, messages, 100)
}
