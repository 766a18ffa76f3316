package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytel/telestat/internal/stats"
)

func TestRingBufferPushFrontNewestFirst(t *testing.T) {
	t.Parallel()

	rb := stats.NewRingBuffer[int](5)

	rb.PushFront(1)
	rb.PushFront(2)
	rb.PushFront(3)

	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, 5, rb.Cap())
	assert.Equal(t, []int{3, 2, 1}, rb.Newest(10))
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	t.Parallel()

	rb := stats.NewRingBuffer[int](5)

	for i := 1; i <= 10; i++ {
		rb.PushFront(i)
	}

	assert.Equal(t, 5, rb.Len())
	// Pushing past capacity evicts oldest-first: the retained floor is the 6th pushed.
	assert.Equal(t, []int{10, 9, 8, 7, 6}, rb.Newest(10))
}

func TestRingBufferAtOutOfRange(t *testing.T) {
	t.Parallel()

	rb := stats.NewRingBuffer[int](3)
	rb.PushFront(1)

	_, ok := rb.At(5)
	assert.False(t, ok)

	v, ok := rb.At(0)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRingBufferZeroCapacityDiscardsEverything(t *testing.T) {
	t.Parallel()

	rb := stats.NewRingBuffer[int](0)
	rb.PushFront(1)
	rb.PushFront(2)

	assert.Equal(t, 0, rb.Len())
	assert.Equal(t, 0, rb.Cap())
	assert.Empty(t, rb.Newest(10))
}

func TestRingBufferNewestCapsAtLen(t *testing.T) {
	t.Parallel()

	rb := stats.NewRingBuffer[int](100)
	rb.PushFront(1)
	rb.PushFront(2)

	assert.Len(t, rb.Newest(50), 2)
}
