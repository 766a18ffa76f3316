package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytel/telestat/internal/stats"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := stats.NewBus()

	ch1, unsub1 := bus.Subscribe()
	defer unsub1()

	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	msg := stats.AllStatsForPeriod{Times: stats.Initialize(1)}
	bus.Publish(msg)

	select {
	case got := <-ch1:
		assert.Equal(t, msg, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber 1")
	}

	select {
	case got := <-ch2:
		assert.Equal(t, msg, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber 2")
	}
}

func TestBusDropsOldestWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	bus := stats.NewBus()

	ch, unsub := bus.Subscribe()
	defer unsub()

	const overflow = 5
	for i := range 10 + overflow {
		bus.Publish(stats.AllStatsForPeriod{Times: stats.Initialize(uint64(i))}) //nolint:gosec
	}

	// The channel never blocks Publish, and holds at most busCapacity (10)
	// messages, the most recent ones.
	drained := make([]stats.AllStatsForPeriod, 0, 10)

	for range 10 {
		select {
		case msg := <-ch:
			drained = append(drained, msg)
		default:
		}
	}

	require.NotEmpty(t, drained)
	assert.Equal(t, uint64(overflow+9), drained[len(drained)-1].Times.Minimum)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	bus := stats.NewBus()

	ch, unsub := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())

	unsub()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-ch
	assert.False(t, ok)
}

func TestBusPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	t.Parallel()

	bus := stats.NewBus()
	bus.Publish(stats.AllStatsForPeriod{})
}
