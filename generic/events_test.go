package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/snapshot-ledger/generic"
)

func TestEventBus_PublishReachesEverySubscriber(t *testing.T) {
	bus := generic.NewEventBus()
	_, first := bus.Subscribe()
	_, second := bus.Subscribe()
	assert.Equal(t, 2, bus.Subscribers())

	evt := generic.SnapshotTaken{ID: 3, TakenAt: time.Now()}
	bus.Publish(evt)

	assert.Equal(t, evt.ID, (<-first).ID)
	assert.Equal(t, evt.ID, (<-second).ID)
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := generic.NewEventBus()
	id, ch := bus.Subscribe()

	require.True(t, bus.Unsubscribe(id))
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())

	assert.False(t, bus.Unsubscribe(id), "second unsubscribe is a no-op")
}

func TestEventBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := generic.NewEventBus()
	_, ch := bus.Subscribe()

	// Nobody reads; publishing well past the buffer must still return.
	done := make(chan struct{})
	go func() {
		for i := 1; i <= 500; i++ {
			bus.Publish(generic.SnapshotTaken{ID: generic.SnapshotID(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	// The earliest events were kept, the overflow dropped.
	assert.Equal(t, generic.SnapshotID(1), (<-ch).ID)
	assert.Less(t, len(ch), 500)
}
