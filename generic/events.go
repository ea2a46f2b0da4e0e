package generic

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/snapshot-ledger/logx"
)

// =============================================================================
// EVENTS - "snapshot taken" notifications
// =============================================================================

// SnapshotTaken is published once for every new snapshot boundary.
type SnapshotTaken struct {
	ID      SnapshotID
	TakenAt time.Time
}

type SubscriberID string

// subscriberBuffer bounds how far a slow subscriber may lag before it
// starts missing events.
const subscriberBuffer = 64

// EventBus fans SnapshotTaken events out to subscribers. Publish never
// blocks: a subscriber whose channel is full misses the event.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[SubscriberID]chan SnapshotTaken
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[SubscriberID]chan SnapshotTaken),
	}
}

// Subscribe registers a new subscriber and returns its receive channel.
func (eb *EventBus) Subscribe() (SubscriberID, <-chan SnapshotTaken) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := SubscriberID(uuid.Must(uuid.NewV7()).String())
	ch := make(chan SnapshotTaken, subscriberBuffer)
	eb.subscribers[id] = ch

	logx.Info("EventBus", "subscribed %s (total=%d)", id, len(eb.subscribers))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (eb *EventBus) Unsubscribe(id SubscriberID) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch, ok := eb.subscribers[id]
	if !ok {
		return false
	}
	delete(eb.subscribers, id)
	close(ch)
	return true
}

// Publish delivers evt to every subscriber that has room for it.
func (eb *EventBus) Publish(evt SnapshotTaken) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, ch := range eb.subscribers {
		select {
		case ch <- evt:
		default:
			logx.Warn("EventBus", "subscriber %s full, dropped snapshot %d", id, evt.ID)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (eb *EventBus) Subscribers() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
