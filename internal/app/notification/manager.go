// Package notification fans ViewState snapshots out to display subscribers.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lyricbox/internal/app/coordinator"
)

// DefaultQueueSize is the per-subscriber queue capacity.
const DefaultQueueSize = 16

// Notification is one snapshot delivered to a subscriber.
type Notification struct {
	SequenceNo uint64
	State      coordinator.ViewState
}

// Subscription receives notifications in publish order.
// C is closed when the subscription is removed or the manager is closed.
type Subscription struct {
	ID string
	C  <-chan Notification

	ch chan Notification
}

// Manager manages notification subscriptions and broadcasting.
// Publish never blocks: a subscriber whose queue is full loses its oldest notification.
type Manager struct {
	mu            sync.Mutex
	subscriptions map[string]*Subscription
	sequenceNo    uint64
	last          *Notification
	queueSize     int
	closed        bool
}

// NewManager creates a new notification manager.
func NewManager(queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		queueSize:     queueSize,
	}
}

// Subscribe adds a new subscription. The latest snapshot, if any, is delivered first.
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Notification, m.queueSize)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		ch: ch,
	}
	if m.closed {
		close(ch)
		return sub
	}
	if m.last != nil {
		ch <- *m.last
	}
	m.subscriptions[sub.ID] = sub
	zlog.Debug().Msgf("notification: subscribed: id=%s subscribers=%d", sub.ID, len(m.subscriptions))
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return
	}
	delete(m.subscriptions, subscriptionID)
	close(sub.ch)
	zlog.Debug().Msgf("notification: unsubscribed: id=%s subscribers=%d", subscriptionID, len(m.subscriptions))
}

// Publish assigns the next sequence number to state and queues it for every subscriber.
func (m *Manager) Publish(state coordinator.ViewState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.sequenceNo++
	n := Notification{SequenceNo: m.sequenceNo, State: state}
	m.last = &n

	for _, sub := range m.subscriptions {
		select {
		case sub.ch <- n:
		default:
			// Queue full: drop the oldest so the newest state always arrives.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- n
			zlog.Debug().Msgf("notification: subscriber is behind, dropped oldest: id=%s", sub.ID)
		}
	}
}

// Latest returns the last published notification.
func (m *Manager) Latest() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Notification{}, false
	}
	return *m.last, true
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for id, sub := range m.subscriptions {
		close(sub.ch)
		delete(m.subscriptions, id)
	}
}
