// Package notify is the push-delivery primitive: a registry of live
// subscriptions per user id with best-effort, per-handle-isolated fanout. It
// has no knowledge of sessions or messages — callers decide what to publish.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is the JSON envelope delivered to subscribers.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"` // Unix ms
}

// Well-known event types pushed during the handshake.
const (
	EventConnected      = "connected"
	EventSessionCreated = "dh-session-created"
	EventKeySubmitted   = "dh-key-submitted"
	EventSessionActive  = "dh-session-active"
)

const defaultBuffer = 16

// Subscription is one live channel to a connected client. A user may hold
// several at once (multiple devices or tabs). The bus owns the lifecycle:
// once a write fails or Close is called the subscription is gone and C is
// closed.
type Subscription struct {
	ID     string
	UserID string
	C      <-chan Event

	bus *Bus
	ch  chan Event
}

// Close removes the subscription from the bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s.UserID, s.ID)
}

// Bus fans typed events out to every open subscription of a user.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int
	// writeTimeout bounds how long one delivery may block on a full
	// subscriber buffer before the handle is dropped.
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewBus creates an empty bus. A writeTimeout of zero means deliveries never
// wait on a full buffer: the handle is dropped immediately.
func NewBus(writeTimeout time.Duration, logger zerolog.Logger) *Bus {
	return &Bus{
		subs:         make(map[string]map[string]*Subscription),
		buffer:       defaultBuffer,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Subscribe registers a new handle for a user and returns it.
func (b *Bus) Subscribe(userID string) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		C:      ch,
		bus:    b,
		ch:     ch,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[string]*Subscription)
	}
	b.subs[userID][sub.ID] = sub
	return sub
}

// Publish delivers an event to every open handle for userID and returns the
// number of successful deliveries. A handle whose buffer stays full past the
// write timeout is removed; the fanout continues to the remaining handles.
// With zero open handles the event is silently dropped — there is no queueing
// and no at-least-once guarantee.
func (b *Bus) Publish(userID, eventType string, data any) int {
	ev := Event{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}

	// Sends happen under the read lock so a concurrent remove cannot close
	// a channel mid-write; each send is still bounded by writeTimeout.
	b.mu.RLock()
	var failed []*Subscription
	delivered := 0
	for _, sub := range b.subs[userID] {
		if b.send(sub, ev) {
			delivered++
		} else {
			failed = append(failed, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range failed {
		b.logger.Debug().
			Str("user_id", userID).
			Str("subscription_id", sub.ID).
			Str("event", eventType).
			Msg("dropping stalled subscription")
		b.remove(sub.UserID, sub.ID)
	}
	return delivered
}

// Broadcast publishes an event to every currently subscribed user. Used for
// operational events only, never for the handshake itself.
func (b *Bus) Broadcast(eventType string, data any) int {
	b.mu.RLock()
	users := make([]string, 0, len(b.subs))
	for userID := range b.subs {
		users = append(users, userID)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, userID := range users {
		delivered += b.Publish(userID, eventType, data)
	}
	return delivered
}

// SubscriberCount returns the number of open handles for a user.
func (b *Bus) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// send attempts one bounded delivery.
func (b *Bus) send(sub *Subscription, ev Event) bool {
	if b.writeTimeout <= 0 {
		select {
		case sub.ch <- ev:
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(b.writeTimeout)
	defer t.Stop()
	select {
	case sub.ch <- ev:
		return true
	case <-t.C:
		return false
	}
}

// remove unregisters a handle and closes its channel exactly once.
func (b *Bus) remove(userID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handles, ok := b.subs[userID]
	if !ok {
		return
	}
	sub, ok := handles[subID]
	if !ok {
		return
	}
	delete(handles, subID)
	if len(handles) == 0 {
		delete(b.subs, userID)
	}
	close(sub.ch)
}
