package sync

import (
	"sync"

	"github.com/google/uuid"

	"messaging-sync/internal/observability"
)

// EventType identifies which slice of manager state changed.
type EventType string

const (
	EventConversations EventType = "conversations"
	EventMessages      EventType = "messages"
	EventSelection     EventType = "selection"
	EventSending       EventType = "sending"
	EventError         EventType = "error"
)

// Event is a state-change notification delivered to subscribers. Payloads
// are not carried on the event; subscribers read the manager snapshot.
type Event struct {
	Type           EventType
	ConversationID int
}

const subscriberBuffer = 16

// Notifier fans manager state changes out to UI subscribers. Publishing
// never blocks: a subscriber whose channel is full misses the event and is
// expected to re-read the snapshot on its next one.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber and returns its id and event channel.
func (n *Notifier) Subscribe() (string, <-chan Event) {
	ch := make(chan Event, subscriberBuffer)
	id := uuid.NewString()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

// Close tears down every subscription.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

func (n *Notifier) publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			observability.IncNotifierDrop()
		}
	}
}
