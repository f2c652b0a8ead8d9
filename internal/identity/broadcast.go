package identity

import "sync"

// SessionEventType classifies a session change.
type SessionEventType string

const (
	EventSignedIn    SessionEventType = "signed_in"
	EventSignedOut   SessionEventType = "signed_out"
	EventRoleChanged SessionEventType = "role_changed"
)

// SessionEvent is delivered to subscribers on every sign-in, sign-out, and
// role re-bind. Identity is nil for sign-out events.
type SessionEvent struct {
	Type     SessionEventType
	Identity *Identity
}

// Broadcaster fans session-change events out to in-process subscribers.
// Subscribers must call the returned unsubscribe function on teardown.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(SessionEvent)
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(SessionEvent))}
}

// Subscribe registers a callback for session changes and returns its
// unsubscribe function. Unsubscribe is idempotent.
func (b *Broadcaster) Subscribe(fn func(SessionEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers an event to every current subscriber. Callbacks run
// synchronously on the publishing goroutine.
func (b *Broadcaster) Publish(event SessionEvent) {
	b.mu.Lock()
	fns := make([]func(SessionEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
