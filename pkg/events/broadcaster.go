package events

import (
	"sync"

	"github.com/cgif-games/octothorpe/pkg/users"
	"github.com/cgif-games/octothorpe/pkg/world"
)

// broadcastKind is the closed set of events the shared queue carries.
type broadcastKind int

const (
	bcLogin broadcastKind = iota
	bcLogout
	bcMove
	bcCollected
)

// broadcast is one entry on the shared queue. origin is the session id of
// the acting session, used to exclude it from its own notifications.
type broadcast struct {
	kind     broadcastKind
	origin   int
	user     *users.User
	treasure world.Treasure
}

// Broadcaster is the single server-wide fan-out loop. Sessions register
// their private queues; each shared event is re-enqueued as a derived
// notification onto every other session's queue, in dequeue order.
type Broadcaster struct {
	mu     sync.Mutex
	cond   *sync.Cond
	shared []broadcast
	closed bool

	subs map[int]*Queue
}

// NewBroadcaster creates a broadcaster; call Run in its own goroutine.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{subs: make(map[int]*Queue)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Register attaches a session's private queue to the fan-out set.
func (b *Broadcaster) Register(sessionID int, q *Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sessionID] = q
}

// Unregister detaches a session. Safe to call during teardown while the
// loop is mid-dispatch; the session's queue simply stops receiving.
func (b *Broadcaster) Unregister(sessionID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sessionID)
}

// Login announces a successful login to every other session.
func (b *Broadcaster) Login(origin int, u *users.User) {
	b.push(broadcast{kind: bcLogin, origin: origin, user: u})
}

// Logout announces a departure to every session still connected.
func (b *Broadcaster) Logout(u *users.User) {
	b.push(broadcast{kind: bcLogout, origin: -1, user: u})
}

// Move announces a position change to every other session.
func (b *Broadcaster) Move(origin int, u *users.User) {
	b.push(broadcast{kind: bcMove, origin: origin, user: u})
}

// Collected announces a treasure claim to every other session.
func (b *Broadcaster) Collected(origin int, u *users.User, t world.Treasure) {
	b.push(broadcast{kind: bcCollected, origin: origin, user: u, treasure: t})
}

func (b *Broadcaster) push(ev broadcast) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.shared = append(b.shared, ev)
	b.cond.Signal()
}

// Run drains the shared queue until Stop. Events are relayed in dequeue
// order; there is no cross-session wall-clock ordering guarantee.
func (b *Broadcaster) Run() {
	for {
		b.mu.Lock()
		for len(b.shared) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.shared) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.shared[0]
		b.shared = b.shared[1:]

		targets := make(map[int]*Queue, len(b.subs))
		for id, q := range b.subs {
			targets[id] = q
		}
		b.mu.Unlock()

		derived := deriveEvent(ev)
		for id, q := range targets {
			if id == ev.origin {
				continue
			}
			q.Push(derived)
		}
	}
}

// deriveEvent maps a shared broadcast onto the notification each other
// session's writer will serialize.
func deriveEvent(ev broadcast) Event {
	switch ev.kind {
	case bcLogin:
		return Event{Type: EvJoined, User: ev.user}
	case bcLogout:
		return Event{Type: EvLeft, User: ev.user}
	case bcMove:
		return Event{Type: EvMoved, User: ev.user}
	case bcCollected:
		return Event{Type: EvTaken, User: ev.user, Treasure: ev.treasure}
	}
	return Event{}
}

// Stop halts the fan-out loop after the shared queue drains.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Pending returns the shared queue depth.
func (b *Broadcaster) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.shared)
}
