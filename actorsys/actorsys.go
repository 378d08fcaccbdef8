// Package actorsys stands in for the local actor scheduler and mailbox
// subsystem, which spec §1 explicitly places out of scope ("the local
// actor scheduler and mailbox subsystem ... blocking/event-based actor
// base classes"). It is deliberately minimal: just enough of a local
// actor/mailbox/registry model for the broker's dispatch, forward, and
// down-notification paths to be exercised end-to-end in tests and in the
// demo binary, without pretending to be a general-purpose scheduler.
package actorsys

import (
	"sync"

	"github.com/pinenet/basp/wire"
)

// Address identifies a local actor for monitor/link bookkeeping. It is
// comparable so it can key maps directly.
type Address struct {
	ID wire.ActorID
}

// Envelope is a single message delivered to a Ref's mailbox.
type Envelope struct {
	Sender  Address
	OpID    uint64
	Payload interface{}
}

// Ref is a handle to a local actor: something the broker can enqueue
// messages into and monitor for termination.
type Ref interface {
	Address() Address
	Enqueue(Envelope)
	// Monitor registers fn to be called exactly once, when this actor
	// terminates, with the termination reason.
	Monitor(fn func(reason string))
}

// Mailbox is a minimal Ref backed by a buffered channel, suitable for
// tests and the demo binary. A real deployment would instead adapt its
// own scheduler's actor type to satisfy Ref.
type Mailbox struct {
	addr     Address
	inbox    chan Envelope
	mu       sync.Mutex
	watchers []func(reason string)
	done     bool
	reason   string
}

// NewMailbox creates a Mailbox for addr with the given inbox capacity.
func NewMailbox(addr Address, capacity int) *Mailbox {
	return &Mailbox{addr: addr, inbox: make(chan Envelope, capacity)}
}

// Address implements Ref.
func (m *Mailbox) Address() Address { return m.addr }

// Enqueue implements Ref.
func (m *Mailbox) Enqueue(e Envelope) {
	select {
	case m.inbox <- e:
	default:
		// Mailbox full: drop, matching pinecone's statistics-only
		// backpressure handling for queues that cannot block the caller.
	}
}

// Monitor implements Ref.
func (m *Mailbox) Monitor(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		reason := m.reason
		m.mu.Unlock()
		fn(reason)
		m.mu.Lock()
		return
	}
	m.watchers = append(m.watchers, fn)
}

// Terminate marks the mailbox dead and notifies every watcher with
// reason, exactly once.
func (m *Mailbox) Terminate(reason string) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	m.reason = reason
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()
	for _, fn := range watchers {
		fn(reason)
	}
}

// Recv blocks until a message arrives or the mailbox closes.
func (m *Mailbox) Recv() (Envelope, bool) {
	e, ok := <-m.inbox
	return e, ok
}

// Registry is a local actor directory keyed by id, plus the fixed
// named-receiver slots (SpawnServ, ConfigServ).
type Registry struct {
	mu      sync.RWMutex
	byID    map[wire.ActorID]Ref
	byName  map[string]Ref
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[wire.ActorID]Ref), byName: make(map[string]Ref)}
}

// Put registers ref under its own address.
func (r *Registry) Put(ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[ref.Address().ID] = ref
}

// PutNamed registers ref under a well-known service name as well as its
// address.
func (r *Registry) PutNamed(name string, ref Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[ref.Address().ID] = ref
	r.byName[name] = ref
}

// Get resolves a local actor by id.
func (r *Registry) Get(id wire.ActorID) (Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byID[id]
	return ref, ok
}

// GetNamed resolves a named receiver.
func (r *Registry) GetNamed(name string) (Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byName[name]
	return ref, ok
}

// Remove drops id from the registry (called once an actor terminates).
func (r *Registry) Remove(id wire.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}
