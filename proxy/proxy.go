// Package proxy implements the remote actor proxy and its registry
// (spec §3/§4.3): local stand-ins for remote actors, keyed by
// (node, actor id), with broker-mediated monitor/demonitor lifecycle.
package proxy

import (
	"sync"

	"github.com/pinenet/basp/wire"
)

// Key identifies one proxy slot.
type Key struct {
	Node wire.NodeID
	ID   wire.ActorID
}

// Backend is the broker-side interface a Proxy uses to participate in
// the distributed protocol. It is a handle, never a raw pointer (spec
// §9 "Proxy back-references"), so the broker's own termination can drop
// the relation cleanly by simply discarding the Registry.
type Backend interface {
	// SendDemonitor asks the backend to emit a demonitor_message toward
	// node for id, if a route still exists. Called once, when a proxy's
	// last local reference is released.
	SendDemonitor(node wire.NodeID, id wire.ActorID)
	// Forward routes a message through this proxy's node.
	Forward(p *Proxy, opID uint64, payload interface{}) error
}

// Proxy is a local stand-in for a remote actor (spec §3 "Remote actor
// proxy"). Go has no destructors, so the "last local reference dropped"
// trigger from the original design is modeled as an explicit Release
// call rather than a finalizer — callers that hand out a *Proxy are
// responsible for calling Release exactly once when they are done with
// it (mirroring a forwarding_actor_proxy's refcount hitting zero).
type Proxy struct {
	node    wire.NodeID
	id      wire.ActorID
	backend Backend

	mu        sync.Mutex
	released  bool
	observers []func(reason string)
	links     map[wire.ActorID]struct{}
}

// Node returns the remote node this proxy represents.
func (p *Proxy) Node() wire.NodeID { return p.node }

// ID returns the remote actor id this proxy represents.
func (p *Proxy) ID() wire.ActorID { return p.id }

// AddObserver registers fn to be called exactly once, with the
// termination reason, when this proxy is erased (spec §4.3: "every
// local actor that monitored the proxy or was linked to it").
func (p *Proxy) AddObserver(fn func(reason string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		p.mu.Unlock()
		fn("already_terminated")
		p.mu.Lock()
		return
	}
	p.observers = append(p.observers, fn)
}

// AddLink records a local actor as linked to this proxy (spec §9
// SUPPLEMENTED FEATURES #1: link/unlink interception).
func (p *Proxy) AddLink(id wire.ActorID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.links == nil {
		p.links = make(map[wire.ActorID]struct{})
	}
	p.links[id] = struct{}{}
}

// RemoveLink drops a previously recorded link.
func (p *Proxy) RemoveLink(id wire.ActorID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.links, id)
}

// terminate fires every observer exactly once with reason. Safe to call
// more than once; only the first call has effect.
func (p *Proxy) terminate(reason string) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	observers := p.observers
	p.observers = nil
	p.mu.Unlock()
	for _, fn := range observers {
		fn(reason)
	}
}

// Forward routes opID/payload toward the remote actor this proxy
// represents.
func (p *Proxy) Forward(opID uint64, payload interface{}) error {
	return p.backend.Forward(p, opID, payload)
}

// Release is called when the last local reference to this proxy is
// dropped. It asks the backend to demonitor the remote actor and erases
// the registry entry (spec §4.3).
func (p *Proxy) Release(reg *Registry) {
	p.backend.SendDemonitor(p.node, p.id)
	reg.EraseOne(p.node, p.id, "released")
}

// Registry holds every locally-known proxy, keyed by (node, actor id).
type Registry struct {
	backend Backend

	mu    sync.Mutex
	byKey map[Key]*Proxy
}

// NewRegistry returns an empty registry whose proxies talk back to backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{backend: backend, byKey: make(map[Key]*Proxy)}
}

// Get returns the existing proxy for key, if any.
func (r *Registry) Get(key Key) (*Proxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byKey[key]
	return p, ok
}

// GetOrPut returns the existing proxy for (node, id), creating one if
// none exists yet (spec §3: "created on first deserialization of the
// remote id on this node"). onCreate, if non-nil, is called exactly when
// a new proxy is created, before it is returned — the broker uses this
// to emit the monitor_message required by spec §3.
func (r *Registry) GetOrPut(node wire.NodeID, id wire.ActorID, onCreate func(*Proxy)) *Proxy {
	key := Key{Node: node, ID: id}
	r.mu.Lock()
	if p, ok := r.byKey[key]; ok {
		r.mu.Unlock()
		return p
	}
	p := &Proxy{node: node, id: id, backend: r.backend}
	r.byKey[key] = p
	r.mu.Unlock()
	if onCreate != nil {
		onCreate(p)
	}
	return p
}

// EraseOne destroys the entry for (node, id) and notifies every local
// observer with reason, regardless of what reason is (spec §4.3).
func (r *Registry) EraseOne(node wire.NodeID, id wire.ActorID, reason string) {
	key := Key{Node: node, ID: id}
	r.mu.Lock()
	p, ok := r.byKey[key]
	delete(r.byKey, key)
	r.mu.Unlock()
	if ok {
		p.terminate(reason)
	}
}

// Erase destroys every entry for node atomically (from the caller's
// viewpoint) and synthesizes remote_link_unreachable reasons for each,
// used when the node itself becomes unreachable (spec §4.3).
func (r *Registry) Erase(node wire.NodeID) {
	r.mu.Lock()
	var doomed []*Proxy
	for key, p := range r.byKey {
		if key.Node == node {
			doomed = append(doomed, p)
			delete(r.byKey, key)
		}
	}
	r.mu.Unlock()
	for _, p := range doomed {
		p.terminate("remote_link_unreachable")
	}
}

// Empty reports whether the registry currently holds no proxies. Used by
// tests asserting "no proxy leaks" (spec §8 scenario 1).
func (r *Registry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey) == 0
}

// Len reports the number of live proxies.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}
