// Package routing implements the BASP routing table (spec §3/§4.2):
// a single direct connection handle per known node, plus indirect routes
// that piggyback on a still-direct next hop.
package routing

import (
	"sync"

	"github.com/pinenet/basp/wire"
)

// Handle is an opaque connection handle issued by the multiplexer
// capability (spec: "Connection handle").
type Handle uint64

// ErrAlreadyExists is returned by AddDirect when a different handle is
// already routed for the same node.
type ErrAlreadyExists struct {
	Node     wire.NodeID
	Existing Handle
}

func (e *ErrAlreadyExists) Error() string {
	return "routing: node already has a direct route"
}

// Path describes a resolved route to a node: the connection handle to
// write to, and the node this route actually goes through next
// (NextHop == target node for a direct route).
type Path struct {
	Handle  Handle
	NextHop wire.NodeID
}

// Table is the broker's routing table. It is only ever mutated from the
// broker's single execution context (spec §4.3/§5); it is safe to read
// concurrently because of the embedded mutex, but callers must not rely
// on a Lookup result remaining valid past the current dispatch call
// (spec §4.2: "The broker must not cache lookup results").
type Table struct {
	mu       sync.RWMutex
	direct   map[wire.NodeID]Handle
	directOf map[Handle]wire.NodeID
	indirect map[wire.NodeID]map[wire.NodeID]struct{} // target -> set of via
}

// New returns an empty routing table.
func New() *Table {
	return &Table{
		direct:   make(map[wire.NodeID]Handle),
		directOf: make(map[Handle]wire.NodeID),
		indirect: make(map[wire.NodeID]map[wire.NodeID]struct{}),
	}
}

// AddDirect records a direct route to node over handle. It is idempotent
// if the existing entry already points to the same handle; otherwise it
// is a protocol error (spec §3: "adding a second [direct route] for the
// same node is a protocol error").
func (t *Table) AddDirect(node wire.NodeID, h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.direct[node]; ok {
		if existing == h {
			return nil
		}
		return &ErrAlreadyExists{Node: node, Existing: existing}
	}
	t.direct[node] = h
	t.directOf[h] = node
	return nil
}

// HasDirect reports whether node currently has a direct route.
func (t *Table) HasDirect(node wire.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.direct[node]
	return ok
}

// AddIndirect records that target is reachable via via's direct route.
// Returns true if this taught the table something new: target was not
// already directly routable and via is currently directly routable.
// Callers use the return value to decide whether to kick off "learned a
// new indirect node" bookkeeping (spec §4.2).
func (t *Table) AddIndirect(via, target wire.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.direct[target]; ok {
		return false
	}
	if _, ok := t.direct[via]; !ok {
		return false
	}
	set, ok := t.indirect[target]
	if !ok {
		set = make(map[wire.NodeID]struct{})
		t.indirect[target] = set
	}
	_, existed := set[via]
	set[via] = struct{}{}
	return !existed
}

// EraseDirect removes the direct route owned by h, along with every
// indirect route whose next hop was that node (spec §3 invariant). It
// returns the node that was routed through h, if any.
func (t *Table) EraseDirect(h Handle) (wire.NodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.directOf[h]
	if !ok {
		return wire.NoNode, false
	}
	delete(t.directOf, h)
	delete(t.direct, node)
	for target, vias := range t.indirect {
		if _, ok := vias[node]; ok {
			delete(vias, node)
			if len(vias) == 0 {
				delete(t.indirect, target)
			}
		}
	}
	return node, true
}

// Lookup resolves a route to node, preferring a direct route and falling
// back to any indirect route whose next hop is still direct. It returns
// false if neither exists.
func (t *Table) Lookup(node wire.NodeID) (Path, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.direct[node]; ok {
		return Path{Handle: h, NextHop: node}, true
	}
	vias, ok := t.indirect[node]
	if !ok || len(vias) == 0 {
		return Path{}, false
	}
	var best wire.NodeID
	haveBest := false
	for via := range vias {
		if _, ok := t.direct[via]; !ok {
			continue
		}
		if !haveBest || via.Compare(best) < 0 {
			best = via
			haveBest = true
		}
	}
	if !haveBest {
		return Path{}, false
	}
	return Path{Handle: t.direct[best], NextHop: best}, true
}

// LookupDirect resolves only a direct route, or false.
func (t *Table) LookupDirect(node wire.NodeID) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.direct[node]
	return h, ok
}

// NodeOf returns the node routed directly through h, if any.
func (t *Table) NodeOf(h Handle) (wire.NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.directOf[h]
	return n, ok
}
