// Package codec implements the per-connection type-name compression
// table (spec §4.1) and the pluggable typed-value codec used to
// serialize dispatch-message payloads. The value codec itself is an
// out-of-scope collaborator (spec §1): production code supplies
// gobcodec, tests may supply a mock.
package codec

import (
	"fmt"
	"sync"
)

// TypeTable is one direction (inbound or outbound) of a connection's
// injective type-name↔small-integer dictionary. Type-id 0 is reserved;
// ids are assigned monotonically starting at 1.
type TypeTable struct {
	mu        sync.Mutex
	nameToID  map[string]uint32
	idToName  map[uint32]string
	next      uint32
}

// NewTypeTable returns an empty type table ready to assign ids starting
// at 1.
func NewTypeTable() *TypeTable {
	return &TypeTable{
		nameToID: make(map[string]uint32),
		idToName: make(map[uint32]string),
		next:     1,
	}
}

// IDFor returns the id assigned to name, assigning a fresh one and
// reporting ok=false the first time name is seen (the caller must then
// emit an add_type control frame before using the id).
func (t *TypeTable) IDFor(name string) (id uint32, known bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.nameToID[name]; ok {
		return id, true
	}
	id = t.next
	t.next++
	t.nameToID[name] = id
	t.idToName[id] = name
	return id, false
}

// Declare records an externally-assigned (id, name) pair, as received in
// an add_type control frame from the peer.
func (t *TypeTable) Declare(id uint32, name string) error {
	if id == 0 {
		return fmt.Errorf("codec: type id 0 is reserved")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.idToName[id]; ok && existing != name {
		return fmt.Errorf("codec: type id %d already bound to %q, cannot rebind to %q", id, existing, name)
	}
	t.idToName[id] = name
	t.nameToID[name] = id
	return nil
}

// NameFor resolves a previously declared type id.
func (t *TypeTable) NameFor(id uint32) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, ok := t.idToName[id]
	if !ok {
		return "", fmt.Errorf("codec: unknown type id %d", id)
	}
	return name, nil
}
