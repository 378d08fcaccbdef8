// Package wire implements the BASP wire format: node and actor
// identifiers, the fixed-size frame header, and the per-frame kinds
// exchanged between brokers.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FingerprintSize is the length in bytes of a node's host fingerprint.
const FingerprintSize = 20

// NodeID uniquely identifies a process participating in the distributed
// actor system: a stable host fingerprint plus that host's process id.
// The zero value is NoNode.
type NodeID struct {
	Fingerprint [FingerprintSize]byte
	ProcessID   uint32
}

// NoNode is the distinguished invalid node id.
var NoNode = NodeID{}

// IsNone reports whether n is the distinguished invalid node id.
func (n NodeID) IsNone() bool {
	return n == NoNode
}

// Compare provides a total order over node ids, used as the tie-break
// for indirect route selection (spec §4.2: "any deterministic choice
// suffices").
func (n NodeID) Compare(o NodeID) int {
	for i := range n.Fingerprint {
		if n.Fingerprint[i] != o.Fingerprint[i] {
			if n.Fingerprint[i] < o.Fingerprint[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case n.ProcessID < o.ProcessID:
		return -1
	case n.ProcessID > o.ProcessID:
		return 1
	default:
		return 0
	}
}

// NodeIDSize is the marshalled size of a NodeID on the wire.
const NodeIDSize = FingerprintSize + 4

// MarshalBinary writes n into buf, which must be at least NodeIDSize
// bytes, and returns the number of bytes written.
func (n NodeID) MarshalBinary(buf []byte) (int, error) {
	if len(buf) < NodeIDSize {
		return 0, fmt.Errorf("wire: buffer too small for node id: have %d, need %d", len(buf), NodeIDSize)
	}
	copy(buf, n.Fingerprint[:])
	binary.BigEndian.PutUint32(buf[FingerprintSize:], n.ProcessID)
	return NodeIDSize, nil
}

// UnmarshalBinary reads a NodeID from buf and returns the number of
// bytes consumed.
func (n *NodeID) UnmarshalBinary(buf []byte) (int, error) {
	if len(buf) < NodeIDSize {
		return 0, fmt.Errorf("wire: buffer too small for node id: have %d, need %d", len(buf), NodeIDSize)
	}
	copy(n.Fingerprint[:], buf[:FingerprintSize])
	n.ProcessID = binary.BigEndian.Uint32(buf[FingerprintSize:])
	return NodeIDSize, nil
}

func (n NodeID) String() string {
	if n.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%x:%d", n.Fingerprint[:4], n.ProcessID)
}

// ActorID is a process-local actor identity. 0 is invalid.
type ActorID uint32

// InvalidActorID is the reserved "no actor" value.
const InvalidActorID ActorID = 0

// Named-receiver ids occupy a reserved range below any id that would be
// assigned to an ordinary spawned actor.
const (
	SpawnServerID   ActorID = 1
	ConfigServerID  ActorID = 2
	firstDynamicID  ActorID = 1000
)

// NamedReceivers maps well-known service names to their reserved ids.
var NamedReceivers = map[string]ActorID{
	"SpawnServ":  SpawnServerID,
	"ConfigServ": ConfigServerID,
}

// IsDynamic reports whether id falls outside the reserved named-receiver
// range.
func (id ActorID) IsDynamic() bool {
	return id >= firstDynamicID
}
