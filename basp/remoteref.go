package basp

import "github.com/pinenet/basp/wire"

// RemoteRef names one (node, actor) pair nested inside a dispatch
// payload. RemoteRefCarrier lets the broker learn indirect routes from
// message content without the codec or this package needing to
// understand arbitrary user payload shapes.
//
// This replaces the original design's thread-local "last hop" (spec §9
// Design Note): instead of hidden state set during deserialization and
// read back out by nested proxy construction, a payload that carries
// remote references says so explicitly by implementing this interface,
// and the broker inspects the already-fully-decoded value once, inside
// DeliverDispatch, after enqueueing it to its local destination.
type RemoteRef struct {
	Node  wire.NodeID
	Actor wire.ActorID
}

// RemoteRefCarrier is an optional interface a decoded dispatch payload
// may implement to expose the remote actors it references, so the
// broker can register indirect routes for them (spec §4.4 item 3).
type RemoteRefCarrier interface {
	RemoteRefs() []RemoteRef
}
