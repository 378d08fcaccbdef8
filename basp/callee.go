package basp

import (
	"github.com/pinenet/basp/codec"
	"github.com/pinenet/basp/routing"
	"github.com/pinenet/basp/wire"
)

// Callee is the broker-side interface the BASP instance decodes frames
// against (spec §4.4: "basp::instance::callee"). The broker implements
// this; basp.Instance never touches routing, proxy, or actor state
// directly, only through these calls, so it stays exercisable without a
// running broker.
type Callee interface {
	// Routes exposes the routing table for duplicate-direct-connection
	// checks and indirect-route-before-this-handshake lookups.
	Routes() *routing.Table
	// Codec returns the typed-value codec used to decode dispatch
	// payloads.
	Codec() codec.ValueCodec

	// CompleteServerHandshake is called once, when a server_handshake
	// frame finishes decoding on a connection we dialed.
	// wasIndirectBefore reports whether the table already had an
	// indirect route to node. The indirect entry is left in place;
	// routing.Table.Lookup prefers the new direct route over it.
	CompleteServerHandshake(cs *ConnState, node wire.NodeID, listenPort uint16, sigs []string, wasIndirectBefore bool)
	// CompleteClientHandshake is called once, when a client_handshake
	// frame finishes decoding on a connection we accepted.
	CompleteClientHandshake(cs *ConnState, node wire.NodeID)

	// RecordMonitor is called when a monitor_message names one of our
	// local actors as newly observed by cs's peer.
	RecordMonitor(peer wire.NodeID, actor wire.ActorID)
	// RemoveMonitor is called when a demonitor_message arrives.
	RemoveMonitor(peer wire.NodeID, actor wire.ActorID)
	// HandleDown is called when a down_message arrives, naming the
	// remote actor (on cs's peer node) that just terminated.
	HandleDown(node wire.NodeID, actor wire.ActorID, reason string)

	// DeliverDispatch delivers a fully decoded dispatch_message: hdr
	// carries the source/destination actor ids, the named-receiver flag,
	// and the op id; value is the decoded user payload. The broker
	// resolves both ends (creating a sender proxy if needed) and
	// enqueues or bounces. Named DeliverDispatch rather than Dispatch
	// because the broker itself separately implements proxy.Backend's
	// Forward(p *proxy.Proxy, opID uint64, payload interface{}) error,
	// and Go does not allow two methods on the same type to share a name.
	DeliverDispatch(cs *ConnState, hdr wire.Header, value interface{}) error
}
