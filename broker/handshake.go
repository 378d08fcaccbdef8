package broker

import (
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/routing"
	"github.com/pinenet/basp/wire"
)

// CompleteServerHandshake implements basp.Callee. It is reached from
// inside _newData → Instance.Feed, i.e. already running on the broker's
// own goroutine, so it mutates state directly with no further dispatch.
func (b *Broker) CompleteServerHandshake(cs *basp.ConnState, node wire.NodeID, listenPort uint16, sigs []string, wasIndirectBefore bool) {
	h := mux.ConnHandle(cs.ConnHandle)
	if b._shortCircuitSelfConnection(node, h) {
		return
	}
	if err := b.routes.AddDirect(node, routing.Handle(h)); err != nil {
		b.log.Printf("broker: %v", err)
		b.mux.Close(h)
		return
	}
	if wasIndirectBefore {
		b.log.Printf("broker: direct route to %v supersedes a prior indirect route", node)
	}
	b._learnedNewNode(node)
	if cc, ok := b.conns[h]; ok && cc.pending != nil {
		select {
		case cc.pending.result <- connectResult{node: node, port: listenPort}:
		default:
		}
		cc.pending = nil
	}
}

// CompleteClientHandshake implements basp.Callee, for the side that
// accepted the connection and just learned the dialer's node id.
func (b *Broker) CompleteClientHandshake(cs *basp.ConnState, node wire.NodeID) {
	h := mux.ConnHandle(cs.ConnHandle)
	if b._shortCircuitSelfConnection(node, h) {
		return
	}
	if err := b.routes.AddDirect(node, routing.Handle(h)); err != nil {
		b.log.Printf("broker: %v", err)
		b.mux.Close(h)
		return
	}
	b._learnedNewNode(node)
}

// _shortCircuitSelfConnection closes a connection that turns out to
// connect this node to itself (SUPPLEMENTED FEATURE, grounded on
// basp_broker.cpp::finalize_handshake's self-connection check): a direct
// route to our own node id is never useful — local dispatch already
// short-circuits at WriteDispatch, and registering a self-route would
// let a monitor_message/demonitor_message loop back into our own
// pending-monitor set for no reason.
func (b *Broker) _shortCircuitSelfConnection(node wire.NodeID, h mux.ConnHandle) bool {
	if node != b.node {
		return false
	}
	b.log.Printf("broker: closing self-connection on handle %d", h)
	b.mux.Close(h)
	return true
}
