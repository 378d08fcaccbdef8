package broker

import (
	"github.com/pinenet/basp/baserr"
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/routing"
	"github.com/pinenet/basp/wire"
)

// NewData implements mux.Events (spec §4.5 "new_data").
func (b *Broker) NewData(h mux.ConnHandle, data []byte) {
	b.Act(nil, func() { b._newData(h, data) })
}

func (b *Broker) _newData(h mux.ConnHandle, data []byte) {
	cc, ok := b.conns[h]
	if !ok {
		return
	}
	cc.touch()
	if err := b.inst.Feed(cc.cs, data, b); err != nil {
		if b.metrics != nil {
			b.metrics.ProtocolErrors.Inc()
		}
		b.log.Printf("broker: closing connection %d: %v", h, err)
		cc.closeCause = err
		b.mux.Close(h)
	}
}

// NewConnection implements mux.Events (spec §4.5 "new_connection").
func (b *Broker) NewConnection(a mux.AcceptHandle, h mux.ConnHandle, remoteAddr string) {
	b.Act(nil, func() { b._newConnection(h) })
}

func (b *Broker) _newConnection(h mux.ConnHandle) {
	b.conns[h] = newConnContext(h, false)
	var sigs []string
	if pa, ok := b.published[b.primaryPort]; ok {
		sigs = pa.sigs
	}
	frame, err := basp.WriteServerHandshake(b.node, b.primaryPort, sigs)
	if err != nil {
		b.log.Printf("broker: encode server_handshake: %v", err)
		b.mux.Close(h)
		return
	}
	if err := b.mux.Write(h, frame.Bytes()); err != nil {
		b.log.Printf("broker: write server_handshake: %v", err)
	}
	if b.metrics != nil {
		b.metrics.ConnectionsOpened.Inc()
	}
}

// ConnectionClosed implements mux.Events (spec §4.5 "connection_closed").
func (b *Broker) ConnectionClosed(h mux.ConnHandle) {
	b.Act(nil, func() { b._connectionClosed(h) })
}

func (b *Broker) _connectionClosed(h mux.ConnHandle) {
	cc, ok := b.conns[h]
	if !ok || cc.closing {
		return
	}
	cc.closing = true
	// Defer the actual teardown behind a fresh Act(nil, ...) so that any
	// decoded messages from h already ahead of this event in the inbox
	// are delivered before h's state is purged (spec §4.5/§5: "enqueue a
	// self-addressed delete conn to be processed after any outstanding
	// in-flight decoded messages"). Passing nil guarantees this always
	// goes to the back of the queue rather than running inline.
	b.Act(nil, func() { b._finishClose(h) })
}

func (b *Broker) _finishClose(h mux.ConnHandle) {
	cc, ok := b.conns[h]
	if !ok {
		return
	}
	delete(b.conns, h)
	b._purge(cc, cc.closeCause)
}

// _purge releases everything a connection handle owned: its direct
// route, every proxy for the node it was routing to, node-observer
// notifications, and any pending connect promise. cause is nil for a
// clean close, or the error that forced the close (spec §4.5 "Failure
// policy").
func (b *Broker) _purge(cc *connContext, cause error) {
	node, had := b.routes.EraseDirect(routing.Handle(cc.handle))
	if cc.pending != nil {
		reason := cause
		if reason == nil {
			reason = baserr.New(baserr.DisconnectDuringHandshake, "connection closed before server_handshake arrived")
		}
		select {
		case cc.pending.result <- connectResult{err: reason}:
		default:
		}
		cc.pending = nil
	}
	if had {
		b.proxies.Erase(node)
		b._notifyNodeObservers(node, "remote_link_unreachable")
		delete(b.helperStarted, node)
		delete(b.probeStarted, node)
	}
	if b.metrics != nil {
		b.metrics.ConnectionsClosed.Inc()
	}
}

// AcceptorClosed implements mux.Events (spec §4.5 "acceptor_closed").
func (b *Broker) AcceptorClosed(a mux.AcceptHandle) {
	b.Act(nil, func() { b._acceptorClosed(a) })
}

func (b *Broker) _acceptorClosed(a mux.AcceptHandle) {
	port, ok := b.acceptors[a]
	if !ok {
		return
	}
	delete(b.acceptors, a)
	delete(b.published, port)
}

func (b *Broker) _notifyNodeObservers(node wire.NodeID, reason string) {
	observers := b.nodeObservers[node]
	delete(b.nodeObservers, node)
	for addr := range observers {
		if ref, ok := b.local.Get(addr); ok {
			deliverNodeDown(ref, node, reason)
		}
	}
}
