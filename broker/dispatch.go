package broker

import (
	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/proxy"
	"github.com/pinenet/basp/wire"
)

// LinkRequest is a dispatch payload that asks the receiving actor to
// link with the sender (SUPPLEMENTED FEATURE #1, grounded on
// basp_broker.cpp's dispatch path intercepting link/unlink control
// messages before generic delivery rather than letting them fall
// through to the user-level mailbox).
type LinkRequest struct {
	From wire.NodeID
	ID   wire.ActorID
}

// UnlinkRequest mirrors LinkRequest for unlinking.
type UnlinkRequest struct {
	From wire.NodeID
	ID   wire.ActorID
}

// SpawnProbe is dispatched to a newly-learned node's SpawnServ receiver,
// direct or indirect (SUPPLEMENTED FEATURE #2, grounded on
// basp_broker.cpp's learned_new_node: a connectivity probe run
// unconditionally, separate from the connection-helper mesh-formation
// procedure that only runs when EnableAutomaticConnections is set). See
// broker._learnedNewNode/probeSpawnServer in spawnprobe.go.
type SpawnProbe struct{}

// DeliverDispatch implements basp.Callee. It resolves the sender into a
// proxy (creating one, and its monitor_message, on first sight),
// intercepts link/unlink control payloads, and otherwise enqueues into
// the named or per-id local destination.
func (b *Broker) DeliverDispatch(cs *basp.ConnState, hdr wire.Header, value interface{}) error {
	senderProxy := b._proxyFor(cs.PeerNode, hdr.Source)

	switch value.(type) {
	case LinkRequest:
		return b._deliverLink(hdr.Dest, senderProxy, true)
	case UnlinkRequest:
		return b._deliverLink(hdr.Dest, senderProxy, false)
	}

	var ref actorsys.Ref
	var ok bool
	if hdr.IsNamedReceiver() {
		ref, ok = b.local.GetNamed(namedReceiverName(hdr.Dest))
	} else {
		ref, ok = b.local.Get(hdr.Dest)
	}
	if !ok {
		if b.metrics != nil {
			b.metrics.DispatchBounced.Inc()
		}
		return nil
	}
	ref.Enqueue(actorsys.Envelope{Sender: actorsys.Address{ID: hdr.Source}, OpID: hdr.OpID, Payload: value})
	if b.metrics != nil {
		b.metrics.DispatchDirect.Inc()
	}

	if carrier, ok := value.(basp.RemoteRefCarrier); ok {
		for _, rr := range carrier.RemoteRefs() {
			b._learnIndirect(cs.PeerNode, rr.Node)
		}
	}
	return nil
}

func (b *Broker) _deliverLink(localID wire.ActorID, remote *proxy.Proxy, link bool) error {
	if _, ok := b.local.Get(localID); !ok {
		return nil
	}
	if link {
		remote.AddLink(localID)
	} else {
		remote.RemoveLink(localID)
	}
	return nil
}

// _proxyFor resolves or creates a proxy for (node, id), emitting a
// monitor_message on first creation (spec §3: "created on first
// deserialization of the remote id on this node").
func (b *Broker) _proxyFor(node wire.NodeID, id wire.ActorID) *proxy.Proxy {
	return b.proxies.GetOrPut(node, id, func(p *proxy.Proxy) {
		if b.metrics != nil {
			b.metrics.ProxiesCreated.Inc()
		}
		b._monitorProxy(node, id)
	})
}

func (b *Broker) _monitorProxy(node wire.NodeID, id wire.ActorID) {
	path, ok := b.routes.Lookup(node)
	if !ok {
		return
	}
	cc, ok := b.conns[mux.ConnHandle(path.Handle)]
	if !ok {
		return
	}
	frame := basp.WriteMonitor(id)
	if err := b.mux.Write(cc.handle, frame.Bytes()); err != nil {
		b.log.Printf("broker: write monitor_message: %v", err)
	}
}

// _learnIndirect records that target is reachable via cs's peer, and, on
// first learning it, probes target's spawn-server (SUPPLEMENTED FEATURE
// #2) and, if automatic connections are enabled, starts the mesh-formation
// helper (§4.6).
func (b *Broker) _learnIndirect(via, target wire.NodeID) {
	if target.IsNone() || target == b.node || target == via {
		return
	}
	if !b.routes.AddIndirect(via, target) {
		return
	}
	b._learnedNewNode(target)
	b._learnedIndirectNode(target)
}

// namedReceiverName maps a reserved actor id back to its service name
// for Registry.GetNamed lookups; dispatch frames carry only the id.
func namedReceiverName(id wire.ActorID) string {
	switch id {
	case wire.SpawnServerID:
		return "SpawnServ"
	case wire.ConfigServerID:
		return "ConfigServ"
	default:
		return ""
	}
}
