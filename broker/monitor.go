package broker

import (
	"github.com/Arceliar/phony"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/wire"
)

// NodeDown is delivered to a local actor that called NodeMonitor, either
// because the node it watched actually disconnected or because it never
// had a route to begin with (spec §4.5 "node_monitor": "if no route
// currently exists, the observer is notified immediately").
type NodeDown struct {
	Node   wire.NodeID
	Reason string
}

// RecordMonitor implements basp.Callee. A monitor_message for an actor
// id this broker doesn't currently have locally is answered immediately
// with a down_message carrying reason "unknown" (SUPPLEMENTED FEATURE
// #4, grounded on basp_broker.cpp's monitor_message handler checking the
// local actor registry before recording anything).
func (b *Broker) RecordMonitor(peer wire.NodeID, actor wire.ActorID) {
	ref, ok := b.local.Get(actor)
	if !ok {
		b._sendDown(peer, actor, "unknown")
		return
	}
	set, ok := b.monitors[actor]
	if !ok {
		set = make(map[wire.NodeID]struct{})
		b.monitors[actor] = set
	}
	if _, already := set[peer]; !already {
		set[peer] = struct{}{}
		ref.Monitor(func(reason string) { b._localDown(actor, reason) })
	}
}

// RemoveMonitor implements basp.Callee.
func (b *Broker) RemoveMonitor(peer wire.NodeID, actor wire.ActorID) {
	if set, ok := b.monitors[actor]; ok {
		delete(set, peer)
		if len(set) == 0 {
			delete(b.monitors, actor)
		}
	}
}

// HandleDown implements basp.Callee: a remote actor our proxy registry
// knows about has terminated.
func (b *Broker) HandleDown(node wire.NodeID, actor wire.ActorID, reason string) {
	b.proxies.EraseOne(node, actor, reason)
}

// _localDown runs as the termination callback of a local actor this
// broker has been asked to monitor from elsewhere (spec §4.5
// "local_down"): notify every observing node and drop the bookkeeping.
func (b *Broker) _localDown(actor wire.ActorID, reason string) {
	b.Act(nil, func() {
		set, ok := b.monitors[actor]
		if !ok {
			return
		}
		delete(b.monitors, actor)
		for node := range set {
			b._sendDown(node, actor, reason)
		}
	})
}

func (b *Broker) _sendDown(node wire.NodeID, actor wire.ActorID, reason string) {
	path, ok := b.routes.Lookup(node)
	if !ok {
		return
	}
	cc, ok := b.conns[mux.ConnHandle(path.Handle)]
	if !ok {
		return
	}
	frame, err := basp.WriteDown(actor, reason)
	if err != nil {
		b.log.Printf("broker: encode down_message: %v", err)
		return
	}
	if err := b.mux.Write(cc.handle, frame.Bytes()); err != nil {
		b.log.Printf("broker: write down_message: %v", err)
	}
}

// NodeMonitor implements spec §4.5 "node_monitor": observer asks to be
// notified if node ever becomes unreachable. If no route exists right
// now, the notification fires immediately rather than never.
func (b *Broker) NodeMonitor(observer wire.ActorID, node wire.NodeID) {
	phony.Block(b, func() { b._nodeMonitor(observer, node) })
}

func (b *Broker) _nodeMonitor(observer wire.ActorID, node wire.NodeID) {
	if !b.routes.HasDirect(node) {
		if _, indirect := b.routes.Lookup(node); !indirect {
			if ref, ok := b.local.Get(observer); ok {
				deliverNodeDown(ref, node, "no_route")
			}
			return
		}
	}
	set, ok := b.nodeObservers[node]
	if !ok {
		set = make(map[wire.ActorID]struct{})
		b.nodeObservers[node] = set
	}
	set[observer] = struct{}{}
}

// NodeDemonitor implements spec §4.5 "node_demonitor".
func (b *Broker) NodeDemonitor(observer wire.ActorID, node wire.NodeID) {
	phony.Block(b, func() { b._nodeDemonitor(observer, node) })
}

func (b *Broker) _nodeDemonitor(observer wire.ActorID, node wire.NodeID) {
	if set, ok := b.nodeObservers[node]; ok {
		delete(set, observer)
		if len(set) == 0 {
			delete(b.nodeObservers, node)
		}
	}
}

// deliverNodeDown enqueues a NodeDown notification into ref's mailbox.
// Used both by NodeMonitor's immediate-fire case and by
// _notifyNodeObservers when a connection actually drops (events.go).
func deliverNodeDown(ref actorsys.Ref, node wire.NodeID, reason string) {
	ref.Enqueue(actorsys.Envelope{Payload: NodeDown{Node: node, Reason: reason}})
}
