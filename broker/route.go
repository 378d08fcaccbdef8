package broker

import (
	"github.com/Arceliar/phony"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/baserr"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/proxy"
	"github.com/pinenet/basp/wire"
)

// Route implements spec §4.5 "forward(src, dst_ptr, op_id, payload) from
// a proxy": deliver locally if dstNode is this node, else write a
// dispatch frame over the route to dstNode, bouncing with
// remote_link_unreachable if none exists. Named Route rather than
// Forward because Broker separately implements proxy.Backend's
// Forward(p *proxy.Proxy, opID uint64, payload interface{}) error below.
func (b *Broker) Route(src wire.ActorID, dstNode wire.NodeID, dstID wire.ActorID, opID uint64, payload interface{}) error {
	var result error
	phony.Block(b, func() {
		result = b._route(src, dstNode, dstID, false, opID, payload)
	})
	return result
}

// RouteNamed implements spec §4.5 "forward_named(src, dst_node, name,
// op_id, payload)".
func (b *Broker) RouteNamed(src wire.ActorID, dstNode wire.NodeID, name string, opID uint64, payload interface{}) error {
	id, ok := wire.NamedReceivers[name]
	if !ok {
		return baserr.New(baserr.ActorUnknown, "unknown named receiver %q", name)
	}
	var result error
	phony.Block(b, func() {
		result = b._route(src, dstNode, id, true, opID, payload)
	})
	return result
}

func (b *Broker) _route(src wire.ActorID, dstNode wire.NodeID, dstID wire.ActorID, isNamed bool, opID uint64, payload interface{}) error {
	if dstNode == b.node {
		return b._deliverLocal(src, dstID, opID, payload)
	}
	path, ok := b.routes.Lookup(dstNode)
	if !ok {
		if b.metrics != nil {
			b.metrics.DispatchBounced.Inc()
		}
		return baserr.New(baserr.RemoteLinkUnreachable, "no route to %v", dstNode)
	}
	cc, ok := b.conns[mux.ConnHandle(path.Handle)]
	if !ok {
		return baserr.New(baserr.RemoteLinkUnreachable, "no connection context for route to %v", dstNode)
	}
	frames, localDeliver, err := basp.WriteDispatch(cc.cs, b.codec, src, dstNode, dstID, isNamed, opID, payload, b.node)
	if err != nil {
		return err
	}
	if localDeliver {
		return b._deliverLocal(src, dstID, opID, payload)
	}
	for _, f := range frames {
		if werr := b.mux.Write(cc.handle, f.Bytes()); werr != nil {
			return baserr.Wrap(baserr.RemoteLinkUnreachable, werr, "write dispatch frame")
		}
	}
	if b.metrics != nil {
		if path.NextHop == dstNode {
			b.metrics.DispatchDirect.Inc()
		} else {
			b.metrics.DispatchIndirect.Inc()
		}
	}
	return nil
}

func (b *Broker) _deliverLocal(src wire.ActorID, dstID wire.ActorID, opID uint64, payload interface{}) error {
	ref, ok := b.local.Get(dstID)
	if !ok {
		if b.metrics != nil {
			b.metrics.DispatchBounced.Inc()
		}
		return baserr.New(baserr.RemoteLinkUnreachable, "no local actor %d", dstID)
	}
	ref.Enqueue(actorsys.Envelope{Sender: actorsys.Address{ID: src}, OpID: opID, Payload: payload})
	if b.metrics != nil {
		b.metrics.DispatchDirect.Inc()
	}
	return nil
}

// SendDemonitor implements proxy.Backend, called when a Proxy's last
// local reference is released (spec §4.3).
func (b *Broker) SendDemonitor(node wire.NodeID, id wire.ActorID) {
	b.Act(nil, func() {
		path, ok := b.routes.Lookup(node)
		if !ok {
			return
		}
		cc, ok := b.conns[mux.ConnHandle(path.Handle)]
		if !ok {
			return
		}
		frame := basp.WriteDemonitor(id)
		if err := b.mux.Write(cc.handle, frame.Bytes()); err != nil {
			b.log.Printf("broker: write demonitor_message: %v", err)
		}
	})
}

// Forward implements proxy.Backend: a local holder of a *proxy.Proxy
// routes a message through it without naming a local sender.
func (b *Broker) Forward(p *proxy.Proxy, opID uint64, payload interface{}) error {
	return b.Route(wire.InvalidActorID, p.Node(), p.ID(), opID, payload)
}
