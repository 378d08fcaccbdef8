package broker

import (
	"github.com/Arceliar/phony"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/baserr"
	"github.com/pinenet/basp/wire"
)

// Publish implements spec §4.5 "publish": binds addr, registers actor as
// reachable at the returned port under sigs, and records it in the
// local actor registry so DeliverDispatch/Route can enqueue into it.
func (b *Broker) Publish(actor actorsys.Ref, addr string, sigs []string) (uint16, error) {
	accH, port, err := b.mux.Listen(addr)
	if err != nil {
		return 0, baserr.Wrap(baserr.BindFailure, err, "listen on "+addr)
	}
	phony.Block(b, func() {
		b.acceptors[accH] = port
		b.published[port] = publishedActor{actor: actor.Address().ID, sigs: sigs}
		b.local.Put(actor)
		if b.primaryPort == 0 {
			b.primaryPort = port
		}
	})
	return port, nil
}

// Unpublish implements spec §4.5 "unpublish": a mismatched actor is a
// no-op that reports no_actor_published_at_port; the acceptor is
// otherwise unaffected.
func (b *Broker) Unpublish(actor wire.ActorID, port uint16) error {
	var result error
	phony.Block(b, func() {
		result = b._unpublish(actor, port)
	})
	return result
}

func (b *Broker) _unpublish(actor wire.ActorID, port uint16) error {
	pa, ok := b.published[port]
	if !ok || pa.actor != actor {
		return baserr.New(baserr.NoActorPublishedAtPort, "no actor %d published at port %d", actor, port)
	}
	delete(b.published, port)
	for accH, p := range b.acceptors {
		if p == port {
			b.mux.CloseAcceptor(accH)
			delete(b.acceptors, accH)
			break
		}
	}
	return nil
}

// Close implements spec §4.5 "close(port)": closes the acceptor bound to
// port, if any, regardless of what is published there.
func (b *Broker) Close(port uint16) error {
	phony.Block(b, func() {
		for accH, p := range b.acceptors {
			if p == port {
				b.mux.CloseAcceptor(accH)
				delete(b.acceptors, accH)
				delete(b.published, port)
				return
			}
		}
	})
	return nil
}
