package broker

import (
	"context"
	"time"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/wire"
)

// connectionHelperTimeout bounds how long the mesh-formation procedure
// (spec §4.6) will keep trying addresses for one newly-learned node
// before giving up.
const connectionHelperTimeout = 10 * time.Minute

// ConfigQuery is dispatched to a node's ConfigServ stand-in, asking for
// the addresses a given node is reachable at.
type ConfigQuery struct {
	Node wire.NodeID
}

// ConfigReply answers a ConfigQuery with addresses to try, in order.
type ConfigReply struct {
	Addresses []string
}

// _learnedIndirectNode implements spec §4.6: when the routing table
// first learns an indirect path to target, optionally kick off a
// best-effort procedure to establish a direct connection instead,
// grounded on basp_broker.cpp::learned_new_node.
func (b *Broker) _learnedIndirectNode(target wire.NodeID) {
	if !b.opts.EnableAutomaticConnections {
		return
	}
	if b.helperStarted[target] {
		return
	}
	b.helperStarted[target] = true
	if _, ok := b.routes.Lookup(target); !ok {
		return
	}
	go runConnectionHelper(b, target)
}

// runConnectionHelper queries target's own ConfigServ for addresses it is
// reachable at and dials each in turn until one succeeds, within an
// overall deadline. The query is routed to target itself (not the
// next hop it was learned through): Route/RouteNamed already resolve an
// indirectly-known node via its recorded next hop, and only target's own
// config server knows target's listen addresses. It runs detached from
// the broker's own goroutine (it does blocking I/O) and only re-enters
// broker state through the already-Act/Block-synchronized RouteNamed and
// Connect calls.
func runConnectionHelper(b *Broker, target wire.NodeID) {
	ctx, cancel := context.WithTimeout(context.Background(), connectionHelperTimeout)
	defer cancel()

	addrs, err := queryConfigServ(ctx, b, target)
	if err != nil {
		b.log.Printf("broker: connection helper for %v: %v", target, err)
		return
	}
	for _, addr := range addrs {
		if ctx.Err() != nil {
			break
		}
		node, _, err := b.Connect(addr)
		if err != nil {
			b.log.Printf("broker: connection helper: dial %s for %v: %v", addr, target, err)
			continue
		}
		if node == target {
			return
		}
	}
	b.log.Printf("broker: connection helper for %v: exhausted candidate addresses", target)
}

// queryConfigServ sends a ConfigQuery to target's own ConfigServ and
// waits for the reply, respecting ctx's deadline.
func queryConfigServ(ctx context.Context, b *Broker, target wire.NodeID) ([]string, error) {
	replyCh := make(chan ConfigReply, 1)
	mbox := actorsys.NewMailbox(actorsys.Address{ID: b.nextTempID()}, 1)
	go func() {
		env, ok := mbox.Recv()
		if !ok {
			return
		}
		if reply, ok := env.Payload.(ConfigReply); ok {
			replyCh <- reply
		}
	}()

	b.local.Put(mbox)
	defer b.local.Remove(mbox.Address().ID)

	if err := b.RouteNamed(mbox.Address().ID, target, "ConfigServ", 0, ConfigQuery{Node: target}); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply.Addresses, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
