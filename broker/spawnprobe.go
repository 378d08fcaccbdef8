package broker

import (
	"context"
	"time"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/wire"
)

// spawnProbeTimeout bounds how long probeSpawnServer waits for a reply
// from a newly-learned node's spawn-server before giving up.
const spawnProbeTimeout = 5 * time.Minute

// SpawnProbeReply answers a SpawnProbe with the probed node's free-form
// identification string.
type SpawnProbeReply struct {
	Info string
}

// _learnedNewNode implements SUPPLEMENTED FEATURE #2, grounded on
// basp_broker.cpp::learned_new_node: on learning any new node, direct or
// indirect, the broker probes its spawn-server once. This runs
// unconditionally, independent of EnableAutomaticConnections, which only
// gates the separate connection-helper mesh-formation procedure (§4.6).
func (b *Broker) _learnedNewNode(node wire.NodeID) {
	if node.IsNone() || node == b.node {
		return
	}
	if b.probeStarted[node] {
		return
	}
	b.probeStarted[node] = true
	go probeSpawnServer(b, node)
}

// probeSpawnServer asks node's SpawnServ for its info, within an overall
// deadline, and logs the outcome. It runs detached from the broker's own
// goroutine and only re-enters broker state through the already
// Act/Block-synchronized RouteNamed call.
func probeSpawnServer(b *Broker, node wire.NodeID) {
	ctx, cancel := context.WithTimeout(context.Background(), spawnProbeTimeout)
	defer cancel()

	replyCh := make(chan SpawnProbeReply, 1)
	mbox := actorsys.NewMailbox(actorsys.Address{ID: b.nextTempID()}, 1)
	go func() {
		env, ok := mbox.Recv()
		if !ok {
			return
		}
		if reply, ok := env.Payload.(SpawnProbeReply); ok {
			replyCh <- reply
		}
	}()

	b.local.Put(mbox)
	defer b.local.Remove(mbox.Address().ID)

	if err := b.RouteNamed(mbox.Address().ID, node, "SpawnServ", 0, SpawnProbe{}); err != nil {
		b.log.Printf("broker: spawn-server probe for %v: %v", node, err)
		return
	}

	select {
	case reply := <-replyCh:
		b.log.Printf("broker: spawn-server probe for %v: %s", node, reply.Info)
	case <-ctx.Done():
		b.log.Printf("broker: spawn-server probe for %v: timed out", node)
	}
}
