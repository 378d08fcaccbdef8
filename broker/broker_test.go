package broker

import (
	"fmt"
	"testing"
	"time"

	"github.com/Arceliar/phony"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/baserr"
	"github.com/pinenet/basp/codec"
	"github.com/pinenet/basp/config"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/wire"
)

type pingMsg struct {
	Seq int
}

type carrierMsg struct {
	Refs []basp.RemoteRef
}

func (c carrierMsg) RemoteRefs() []basp.RemoteRef { return c.Refs }

func registerTestTypes(vc *codec.GobCodec) {
	vc.Register("pingMsg", pingMsg{})
	vc.Register("carrierMsg", carrierMsg{})
	vc.Register("ConfigReply", ConfigReply{})
	vc.Register("SpawnProbe", SpawnProbe{})
	vc.Register("SpawnProbeReply", SpawnProbeReply{})
}

func testNode(b byte) wire.NodeID {
	var n wire.NodeID
	n.Fingerprint[0] = b
	return n
}

func newTestBroker(fp byte, opts config.Options) *Broker {
	vc := codec.NewGobCodec()
	registerTestTypes(vc)
	return New(testNode(fp), vc, opts)
}

func connect(t *testing.T, dialer, listener *Broker) (wire.NodeID, string) {
	t.Helper()
	accH, port, err := listener.Mux().Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	phony.Block(listener, func() { listener.acceptors[accH] = port })
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	node, _, err := dialer.Connect(addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return node, addr
}

func recvWithTimeout(t *testing.T, mb *actorsys.Mailbox, d time.Duration) actorsys.Envelope {
	t.Helper()
	done := make(chan actorsys.Envelope, 1)
	go func() {
		e, ok := mb.Recv()
		if ok {
			done <- e
		}
	}()
	select {
	case e := <-done:
		return e
	case <-time.After(d):
		t.Fatal("timed out waiting for delivery")
		return actorsys.Envelope{}
	}
}

func TestRoundTripPing(t *testing.T) {
	a := newTestBroker(1, config.Default())
	b := newTestBroker(2, config.Default())

	mb := actorsys.NewMailbox(actorsys.Address{ID: 42}, 1)
	b.LocalActors().Put(mb)

	nodeB, _ := connect(t, a, b)
	if nodeB != b.Node() {
		t.Fatalf("got node %v, want %v", nodeB, b.Node())
	}

	if err := a.Route(1, nodeB, 42, 7, pingMsg{Seq: 1}); err != nil {
		t.Fatalf("route: %v", err)
	}
	env := recvWithTimeout(t, mb, 2*time.Second)
	got, ok := env.Payload.(pingMsg)
	if !ok || got.Seq != 1 {
		t.Fatalf("got %+v, want pingMsg{Seq:1}", env.Payload)
	}
	if env.OpID != 7 {
		t.Fatalf("got op id %d, want 7", env.OpID)
	}
}

func TestDispatchOrderingPerConnection(t *testing.T) {
	a := newTestBroker(3, config.Default())
	b := newTestBroker(4, config.Default())

	mb := actorsys.NewMailbox(actorsys.Address{ID: 10}, 8)
	b.LocalActors().Put(mb)

	nodeB, _ := connect(t, a, b)

	const n = 5
	for i := 0; i < n; i++ {
		if err := a.Route(1, nodeB, 10, uint64(i), pingMsg{Seq: i}); err != nil {
			t.Fatalf("route %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		env := recvWithTimeout(t, mb, 2*time.Second)
		got, ok := env.Payload.(pingMsg)
		if !ok || got.Seq != i {
			t.Fatalf("message %d arrived out of order: got %+v", i, env.Payload)
		}
	}
}

func TestIndirectRouteLearning(t *testing.T) {
	a := newTestBroker(5, config.Default())
	b := newTestBroker(6, config.Default())
	c := testNode(7)

	mb := actorsys.NewMailbox(actorsys.Address{ID: 11}, 1)
	a.LocalActors().Put(mb)

	connect(t, b, a) // b dials a; the handshake leaves both sides with a direct route to each other

	if a.Routes().HasDirect(c) {
		t.Fatal("should not know about c yet")
	}
	msg := carrierMsg{Refs: []basp.RemoteRef{{Node: c, Actor: 99}}}
	if err := b.Route(1, a.Node(), 11, 0, msg); err != nil {
		t.Fatalf("route: %v", err)
	}
	recvWithTimeout(t, mb, 2*time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if path, ok := a.Routes().Lookup(c); ok && path.NextHop == b.Node() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("a never learned an indirect route to c via b")
}

func TestSpawnServerProbeOnNewDirectNode(t *testing.T) {
	a := newTestBroker(21, config.Default())
	b := newTestBroker(22, config.Default())

	spawnServ := actorsys.NewMailbox(actorsys.Address{ID: wire.SpawnServerID}, 1)
	b.LocalActors().PutNamed("SpawnServ", spawnServ)

	connect(t, a, b)

	// a's probe goroutine sends a SpawnProbe to b's SpawnServ on learning
	// b as a new direct node; confirm b's receiver actually sees it, and
	// that the dedup bookkeeping on a's side recorded the probe as started
	// (a second handshake to the same node must not probe it twice).
	env := recvWithTimeout(t, spawnServ, 2*time.Second)
	if _, ok := env.Payload.(SpawnProbe); !ok {
		t.Fatalf("got %+v, want a SpawnProbe", env.Payload)
	}

	var started bool
	phony.Block(a, func() { started = a.probeStarted[b.Node()] })
	if !started {
		t.Fatal("expected a to record the spawn-server probe as started for b")
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	a := newTestBroker(8, config.Options{HeartbeatInterval: 20 * time.Millisecond, ConnectionTimeout: 60 * time.Millisecond})
	b := newTestBroker(9, config.Default())

	nodeB, _ := connect(t, a, b)
	if !a.Routes().HasDirect(nodeB) {
		t.Fatal("expected direct route right after handshake")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !a.Routes().HasDirect(nodeB) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("connection was never closed for idling past connection_timeout")
}

func TestDuplicateConnectionRejected(t *testing.T) {
	a := newTestBroker(10, config.Default())
	b := newTestBroker(11, config.Default())

	nodeB1, addr := connect(t, a, b)
	if nodeB1 != b.Node() {
		t.Fatalf("unexpected node on first connect: %v", nodeB1)
	}

	_, _, err := a.Connect(addr)
	if err == nil {
		t.Fatal("expected the second direct connection to the same node to fail")
	}
	if baserr.KindOf(err) != baserr.ProtocolError && baserr.KindOf(err) != baserr.DisconnectDuringHandshake {
		t.Fatalf("unexpected error kind: %v (%v)", baserr.KindOf(err), err)
	}
}

func TestRemoteMonitorDown(t *testing.T) {
	a := newTestBroker(12, config.Default())
	b := newTestBroker(13, config.Default())

	mb := actorsys.NewMailbox(actorsys.Address{ID: 20}, 1)
	a.LocalActors().Put(mb)

	connect(t, a, b)

	// b "forwards" on behalf of a remote actor id that was never
	// published locally on b, so b's RecordMonitor must immediately
	// bounce a down_message (SUPPLEMENTED FEATURE #4).
	if err := b.Route(999, a.Node(), 20, 0, pingMsg{Seq: 1}); err != nil {
		t.Fatalf("route: %v", err)
	}
	recvWithTimeout(t, mb, 2*time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Proxies().Empty() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("proxy for the unknown remote actor was never erased by the down_message round trip")
}

func TestUnpublishMismatch(t *testing.T) {
	a := newTestBroker(14, config.Default())
	mb := actorsys.NewMailbox(actorsys.Address{ID: 30}, 1)
	port, err := a.Publish(mb, "127.0.0.1:0", []string{"sig"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := a.Unpublish(31, port); err == nil {
		t.Fatal("expected a mismatched actor id to fail")
	} else if baserr.KindOf(err) != baserr.NoActorPublishedAtPort {
		t.Fatalf("got kind %v, want no_actor_published_at_port", baserr.KindOf(err))
	}
	if err := a.Unpublish(30, port); err != nil {
		t.Fatalf("expected the matching actor id to succeed, got %v", err)
	}
}

func TestConnectionClosedPurgesState(t *testing.T) {
	a := newTestBroker(15, config.Default())
	b := newTestBroker(16, config.Default())

	nodeB, _ := connect(t, a, b)
	if !a.Routes().HasDirect(nodeB) {
		t.Fatal("expected a direct route after handshake")
	}

	var handle mux.ConnHandle
	var found bool
	phony.Block(a, func() {
		for h, cc := range a.conns {
			if cc.cs.PeerNode == nodeB {
				handle, found = h, true
				break
			}
		}
	})
	if !found {
		t.Fatal("could not find connContext for b")
	}
	a.mux.Close(handle)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !a.Routes().HasDirect(nodeB) && a.Proxies().Empty() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("route/proxy state was never purged after the connection closed")
}

func TestShutdownClosesConnectionsAndStopsHeartbeats(t *testing.T) {
	a := newTestBroker(19, config.Options{HeartbeatInterval: 15 * time.Millisecond})
	b := newTestBroker(20, config.Default())

	nodeB, _ := connect(t, a, b)
	if !a.Routes().HasDirect(nodeB) {
		t.Fatal("expected a direct route after handshake")
	}

	a.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var remaining int
		phony.Block(a, func() { remaining = len(a.conns) })
		if remaining == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("connections were never purged after Shutdown")
}

func TestForwardBouncesUnreachable(t *testing.T) {
	a := newTestBroker(17, config.Default())
	unknown := testNode(18)
	err := a.Route(1, unknown, 2, 0, pingMsg{Seq: 1})
	if err == nil {
		t.Fatal("expected forwarding to an unreachable node to fail")
	}
	if baserr.KindOf(err) != baserr.RemoteLinkUnreachable {
		t.Fatalf("got kind %v, want remote_link_unreachable", baserr.KindOf(err))
	}
}
