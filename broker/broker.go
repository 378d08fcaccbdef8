// Package broker implements the BASP broker actor (spec §4.5): the
// single-threaded coordinator that owns the routing table, the proxy
// registry, every connection context, and the published-actor registry,
// reacting to multiplexer events and local requests. It reuses
// pinecone's phony.Inbox as its in-loop dispatch primitive (spec §5),
// generalized from router.Router's state-holder pattern in
// router/simulator.go.
package broker

import (
	"log"

	"github.com/Arceliar/phony"
	"go.uber.org/atomic"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/codec"
	"github.com/pinenet/basp/config"
	"github.com/pinenet/basp/metrics"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/proxy"
	"github.com/pinenet/basp/routing"
	"github.com/pinenet/basp/wire"
)

// publishedActor is one entry of the published-actor registry (spec §3).
type publishedActor struct {
	actor wire.ActorID
	sigs  []string
}

// Option configures a Broker at construction time, mirroring pinecone's
// functional-option constructors for Peer/Router
// (cmd/pineconesim/simulator/links.go's ConnectionKeepalives /
// ConnectionPeerType shape).
type Option func(*Broker)

// WithLogger overrides the broker's default logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Broker) { b.log = l }
}

// WithMetrics attaches a metrics collector the broker updates as it runs.
func WithMetrics(m *metrics.Broker) Option {
	return func(b *Broker) { b.metrics = m }
}

// Broker is the BASP broker actor. Apart from tempIDSeq and the
// internally locked local registry and multiplexer, which detached
// helper goroutines also use, every field below this comment is
// broker-thread-only state (spec §3 invariants, §5 concurrency model);
// it must only be read or written from inside an Act/Block closure.
type Broker struct {
	phony.Inbox

	node    wire.NodeID
	opts    config.Options
	log     *log.Logger
	metrics *metrics.Broker

	mux   *mux.Multiplexer
	codec codec.ValueCodec
	inst  *basp.Instance

	routes  *routing.Table
	proxies *proxy.Registry
	local   *actorsys.Registry

	conns     map[mux.ConnHandle]*connContext
	acceptors map[mux.AcceptHandle]uint16
	published map[uint16]publishedActor

	// primaryPort is the port advertised in every server_handshake this
	// broker sends. A node may run several acceptors; BASP's handshake
	// only carries one port, so the first successful Publish wins,
	// matching what a single-process CAF node actually does (one BASP
	// broker, one advertised default endpoint).
	primaryPort uint16

	monitors      map[wire.ActorID]map[wire.NodeID]struct{}
	nodeObservers map[wire.NodeID]map[wire.ActorID]struct{}
	helperStarted map[wire.NodeID]bool
	probeStarted  map[wire.NodeID]bool

	tickStop chan struct{}

	// tempIDSeq allocates synthetic local actor ids for detached helper
	// goroutines (the connection helper's and the spawn-server probe's
	// reply mailboxes) that are never
	// on the broker's own goroutine, so a plain counter would race.
	tempIDSeq atomic.Uint32
}

// New constructs a Broker for node, using vc to encode/decode dispatch
// payloads and opts for its tunables. The broker registers itself as the
// mux.Events and proxy.Backend implementation for the multiplexer and
// proxy registry it owns.
func New(node wire.NodeID, vc codec.ValueCodec, opts config.Options, options ...Option) *Broker {
	b := &Broker{
		node:          node,
		opts:          opts,
		log:           log.Default(),
		codec:         vc,
		inst:          basp.NewInstance(),
		routes:        routing.New(),
		local:         actorsys.NewRegistry(),
		conns:         make(map[mux.ConnHandle]*connContext),
		acceptors:     make(map[mux.AcceptHandle]uint16),
		published:     make(map[uint16]publishedActor),
		monitors:      make(map[wire.ActorID]map[wire.NodeID]struct{}),
		nodeObservers: make(map[wire.NodeID]map[wire.ActorID]struct{}),
		helperStarted: make(map[wire.NodeID]bool),
		probeStarted:  make(map[wire.NodeID]bool),
	}
	for _, opt := range options {
		opt(b)
	}
	b.proxies = proxy.NewRegistry(b)
	b.mux = mux.New(b)
	if opts.HeartbeatInterval > 0 {
		b.startTicking()
	}
	return b
}

// Routes implements basp.Callee.
func (b *Broker) Routes() *routing.Table { return b.routes }

// Codec implements basp.Callee.
func (b *Broker) Codec() codec.ValueCodec { return b.codec }

// Node returns this broker's own node id.
func (b *Broker) Node() wire.NodeID { return b.node }

// Mux exposes the underlying multiplexer so callers can Dial/Adopt
// connections (e.g. net.Pipe ends in tests) before handing them to the
// broker's event callbacks.
func (b *Broker) Mux() *mux.Multiplexer { return b.mux }

// LocalActors exposes the local actor registry so a demo binary or test
// can register mailboxes the broker will deliver into.
func (b *Broker) LocalActors() *actorsys.Registry { return b.local }

// Proxies exposes the proxy registry, mainly for tests asserting
// proxies.Empty() (spec §8 scenario 1).
func (b *Broker) Proxies() *proxy.Registry { return b.proxies }

// nextTempID allocates a synthetic local actor id, used by internal
// helpers (the connection helper's reply mailbox) that need a throwaway
// registry entry outside the range a real spawner would ever hand out.
func (b *Broker) nextTempID() wire.ActorID {
	return wire.ActorID(1<<20) + wire.ActorID(b.tempIDSeq.Inc())
}

// Shutdown stops the heartbeat loop and closes every acceptor and
// connection this broker owns. It does not wait for in-flight dispatch
// to drain; callers that need that should stop routing first.
func (b *Broker) Shutdown() {
	b.stopTicking()
	phony.Block(b, func() {
		for a := range b.acceptors {
			b.mux.CloseAcceptor(a)
		}
		for h := range b.conns {
			b.mux.Close(h)
		}
	})
}
