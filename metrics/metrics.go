// Package metrics exposes the broker's ambient observability surface.
// Not required by spec.md (whose Non-goals exclude QoS, not metrics),
// added as the ambient stack's monitoring concern, grounded on
// rockstar-0000-aistore's go.mod dependency on
// github.com/prometheus/client_golang for process-level observability.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Broker holds every collector the broker updates. Register it with a
// prometheus.Registerer of the caller's choosing (cmd/baspd registers it
// with the default registry).
type Broker struct {
	ConnectionsOpened   prometheus.Counter
	ConnectionsClosed   prometheus.Counter
	HeartbeatsSent      prometheus.Counter
	ConnectionTimeouts  prometheus.Counter
	ProxiesCreated      prometheus.Counter
	ProxiesErased       prometheus.Counter
	DispatchDirect      prometheus.Counter
	DispatchIndirect    prometheus.Counter
	DispatchBounced     prometheus.Counter
	ProtocolErrors      prometheus.Counter
}

// New constructs the collector set under the "basp" namespace.
func New() *Broker {
	factory := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "basp",
			Subsystem: "broker",
			Name:      name,
			Help:      help,
		})
	}
	return &Broker{
		ConnectionsOpened:  factory("connections_opened_total", "Connections accepted or dialed."),
		ConnectionsClosed:  factory("connections_closed_total", "Connections closed for any reason."),
		HeartbeatsSent:     factory("heartbeats_sent_total", "Heartbeat frames emitted."),
		ConnectionTimeouts: factory("connection_timeouts_total", "Connections closed for exceeding connection-timeout."),
		ProxiesCreated:     factory("proxies_created_total", "Remote actor proxies created."),
		ProxiesErased:      factory("proxies_erased_total", "Remote actor proxies erased."),
		DispatchDirect:     factory("dispatch_direct_total", "Dispatch frames routed over a direct connection."),
		DispatchIndirect:   factory("dispatch_indirect_total", "Dispatch frames routed over an indirect next hop."),
		DispatchBounced:    factory("dispatch_bounced_total", "Requests bounced with remote_link_unreachable."),
		ProtocolErrors:     factory("protocol_errors_total", "Connections closed due to a protocol error."),
	}
}

// MustRegister registers every collector with reg, panicking on
// duplicate registration (mirrors promauto's own panic-on-conflict
// behavior, used here explicitly so callers control the registry).
func (b *Broker) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		b.ConnectionsOpened,
		b.ConnectionsClosed,
		b.HeartbeatsSent,
		b.ConnectionTimeouts,
		b.ProxiesCreated,
		b.ProxiesErased,
		b.DispatchDirect,
		b.DispatchIndirect,
		b.DispatchBounced,
		b.ProtocolErrors,
	)
}
