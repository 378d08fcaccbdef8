package broker

import (
	"time"

	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/mux"
	"github.com/pinenet/basp/wire"
)

// connContext is the per-connection record the broker keeps alongside a
// connection's protocol-level basp.ConnState (spec §3 "Connection
// context"): the transport bookkeeping a *basp.ConnState deliberately
// doesn't carry, so that package stays exercisable without a real
// connection at all.
type connContext struct {
	handle   mux.ConnHandle
	cs       *basp.ConnState
	lastSeen int64 // unix nanoseconds of the last received byte

	// pending is non-nil only on a connection this broker dialed, until
	// its server_handshake arrives (or the connection closes first).
	pending *pendingConnect

	// closing is set once connection_closed has been observed for this
	// handle, so a second notification is a no-op.
	closing bool

	// closeCause, if set before mux.Close is called, is the error that
	// forced the close (a protocol error or a connection_timeout); the
	// deferred _finishClose reads it back so every close path purges
	// exactly once, through the async connection_closed event, regardless
	// of who initiated the close.
	closeCause error
}

type pendingConnect struct {
	result chan connectResult
}

type connectResult struct {
	node wire.NodeID
	port uint16
	err  error
}

func newConnContext(h mux.ConnHandle, initiator bool) *connContext {
	cs := basp.NewConnState()
	cs.Initiator = initiator
	cs.ConnHandle = uint64(h)
	cc := &connContext{handle: h, cs: cs, lastSeen: time.Now().UnixNano()}
	return cc
}

func (c *connContext) touch() {
	c.lastSeen = time.Now().UnixNano()
}

func (c *connContext) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastSeen))
}
