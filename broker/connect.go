package broker

import (
	"github.com/Arceliar/phony"

	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/baserr"
	"github.com/pinenet/basp/wire"
)

// Connect implements spec §4.5 "connect": dials addr, sends a
// client_handshake, and blocks until the peer's server_handshake
// resolves the pending promise (spec §5: "connect has no intrinsic
// timeout; callers impose one" — via context cancellation around the
// call site, not inside Connect itself).
func (b *Broker) Connect(addr string) (wire.NodeID, uint16, error) {
	h, err := b.mux.Dial(addr)
	if err != nil {
		return wire.NoNode, 0, baserr.Wrap(baserr.CannotConnect, err, "dial "+addr)
	}
	resultCh := make(chan connectResult, 1)
	phony.Block(b, func() {
		cc := newConnContext(h, true)
		cc.pending = &pendingConnect{result: resultCh}
		b.conns[h] = cc
		if b.metrics != nil {
			b.metrics.ConnectionsOpened.Inc()
		}
		frame, ferr := basp.WriteClientHandshake(b.node)
		if ferr != nil {
			resultCh <- connectResult{err: ferr}
			return
		}
		if werr := b.mux.Write(h, frame.Bytes()); werr != nil {
			resultCh <- connectResult{err: werr}
		}
	})
	res := <-resultCh
	return res.node, res.port, res.err
}
