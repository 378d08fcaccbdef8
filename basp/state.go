// Package basp implements the stateless-per-call BASP encode/decode
// orchestrator (spec §4.4): the frame-level protocol logic shared by
// every connection, kept separate from the broker's connection and
// routing bookkeeping so it can be exercised without a real socket.
package basp

import (
	"github.com/pinenet/basp/codec"
	"github.com/pinenet/basp/wire"
)

// ConnState is the protocol-level state of one connection's parser: its
// phase, last-decoded header, the peer's identity once known, and its
// per-direction type tables (spec §3 "Connection context"). Transport-
// level bookkeeping (the connection handle, last-seen timestamp, pending
// promise) lives in the broker package, which embeds a *ConnState.
type ConnState struct {
	Phase         wire.ParserState
	Header        wire.Header
	PeerNode      wire.NodeID
	PeerPort      uint16
	HandshakeDone bool
	// Initiator is true for connections we dialed (we sent the client
	// handshake); false for connections we accepted (we sent the server
	// handshake first).
	Initiator bool
	Out       *codec.TypeTable
	In        *codec.TypeTable

	// ConnHandle is an opaque correlation id the broker stamps onto a
	// ConnState when it creates one, so that basp.Callee methods invoked
	// from inside Feed/HandleFrame can map back to the broker's own
	// connection bookkeeping without this package importing mux.
	ConnHandle uint64

	buf []byte // unparsed bytes accumulated by Instance.Feed
}

// NewConnState returns a fresh connection state, starting in AwaitHeader
// with empty type tables.
func NewConnState() *ConnState {
	return &ConnState{
		Phase: wire.AwaitHeader,
		Out:   codec.NewTypeTable(),
		In:    codec.NewTypeTable(),
	}
}
