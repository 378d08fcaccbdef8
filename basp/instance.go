package basp

import (
	"encoding/binary"

	"github.com/pinenet/basp/baserr"
	"github.com/pinenet/basp/wire"
)

// Instance is the stateless-per-call BASP encode/decode orchestrator
// (spec §4.4). It carries no per-connection state of its own — every
// method takes the caller's *ConnState explicitly — so one Instance can
// serve every connection the broker owns.
type Instance struct{}

// NewInstance returns a BASP instance. It holds no state; broker code
// typically keeps a single package-level or broker-owned Instance and
// passes per-connection *ConnState into every call.
func NewInstance() *Instance {
	return &Instance{}
}

// Feed appends data to cs's unparsed buffer and decodes as many complete
// frames as are available, calling in.HandleFrame for each. It implements
// the two-state parser from spec §4.1: a frame with payload_len == 0 is
// processed immediately without leaving AwaitHeader; otherwise the state
// advances to AwaitPayload until enough bytes accumulate. Feed returns an
// error only for a frame that HandleFrame reports as closing the
// connection; an error reported with close=false is not returned.
func (in *Instance) Feed(cs *ConnState, data []byte, callee Callee) error {
	cs.buf = append(cs.buf, data...)
	for {
		switch cs.Phase {
		case wire.AwaitHeader:
			if len(cs.buf) < wire.HeaderSize {
				return nil
			}
			var hdr wire.Header
			if _, err := hdr.UnmarshalBinary(cs.buf); err != nil {
				return baserr.Wrap(baserr.ProtocolError, err, "decode frame header")
			}
			if !hdr.Kind.Valid() {
				return baserr.New(baserr.ProtocolError, "unknown frame kind %d", hdr.Kind)
			}
			if hdr.PayloadLen > wire.MaxPayloadSize {
				return baserr.New(baserr.ProtocolError, "payload_len %d exceeds max %d", hdr.PayloadLen, wire.MaxPayloadSize)
			}
			cs.buf = cs.buf[wire.HeaderSize:]
			cs.Header = hdr
			if hdr.PayloadLen == 0 {
				closeConn, err := in.HandleFrame(cs, hdr, nil, callee)
				if closeConn {
					if err != nil {
						return err
					}
					return baserr.New(baserr.ProtocolError, "connection closed handling %s", hdr.Kind)
				}
				continue
			}
			cs.Phase = wire.AwaitPayload
		case wire.AwaitPayload:
			need := int(cs.Header.PayloadLen)
			if len(cs.buf) < need {
				return nil
			}
			payload := cs.buf[:need]
			cs.buf = cs.buf[need:]
			cs.Phase = wire.AwaitHeader
			closeConn, err := in.HandleFrame(cs, cs.Header, payload, callee)
			if closeConn {
				if err != nil {
					return err
				}
				return baserr.New(baserr.ProtocolError, "connection closed handling %s", cs.Header.Kind)
			}
		}
	}
}

// HandleFrame processes one fully-assembled frame against cs and callee,
// implementing the incoming half of spec §4.4 for all seven frame kinds
// plus the add_type control frame. It reports whether the connection
// must be closed (a protocol violation) — the caller (Feed, or the
// broker directly for a frame decoded some other way) is responsible for
// actually tearing the connection down.
func (in *Instance) HandleFrame(cs *ConnState, hdr wire.Header, payload []byte, callee Callee) (bool, error) {
	switch hdr.Kind {
	case wire.KindServerHandshake:
		return in.handleServerHandshake(cs, payload, callee)
	case wire.KindClientHandshake:
		return in.handleClientHandshake(cs, payload, callee)
	case wire.KindDispatchMessage:
		return in.handleDispatch(cs, hdr, payload, callee)
	case wire.KindMonitorMessage:
		callee.RecordMonitor(cs.PeerNode, hdr.Dest)
		return false, nil
	case wire.KindDemonitorMessage:
		callee.RemoveMonitor(cs.PeerNode, hdr.Dest)
		return false, nil
	case wire.KindDownMessage:
		var dp wire.DownPayload
		if _, err := dp.UnmarshalBinary(payload); err != nil {
			return true, baserr.Wrap(baserr.ProtocolError, err, "decode down_message")
		}
		callee.HandleDown(cs.PeerNode, dp.ActorID, dp.Reason)
		return false, nil
	case wire.KindHeartbeat:
		// last_seen bookkeeping happens in the broker before HandleFrame
		// is reached; a heartbeat carries no payload and needs no reply.
		return false, nil
	case wire.KindAddType:
		// Open Question (spec §9): tolerated at any point in a
		// connection's lifetime, including before handshake completion —
		// a peer may declare types for its very first dispatch frame.
		var at wire.AddTypePayload
		if _, err := at.UnmarshalBinary(payload); err != nil {
			return true, baserr.Wrap(baserr.ProtocolError, err, "decode add_type")
		}
		if err := cs.In.Declare(at.TypeNum, at.TypeName); err != nil {
			return true, baserr.Wrap(baserr.ProtocolError, err, "add_type")
		}
		return false, nil
	default:
		// Open Question (spec §9): unexpected/unknown frame kinds close
		// the connection rather than being skipped.
		return true, baserr.New(baserr.ProtocolError, "unexpected frame kind %v", hdr.Kind)
	}
}

func (in *Instance) handleServerHandshake(cs *ConnState, payload []byte, callee Callee) (bool, error) {
	var sh wire.ServerHandshake
	if _, err := sh.UnmarshalBinary(payload); err != nil {
		return true, baserr.Wrap(baserr.ProtocolError, err, "decode server_handshake")
	}
	if callee.Routes().HasDirect(sh.Node) {
		return true, baserr.New(baserr.ProtocolError, "duplicate direct connection to %v", sh.Node)
	}
	_, wasIndirect := callee.Routes().Lookup(sh.Node)
	cs.PeerNode = sh.Node
	cs.PeerPort = sh.ListenPort
	cs.HandshakeDone = true
	callee.CompleteServerHandshake(cs, sh.Node, sh.ListenPort, sh.Signatures, wasIndirect)
	return false, nil
}

func (in *Instance) handleClientHandshake(cs *ConnState, payload []byte, callee Callee) (bool, error) {
	var ch wire.ClientHandshake
	if _, err := ch.UnmarshalBinary(payload); err != nil {
		return true, baserr.Wrap(baserr.ProtocolError, err, "decode client_handshake")
	}
	if callee.Routes().HasDirect(ch.Node) {
		return true, baserr.New(baserr.ProtocolError, "duplicate direct connection to %v", ch.Node)
	}
	cs.PeerNode = ch.Node
	cs.HandshakeDone = true
	callee.CompleteClientHandshake(cs, ch.Node)
	return false, nil
}

func (in *Instance) handleDispatch(cs *ConnState, hdr wire.Header, payload []byte, callee Callee) (bool, error) {
	if len(payload) < 4 {
		return true, baserr.New(baserr.ProtocolError, "dispatch_message payload too short")
	}
	typeNum := binary.BigEndian.Uint32(payload)
	body := payload[4:]
	if typeNum == 0 {
		return true, baserr.New(baserr.ProtocolError, "dispatch_message with reserved type id 0")
	}
	typeName, err := cs.In.NameFor(typeNum)
	if err != nil {
		return true, baserr.Wrap(baserr.ProtocolError, err, "resolve dispatch_message type")
	}
	value, err := callee.Codec().Decode(typeName, body)
	if err != nil {
		return true, baserr.Wrap(baserr.ProtocolError, err, "decode dispatch_message payload")
	}
	if err := callee.DeliverDispatch(cs, hdr, value); err != nil {
		// A delivery failure (e.g. unknown local destination) is not a
		// protocol violation; it does not close the connection.
		return false, err
	}
	return false, nil
}
