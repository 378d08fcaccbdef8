package basp

import (
	"encoding/binary"

	"github.com/pinenet/basp/codec"
	"github.com/pinenet/basp/wire"
)

// Frame is a fully-encoded header+payload pair ready to be written to a
// connection in order.
type Frame struct {
	Header  wire.Header
	Payload []byte
}

// Bytes concatenates the frame's header and payload into one buffer, the
// shape every mux.Multiplexer.Write call expects.
func (f Frame) Bytes() []byte {
	buf := make([]byte, wire.HeaderSize+len(f.Payload))
	f.Header.PayloadLen = uint32(len(f.Payload))
	f.Header.MarshalBinary(buf)
	copy(buf[wire.HeaderSize:], f.Payload)
	return buf
}

func controlFrame(kind wire.Kind, dest wire.ActorID, payload []byte) Frame {
	return Frame{Header: wire.Header{Kind: kind, Dest: dest, PayloadLen: uint32(len(payload))}, Payload: payload}
}

// WriteServerHandshake encodes the frame a broker sends first on every
// accepted connection: its own node id, the port it listens on (0 if it
// isn't publishing), and the signatures of whatever is published there.
func WriteServerHandshake(localNode wire.NodeID, listenPort uint16, sigs []string) (Frame, error) {
	sh := wire.ServerHandshake{Node: localNode, ListenPort: listenPort, Signatures: sigs}
	buf := make([]byte, wire.NodeIDSize+2+2+signatureBytes(sigs))
	n, err := sh.MarshalBinary(buf)
	if err != nil {
		return Frame{}, err
	}
	return controlFrame(wire.KindServerHandshake, 0, buf[:n]), nil
}

// WriteClientHandshake encodes the frame a dialing broker sends right
// after the dial succeeds, without waiting for the peer's
// server_handshake.
func WriteClientHandshake(localNode wire.NodeID) (Frame, error) {
	ch := wire.ClientHandshake{Node: localNode}
	buf := make([]byte, wire.NodeIDSize)
	n, err := ch.MarshalBinary(buf)
	if err != nil {
		return Frame{}, err
	}
	return controlFrame(wire.KindClientHandshake, 0, buf[:n]), nil
}

// WriteHeartbeat encodes an empty heartbeat frame.
func WriteHeartbeat() Frame {
	return controlFrame(wire.KindHeartbeat, 0, nil)
}

// WriteMonitor encodes a monitor_message: sent to node, naming the local
// actor id on node's side that the sender now observes.
func WriteMonitor(id wire.ActorID) Frame {
	return controlFrame(wire.KindMonitorMessage, id, nil)
}

// WriteDemonitor encodes a demonitor_message, mirroring WriteMonitor.
func WriteDemonitor(id wire.ActorID) Frame {
	return controlFrame(wire.KindDemonitorMessage, id, nil)
}

// WriteDown encodes a down_message: the actor id that terminated and the
// reason it exited with.
func WriteDown(id wire.ActorID, reason string) (Frame, error) {
	dp := wire.DownPayload{ActorID: id, Reason: reason}
	buf := make([]byte, 4+2+len(reason))
	n, err := dp.MarshalBinary(buf)
	if err != nil {
		return Frame{}, err
	}
	return controlFrame(wire.KindDownMessage, id, buf[:n]), nil
}

func writeAddType(typeNum uint32, typeName string) (Frame, error) {
	at := wire.AddTypePayload{TypeNum: typeNum, TypeName: typeName}
	buf := make([]byte, 4+2+len(typeName))
	n, err := at.MarshalBinary(buf)
	if err != nil {
		return Frame{}, err
	}
	return controlFrame(wire.KindAddType, 0, buf[:n]), nil
}

// WriteDispatch encodes a dispatch_message addressed to (dstNode, dstID)
// carrying payload, sent from src with operation id opID. If dstNode is
// the local node, it returns localDeliver=true and no frames — the
// caller (the broker) is expected to deliver the message to its own
// registry directly rather than writing it to any connection (spec §4.4:
// local delivery never touches the wire). Otherwise it returns one or two
// frames: an add_type control frame first, the first time cs's outbound
// table sees payload's type, followed always by the dispatch frame
// itself. Both must be written, in order, on the same connection.
func WriteDispatch(cs *ConnState, vc codec.ValueCodec, src wire.ActorID, dstNode wire.NodeID, dstID wire.ActorID, isNamed bool, opID uint64, payload interface{}, localNode wire.NodeID) (frames []Frame, localDeliver bool, err error) {
	if dstNode == localNode {
		return nil, true, nil
	}
	typeName, err := vc.TypeName(payload)
	if err != nil {
		return nil, false, err
	}
	data, err := vc.Encode(payload)
	if err != nil {
		return nil, false, err
	}
	id, known := cs.Out.IDFor(typeName)
	if !known {
		f, err := writeAddType(id, typeName)
		if err != nil {
			return nil, false, err
		}
		frames = append(frames, f)
	}
	body := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(body, id)
	copy(body[4:], data)
	hdr := wire.Header{Kind: wire.KindDispatchMessage, OpID: opID, Source: src, Dest: dstID}
	if isNamed {
		hdr.Flags = wire.FlagNamedReceiver
	}
	frames = append(frames, Frame{Header: hdr, Payload: body})
	return frames, false, nil
}

func signatureBytes(sigs []string) int {
	n := 2
	for _, s := range sigs {
		n += 2 + len(s)
	}
	return n
}
