package wire

import (
	"encoding/binary"
	"fmt"
)

// writeString length-prefixes s (2-byte big-endian length) into buf,
// returning the number of bytes written.
func writeString(buf []byte, s string) (int, error) {
	need := 2 + len(s)
	if len(buf) < need {
		return 0, fmt.Errorf("wire: buffer too small for string: have %d, need %d", len(buf), need)
	}
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	return need, nil
}

func readString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, fmt.Errorf("wire: buffer too small for string length")
	}
	n := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+n {
		return "", 0, fmt.Errorf("wire: buffer too small for string contents: have %d, need %d", len(buf)-2, n)
	}
	return string(buf[2 : 2+n]), 2 + n, nil
}

func writeStringList(buf []byte, items []string) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("wire: buffer too small for string list count")
	}
	binary.BigEndian.PutUint16(buf, uint16(len(items)))
	off := 2
	for _, it := range items {
		n, err := writeString(buf[off:], it)
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

func readStringList(buf []byte) ([]string, int, error) {
	if len(buf) < 2 {
		return nil, 0, fmt.Errorf("wire: buffer too small for string list count")
	}
	count := int(binary.BigEndian.Uint16(buf))
	off := 2
	items := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s, n, err := readString(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
		off += n
	}
	return items, off, nil
}

// ServerHandshake is the payload carried by a KindServerHandshake frame:
// the emitter's node id, the port it listens on, and the set of
// interface signatures published at that port (possibly empty when no
// actor is published).
type ServerHandshake struct {
	Node       NodeID
	ListenPort uint16
	Signatures []string
}

// MarshalBinary encodes a server handshake payload into buf.
func (h ServerHandshake) MarshalBinary(buf []byte) (int, error) {
	n, err := h.Node.MarshalBinary(buf)
	if err != nil {
		return 0, err
	}
	off := n
	if len(buf) < off+2 {
		return 0, fmt.Errorf("wire: buffer too small for server handshake port")
	}
	binary.BigEndian.PutUint16(buf[off:], h.ListenPort)
	off += 2
	m, err := writeStringList(buf[off:], h.Signatures)
	if err != nil {
		return 0, err
	}
	return off + m, nil
}

// UnmarshalBinary decodes a server handshake payload from buf.
func (h *ServerHandshake) UnmarshalBinary(buf []byte) (int, error) {
	n, err := h.Node.UnmarshalBinary(buf)
	if err != nil {
		return 0, err
	}
	off := n
	if len(buf) < off+2 {
		return 0, fmt.Errorf("wire: buffer too small for server handshake port")
	}
	h.ListenPort = binary.BigEndian.Uint16(buf[off:])
	off += 2
	sigs, m, err := readStringList(buf[off:])
	if err != nil {
		return 0, err
	}
	h.Signatures = sigs
	return off + m, nil
}

// ClientHandshake is the payload carried by a KindClientHandshake frame:
// just the initiator's node id.
type ClientHandshake struct {
	Node NodeID
}

// MarshalBinary encodes a client handshake payload into buf.
func (h ClientHandshake) MarshalBinary(buf []byte) (int, error) {
	return h.Node.MarshalBinary(buf)
}

// UnmarshalBinary decodes a client handshake payload from buf.
func (h *ClientHandshake) UnmarshalBinary(buf []byte) (int, error) {
	return h.Node.UnmarshalBinary(buf)
}

// DownPayload is carried by KindDownMessage frames: the terminated
// actor's id and the reason string it exited with.
type DownPayload struct {
	ActorID ActorID
	Reason  string
}

// MarshalBinary encodes a down-message payload into buf.
func (d DownPayload) MarshalBinary(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("wire: buffer too small for down payload")
	}
	binary.BigEndian.PutUint32(buf, uint32(d.ActorID))
	n, err := writeString(buf[4:], d.Reason)
	if err != nil {
		return 0, err
	}
	return 4 + n, nil
}

// UnmarshalBinary decodes a down-message payload from buf.
func (d *DownPayload) UnmarshalBinary(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("wire: buffer too small for down payload")
	}
	d.ActorID = ActorID(binary.BigEndian.Uint32(buf))
	reason, n, err := readString(buf[4:])
	if err != nil {
		return 0, err
	}
	d.Reason = reason
	return 4 + n, nil
}

// AddTypePayload is carried by KindAddType control frames: a newly
// assigned type number and the fully-qualified type name it stands for.
type AddTypePayload struct {
	TypeNum  uint32
	TypeName string
}

// MarshalBinary encodes an add-type payload into buf.
func (a AddTypePayload) MarshalBinary(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("wire: buffer too small for add_type payload")
	}
	binary.BigEndian.PutUint32(buf, a.TypeNum)
	n, err := writeString(buf[4:], a.TypeName)
	if err != nil {
		return 0, err
	}
	return 4 + n, nil
}

// UnmarshalBinary decodes an add-type payload from buf.
func (a *AddTypePayload) UnmarshalBinary(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("wire: buffer too small for add_type payload")
	}
	a.TypeNum = binary.BigEndian.Uint32(buf)
	name, n, err := readString(buf[4:])
	if err != nil {
		return 0, err
	}
	a.TypeName = name
	return 4 + n, nil
}
