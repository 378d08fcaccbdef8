package wire

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies the purpose of a frame.
type Kind uint8

const (
	KindServerHandshake Kind = iota
	KindClientHandshake
	KindDispatchMessage
	KindMonitorMessage
	KindDemonitorMessage
	KindDownMessage
	KindHeartbeat
	KindAddType
)

func (k Kind) String() string {
	switch k {
	case KindServerHandshake:
		return "server_handshake"
	case KindClientHandshake:
		return "client_handshake"
	case KindDispatchMessage:
		return "dispatch_message"
	case KindMonitorMessage:
		return "monitor_message"
	case KindDemonitorMessage:
		return "demonitor_message"
	case KindDownMessage:
		return "down_message"
	case KindHeartbeat:
		return "heartbeat"
	case KindAddType:
		return "add_type"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known frame kind.
func (k Kind) Valid() bool {
	return k <= KindAddType
}

// FlagNamedReceiver marks that the destination field of a dispatch frame
// is a named-receiver id rather than a per-process actor id.
const FlagNamedReceiver uint8 = 1 << 0

// HeaderSize is the fixed size in bytes of every frame header.
const HeaderSize = 1 + 1 + 4 + 8 + 4 + 4

// MaxPayloadSize bounds payload_len; larger values are a protocol error.
const MaxPayloadSize = 4 * 1024 * 1024

// Header is the fixed-size prefix of every BASP frame.
type Header struct {
	Kind       Kind
	Flags      uint8
	PayloadLen uint32
	OpID       uint64
	Source     ActorID
	Dest       ActorID
}

// IsNamedReceiver reports whether Dest should be resolved through the
// named-receiver table rather than by per-process actor id.
func (h Header) IsNamedReceiver() bool {
	return h.Flags&FlagNamedReceiver != 0
}

// MarshalBinary encodes h into buf (which must be at least HeaderSize
// bytes) in the bit-exact layout from spec §6.
func (h Header) MarshalBinary(buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, fmt.Errorf("wire: buffer too small for header: have %d, need %d", len(buf), HeaderSize)
	}
	buf[0] = byte(h.Kind)
	buf[1] = h.Flags
	binary.BigEndian.PutUint32(buf[2:6], h.PayloadLen)
	binary.BigEndian.PutUint64(buf[6:14], h.OpID)
	binary.BigEndian.PutUint32(buf[14:18], uint32(h.Source))
	binary.BigEndian.PutUint32(buf[18:22], uint32(h.Dest))
	return HeaderSize, nil
}

// UnmarshalBinary decodes a Header from buf.
func (h *Header) UnmarshalBinary(buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, fmt.Errorf("wire: buffer too small for header: have %d, need %d", len(buf), HeaderSize)
	}
	h.Kind = Kind(buf[0])
	h.Flags = buf[1]
	h.PayloadLen = binary.BigEndian.Uint32(buf[2:6])
	h.OpID = binary.BigEndian.Uint64(buf[6:14])
	h.Source = ActorID(binary.BigEndian.Uint32(buf[14:18]))
	h.Dest = ActorID(binary.BigEndian.Uint32(buf[18:22]))
	return HeaderSize, nil
}

// ParserState is the two-state machine driving a connection's frame
// parser (spec §4.1).
type ParserState int

const (
	AwaitHeader ParserState = iota
	AwaitPayload
)

func (s ParserState) String() string {
	if s == AwaitPayload {
		return "await_payload"
	}
	return "await_header"
}
