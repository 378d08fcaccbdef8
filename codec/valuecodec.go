package codec

// ValueCodec serializes and deserializes the arbitrary user payloads
// carried by dispatch frames. It is an opaque typed-value codec per
// spec §1: this repository only depends on the interface, never on a
// concrete wire representation for user types.
type ValueCodec interface {
	// TypeName returns the fully-qualified name the codec will use to
	// identify v's type on the wire.
	TypeName(v interface{}) (string, error)
	// Encode serializes v into a fresh byte slice.
	Encode(v interface{}) ([]byte, error)
	// Decode deserializes data, previously declared under typeName, into
	// a new value of the corresponding Go type.
	Decode(typeName string, data []byte) (interface{}, error)
}
