package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"sync"
)

// GobCodec is the default production ValueCodec: it registers concrete
// types under caller-supplied names and serializes them with the
// standard library's gob encoding. It is suitable for payloads whose
// types are known to both peers ahead of time (announced via Register),
// matching BASP's "injective type-name→id mapping" requirement (spec §1).
type GobCodec struct {
	mu    sync.Mutex
	types map[string]reflect.Type
}

// NewGobCodec returns an empty codec; call Register for every type that
// may cross the wire before using it.
func NewGobCodec() *GobCodec {
	return &GobCodec{types: make(map[string]reflect.Type)}
}

// Register associates a zero value's type with name so Decode can
// reconstruct values of that type later.
func (c *GobCodec) Register(name string, zero interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[name] = reflect.TypeOf(zero)
	gob.Register(zero)
}

// TypeName returns the name v was registered under.
func (c *GobCodec) TypeName(v interface{}) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := reflect.TypeOf(v)
	for name, rt := range c.types {
		if rt == t {
			return name, nil
		}
	}
	return "", fmt.Errorf("codec: type %v was never registered", t)
}

// Encode gob-encodes v.
func (c *GobCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("codec: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode gob-decodes data into a value of the type registered under
// typeName.
func (c *GobCodec) Decode(typeName string, data []byte) (interface{}, error) {
	c.mu.Lock()
	_, ok := c.types[typeName]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("codec: unregistered type %q", typeName)
	}
	var v interface{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: gob decode: %w", err)
	}
	return v, nil
}
