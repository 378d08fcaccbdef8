package wire

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalHeader(t *testing.T) {
	input := Header{
		Kind:       KindDispatchMessage,
		Flags:      FlagNamedReceiver,
		PayloadLen: 42,
		OpID:       0xdeadbeefcafebabe,
		Source:     7,
		Dest:       9,
	}
	buf := make([]byte, HeaderSize)
	n, err := input.MarshalBinary(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != HeaderSize {
		t.Fatalf("wrong marshalled length, got %d, expected %d", n, HeaderSize)
	}
	var output Header
	if _, err := output.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if output != input {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", output, input)
	}
}

func TestHeaderBitExactLayout(t *testing.T) {
	input := Header{
		Kind:       KindHeartbeat,
		Flags:      0,
		PayloadLen: 0,
		OpID:       1,
		Source:     2,
		Dest:       3,
	}
	expected := []byte{
		byte(KindHeartbeat), 0,
		0, 0, 0, 0, // payload len
		0, 0, 0, 0, 0, 0, 0, 1, // op id
		0, 0, 0, 2, // source
		0, 0, 0, 3, // dest
	}
	buf := make([]byte, HeaderSize)
	n, err := input.MarshalBinary(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], expected) {
		t.Fatalf("wrong marshalled output, got %v, expected %v", buf[:n], expected)
	}
}

func TestNodeIDCompareAndRoundTrip(t *testing.T) {
	var a, b NodeID
	a.Fingerprint[0] = 1
	a.ProcessID = 100
	b.Fingerprint[0] = 1
	b.ProcessID = 200
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	buf := make([]byte, NodeIDSize)
	if _, err := a.MarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	var out NodeID
	if _, err := out.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if out != a {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", out, a)
	}
}

func TestServerHandshakeRoundTrip(t *testing.T) {
	input := ServerHandshake{
		ListenPort: 4242,
		Signatures: []string{"ping", "pong"},
	}
	input.Node.Fingerprint[0] = 9
	input.Node.ProcessID = 55
	buf := make([]byte, 256)
	n, err := input.MarshalBinary(buf)
	if err != nil {
		t.Fatal(err)
	}
	var output ServerHandshake
	if _, err := output.UnmarshalBinary(buf[:n]); err != nil {
		t.Fatal(err)
	}
	if output.Node != input.Node || output.ListenPort != input.ListenPort {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", output, input)
	}
	if len(output.Signatures) != 2 || output.Signatures[0] != "ping" || output.Signatures[1] != "pong" {
		t.Fatalf("wrong signatures: got %v", output.Signatures)
	}
}
