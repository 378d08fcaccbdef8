// Package mux provides the I/O multiplexer capability that spec §1
// treats as an external collaborator: "sockets, byte-stream read/write
// events, acceptor events, and an in-loop task dispatch primitive". This
// is a minimal TCP-backed implementation, generalized from pinecone's
// dual real-socket/net.Pipe connection style in
// cmd/pineconesim/simulator/links.go, sufficient to run the broker for
// real and to drive it in tests without a real network.
package mux

import (
	"fmt"
	"net"
	"sync"
)

// ConnHandle is an opaque token identifying one bidirectional byte
// stream (spec §3: "Connection handle").
type ConnHandle uint64

// AcceptHandle is an opaque token for one listening endpoint.
type AcceptHandle uint64

// Events is the callback surface the multiplexer drives. Implementations
// (the broker) must not block inside these calls; everything here is
// meant to be handed off to the in-loop dispatch primitive immediately.
type Events interface {
	NewData(h ConnHandle, data []byte)
	NewConnection(a AcceptHandle, h ConnHandle, remoteAddr string)
	ConnectionClosed(h ConnHandle)
	AcceptorClosed(a AcceptHandle)
}

// Multiplexer owns a set of live connections and acceptors and turns
// their I/O into Events callbacks. It is the one piece of the system
// that may run goroutines outside the broker's own execution context;
// everything it reports must be handed to the broker via its dispatch
// primitive before touching broker state.
type Multiplexer struct {
	events Events

	mu         sync.Mutex
	nextConn   uint64
	nextAccept uint64
	conns      map[ConnHandle]net.Conn
	acceptors  map[AcceptHandle]net.Listener
}

// New returns a Multiplexer that reports activity to events.
func New(events Events) *Multiplexer {
	return &Multiplexer{
		events:    events,
		conns:     make(map[ConnHandle]net.Conn),
		acceptors: make(map[AcceptHandle]net.Listener),
	}
}

// Listen opens a TCP listener on addr (":0" for a system-assigned port)
// and returns its handle and bound port.
func (m *Multiplexer) Listen(addr string) (AcceptHandle, uint16, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, 0, err
	}
	m.mu.Lock()
	m.nextAccept++
	h := AcceptHandle(m.nextAccept)
	m.acceptors[h] = ln
	m.mu.Unlock()
	go m.acceptLoop(h, ln)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	return h, port, nil
}

func (m *Multiplexer) acceptLoop(a AcceptHandle, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			m.events.AcceptorClosed(a)
			return
		}
		h := m.register(conn)
		m.events.NewConnection(a, h, conn.RemoteAddr().String())
		go m.readLoop(h, conn)
	}
}

// Dial opens a TCP connection to addr and returns its handle.
func (m *Multiplexer) Dial(addr string) (ConnHandle, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return 0, err
	}
	h := m.register(conn)
	go m.readLoop(h, conn)
	return h, nil
}

// Adopt registers an already-established connection (e.g. one end of a
// net.Pipe in tests) and starts reading from it.
func (m *Multiplexer) Adopt(conn net.Conn) ConnHandle {
	h := m.register(conn)
	go m.readLoop(h, conn)
	return h
}

func (m *Multiplexer) register(conn net.Conn) ConnHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextConn++
	h := ConnHandle(m.nextConn)
	m.conns[h] = conn
	return h
}

func (m *Multiplexer) readLoop(h ConnHandle, conn net.Conn) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			m.events.NewData(h, data)
		}
		if err != nil {
			m.mu.Lock()
			delete(m.conns, h)
			m.mu.Unlock()
			m.events.ConnectionClosed(h)
			return
		}
	}
}

// Write sends data on h's connection.
func (m *Multiplexer) Write(h ConnHandle, data []byte) error {
	m.mu.Lock()
	conn, ok := m.conns[h]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("mux: unknown connection handle %d", h)
	}
	_, err := conn.Write(data)
	return err
}

// Close closes h's connection.
func (m *Multiplexer) Close(h ConnHandle) error {
	m.mu.Lock()
	conn, ok := m.conns[h]
	delete(m.conns, h)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// CloseAcceptor closes a's listener.
func (m *Multiplexer) CloseAcceptor(a AcceptHandle) error {
	m.mu.Lock()
	ln, ok := m.acceptors[a]
	delete(m.acceptors, a)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return ln.Close()
}

// LocalPort returns the bound port for an acceptor.
func (m *Multiplexer) LocalPort(a AcceptHandle) (uint16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ln, ok := m.acceptors[a]
	if !ok {
		return 0, false
	}
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, false
	}
	return uint16(tcpAddr.Port), true
}
