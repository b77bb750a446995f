package ws

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// ConnState is the lifecycle state of one connection.
type ConnState int

const (
	// StateAccepted is a raw TCP connection before any bytes arrived.
	StateAccepted ConnState = iota
	// StateHandshaking means the upgrade request is being read and answered.
	StateHandshaking
	// StateEstablished means the handshake response was written and the
	// connection is registered.
	StateEstablished
	// StateClosing means a read failure, EOF or peer close was observed.
	StateClosing
	// StateRemoved means the connection was evicted from the registry.
	StateRemoved
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

var legalTransitions = map[ConnState][]ConnState{
	StateAccepted:    {StateHandshaking},
	StateHandshaking: {StateEstablished},
	StateEstablished: {StateClosing},
	StateClosing:     {StateRemoved},
}

// CanTransition reports whether from→to is a legal lifecycle transition.
func CanTransition(from, to ConnState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Conn is one live client connection. It is owned by the Server's registry
// once established. Only the dispatch goroutine transitions the state; it is
// stored atomically because Send and Broadcast read it from other goroutines.
type Conn struct {
	id    string
	sock  net.Conn
	state atomic.Int32
}

func newConn(sock net.Conn) *Conn {
	c := &Conn{sock: sock}
	c.state.Store(int32(StateAccepted))
	return c
}

// ID returns the server-assigned client ID. Empty until established.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// transition moves the connection to the next state, enforcing legality.
func (c *Conn) transition(to ConnState) error {
	from := c.State()
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal connection state transition %s -> %s", from, to)
	}
	c.state.Store(int32(to))
	return nil
}

// readAvailable performs one non-blocking readiness check: it reads one
// chunk with a short deadline. A deadline timeout means "no data".
func (c *Conn) readAvailable(buf []byte, timeout time.Duration) (int, error) {
	if err := c.sock.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	return c.sock.Read(buf)
}

func (c *Conn) write(data []byte) error {
	_, err := c.sock.Write(data)
	return err
}

func (c *Conn) close() {
	_ = c.sock.Close()
}
