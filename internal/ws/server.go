package ws

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novadaw/novahost/internal/logger"
)

const (
	// acceptTimeout bounds the per-iteration accept attempt.
	acceptTimeout = 5 * time.Millisecond
	// pollTimeout bounds the per-connection readiness check.
	pollTimeout = time.Millisecond
	// loopSleep bounds CPU usage between dispatch iterations.
	loopSleep = time.Millisecond
	// readBufferSize is the per-read chunk size. One chunk is decoded as at
	// most one frame.
	readBufferSize = 64 * 1024
	// handshakeBufferSize holds the raw upgrade request.
	handshakeBufferSize = 4096
	// shutdownWait bounds how long Stop waits for the dispatch loop.
	shutdownWait = 3 * time.Second
)

// Handler receives connection lifecycle and message events. All methods are
// invoked synchronously on the dispatch goroutine: a slow handler delays
// polling of every other connection.
type Handler interface {
	ClientConnected(clientID string)
	ClientDisconnected(clientID string)
	MessageReceived(clientID string, payload []byte)
}

// Options configures a Server.
type Options struct {
	Port             int
	MaxConnections   int
	HandshakeTimeout time.Duration
}

// Server accepts raw TCP connections, upgrades them to WebSocket and
// dispatches decoded messages to the injected Handler. One goroutine owns
// accept, poll and decode; the connection registry is the single authority
// for which clients are reachable.
type Server struct {
	opts    Options
	handler Handler
	log     *logger.Logger

	listener net.Listener

	mu    sync.Mutex
	conns map[string]*Conn

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a Server. The handler must not be nil.
func NewServer(opts Options, handler Handler) *Server {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 32
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	return &Server{
		opts:     opts,
		handler:  handler,
		log:      logger.Global().WithPrefix("ws"),
		conns:    make(map[string]*Conn),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the listener and starts the dispatch loop.
func (s *Server) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.opts.Port, err)
	}
	s.listener = listener
	s.running = true

	go s.run()

	s.log.Info("listening on port %d (max connections: %d)", s.opts.Port, s.opts.MaxConnections)
	return nil
}

// Addr returns the bound listener address, for tests using port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop signals the dispatch loop, closes the listener and every client
// socket, clears the registry and waits up to shutdownWait for the loop to
// exit. The loop is abandoned, not killed, if it does not.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("stopping WebSocket server")

		close(s.stopChan)

		if s.listener != nil {
			_ = s.listener.Close()
		}

		s.mu.Lock()
		for _, c := range s.conns {
			c.close()
		}
		s.conns = make(map[string]*Conn)
		s.mu.Unlock()

		select {
		case <-s.done:
		case <-time.After(shutdownWait):
			s.log.Warn("dispatch loop did not exit within %v, abandoning", shutdownWait)
		}

		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()

		s.log.Info("WebSocket server stopped")
	})
}

// Send encodes payload as one text frame and writes it to the named client.
// Sends to an unknown or not-yet-established client are dropped silently.
func (s *Server) Send(clientID string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[clientID]
	if !ok || c.State() != StateEstablished {
		return
	}
	if err := c.write(EncodeText(payload)); err != nil {
		// the dispatch loop observes the broken socket on its next poll
		s.log.Debug("write to %s failed: %v", clientID, err)
	}
}

// Broadcast sends payload to every established client.
func (s *Server) Broadcast(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := EncodeText(payload)
	for id, c := range s.conns {
		if c.State() != StateEstablished {
			continue
		}
		if err := c.write(frame); err != nil {
			s.log.Debug("broadcast write to %s failed: %v", id, err)
		}
	}
}

// ClientCount returns the number of registered connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// run is the dispatch loop: one accept attempt, one poll pass over every
// established connection, removal of the dead, then a short sleep.
func (s *Server) run() {
	defer close(s.done)

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.acceptOne()
		s.pollConnections(buf)

		time.Sleep(loopSleep)
	}
}

// acceptOne performs one bounded accept attempt and runs the handshake path
// for any accepted socket.
func (s *Server) acceptOne() {
	if tl, ok := s.listener.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(acceptTimeout))
	}

	sock, err := s.listener.Accept()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		if errors.Is(err, net.ErrClosed) {
			return
		}
		s.log.Error("accept failed: %v", err)
		return
	}

	s.handleNewConnection(sock)
}

// handleNewConnection reads the upgrade request and performs the handshake.
// This read is the one intentionally blocking operation in the loop,
// bounded by the handshake timeout. Any failure discards the connection
// without registration or notification.
func (s *Server) handleNewConnection(sock net.Conn) {
	conn := newConn(sock)

	if err := sock.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout)); err != nil {
		conn.close()
		return
	}

	buf := make([]byte, handshakeBufferSize)
	n, err := sock.Read(buf)
	if err != nil || n == 0 {
		s.log.Debug("handshake read failed: %v", err)
		conn.close()
		return
	}
	_ = conn.transition(StateHandshaking)

	response, err := Negotiate(string(buf[:n]))
	if err != nil {
		s.log.Debug("handshake rejected: %v", err)
		conn.close()
		return
	}

	if err := conn.write([]byte(response)); err != nil {
		s.log.Debug("handshake response write failed: %v", err)
		conn.close()
		return
	}

	conn.id = generateClientID()
	_ = conn.transition(StateEstablished)

	s.mu.Lock()
	if len(s.conns) >= s.opts.MaxConnections {
		s.mu.Unlock()
		s.log.Warn("connection limit reached, rejecting %s", sock.RemoteAddr())
		conn.close()
		return
	}
	s.conns[conn.id] = conn
	total := len(s.conns)
	s.mu.Unlock()

	s.log.Info("client connected: %s (total: %d)", conn.id, total)
	s.handler.ClientConnected(conn.id)
}

// pollConnections checks every established connection for readable bytes,
// decodes at most one message per connection and collects the disconnected.
func (s *Server) pollConnections(buf []byte) {
	s.mu.Lock()
	snapshot := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		snapshot = append(snapshot, c)
	}
	s.mu.Unlock()

	var dead []*Conn
	for _, c := range snapshot {
		if c.State() != StateEstablished {
			continue
		}

		n, err := c.readAvailable(buf, pollTimeout)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			_ = c.transition(StateClosing)
			dead = append(dead, c)
			continue
		}
		if n == 0 {
			_ = c.transition(StateClosing)
			dead = append(dead, c)
			continue
		}

		chunk := buf[:n]
		if isCloseFrame(chunk) {
			_ = c.transition(StateClosing)
			dead = append(dead, c)
			continue
		}

		// truncated or non-data frames are expected transient noise
		if msg, ok := DecodeFrame(chunk); ok {
			s.handler.MessageReceived(c.id, msg.Payload)
		}
	}

	for _, c := range dead {
		s.mu.Lock()
		delete(s.conns, c.id)
		_ = c.transition(StateRemoved)
		s.mu.Unlock()

		c.close()

		select {
		case <-s.stopChan:
		default:
			s.log.Info("client disconnected: %s", c.id)
			s.handler.ClientDisconnected(c.id)
		}
	}
}

func generateClientID() string {
	return "client_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
