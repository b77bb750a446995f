// Package status serves a small HTTP surface for liveness checks and
// operational counters, separate from the WebSocket port.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/novadaw/novahost/internal/logger"
)

// Info is the report returned by /statusz.
type Info struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Clients         int     `json:"clients"`
	Sessions        int     `json:"sessions"`
	Plugins         int     `json:"plugins"`
	MessagesHandled uint64  `json:"messages_handled"`
	FramesSent      uint64  `json:"frames_sent"`
}

// Server exposes /healthz and /statusz. The source callback is invoked per
// request and must be safe for concurrent use.
type Server struct {
	srv      *http.Server
	listener net.Listener
	log      *logger.Logger
	source   func() Info
	started  time.Time
}

func NewServer(port int, source func() Info) *Server {
	s := &Server{
		log:    logger.Global().WithPrefix("status"),
		source: source,
	}

	router := httprouter.New()
	router.GET("/healthz", s.handleHealth)
	router.GET("/statusz", s.handleStatus)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	return s
}

// Start binds the port and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("status server failed: %v", err)
		}
	}()

	s.log.Info("status endpoint on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, for tests using port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop shuts the server down, waiting up to two seconds for in-flight
// requests.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	info := s.source()
	info.UptimeSeconds = time.Since(s.started).Seconds()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.log.Error("failed to encode status report: %v", err)
	}
}
