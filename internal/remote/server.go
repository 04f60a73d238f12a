// ABOUTME: WebSocket endpoint that turns remote requests into voice triggers
// ABOUTME: Serves /trigger and forwards requests to a Controller
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Controller is what the endpoint drives
type Controller interface {
	Trigger(idx int) error
	Len() int
	RequestQuit()
}

// Config holds endpoint configuration
type Config struct {
	Port int
	// InstanceID identifies this run in replies; generated when empty
	InstanceID string
}

// Server accepts remote trigger connections
type Server struct {
	config   Config
	ctrl     Controller
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates an endpoint for ctrl
func NewServer(config Config, ctrl Controller) *Server {
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}

	s := &Server{
		config: config,
		ctrl:   ctrl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux:   http.NewServeMux(),
		conns: make(map[*websocket.Conn]struct{}),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// InstanceID returns the id sent in every reply
func (s *Server) InstanceID() string { return s.config.InstanceID }

// Handler returns the HTTP handler serving the endpoint
func (s *Server) Handler() http.Handler { return s.mux }

// Run listens on the configured port until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{Handler: s.mux}
	log.Printf("Remote trigger listening on %s%s", ln.Addr(), Path)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		serveErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Remote trigger shutdown error: %v", err)
	}
	s.closeConns()
	s.wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("remote trigger server failed: %w", serveErr)
	}
	log.Printf("Remote trigger stopped")
	return nil
}

// closeConns drops hijacked connections, which http.Server.Shutdown leaves alone
func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	if !s.track(conn) {
		log.Printf("Rejecting remote connection during shutdown")
		conn.Close()
		return
	}
	defer s.untrack(conn)
	defer conn.Close()

	log.Printf("Remote connected from %s", r.RemoteAddr)
	s.handleConnection(conn)
	log.Printf("Remote %s disconnected", r.RemoteAddr)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Remote read error: %v", err)
			}
			return
		}

		var req Request
		var reply Reply
		if err := json.Unmarshal(data, &req); err != nil {
			reply = s.ack(fmt.Errorf("malformed request: %w", err))
		} else {
			reply = s.handle(req)
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("Remote write error: %v", err)
			return
		}
	}
}

func (s *Server) handle(req Request) Reply {
	switch req.Type {
	case TypeStart:
		log.Printf("Remote: start voice %d", req.Voice)
		return s.ack(s.ctrl.Trigger(req.Voice))
	case TypeStopAll:
		log.Printf("Remote: stop all")
		s.ctrl.RequestQuit()
		return s.ack(nil)
	case TypeVoices:
		return s.ack(nil)
	default:
		return s.ack(fmt.Errorf("unknown request type %q", req.Type))
	}
}

func (s *Server) ack(err error) Reply {
	reply := Reply{
		Type:     TypeAck,
		OK:       err == nil,
		Voices:   s.ctrl.Len(),
		Instance: s.config.InstanceID,
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}
