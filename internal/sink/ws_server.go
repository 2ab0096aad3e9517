package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait = 2 * time.Second

	// Per-client frame buffer. The contract is latest-value-wins, so the
	// buffer stays tiny and a client that cannot keep up loses frames,
	// never stalls the tick loop.
	clientBuffer = 4
)

// WSServer broadcasts weight frames to renderer clients over websocket
// and serves auxiliary HTTP endpoints (health, metrics).
type WSServer struct {
	addr     string
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    *Frame
}

type wsClient struct {
	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}
}

// NewWSServer creates a broadcaster listening on addr. The metrics
// handler is optional.
func NewWSServer(addr string, metricsHandler http.Handler, logger zerolog.Logger) *WSServer {
	s := &WSServer{
		addr:   addr,
		logger: logger.With().Str("component", "ws-sink").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Renderer clients are local tools; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *WSServer) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("Output server listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes all clients and stops the listener.
func (s *WSServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		close(c.done)
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}

// Consume implements Sink: fan the frame out to every connected client.
// Clients with a full buffer are skipped; the next frame supersedes the
// lost one anyway.
func (s *WSServer) Consume(frame Frame) {
	s.mu.Lock()
	s.last = &frame
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		select {
		case c.frames <- frame:
		default:
		}
	}
}

// ClientCount returns the number of connected renderer clients.
func (s *WSServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		frames: make(chan Frame, clientBuffer),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	last := s.last
	s.mu.Unlock()

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Renderer client connected")

	// New clients get the current vector immediately so the mouth does
	// not sit unset until the next tick.
	if last != nil {
		select {
		case client.frames <- *last:
		default:
		}
	}

	go s.writeLoop(client)
	go s.readLoop(client)
}

func (s *WSServer) writeLoop(c *wsClient) {
	defer s.drop(c)

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.frames:
			payload, err := json.Marshal(frame)
			if err != nil {
				s.logger.Error().Err(err).Msg("Frame marshal failed")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages; it exists to observe close frames.
func (s *WSServer) readLoop(c *wsClient) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WSServer) drop(c *wsClient) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.done)
	}
	s.mu.Unlock()
	_ = c.conn.Close()
}
