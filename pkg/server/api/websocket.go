package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketServer streams successful resolutions to connected clients.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates   chan oracle.Resolution
	broadcast sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	server         *WebSocketServer
	subscribedAll  bool
	subscribedKeys map[string]bool
	mu             sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type   string   `json:"type"` // "subscribe", "unsubscribe", "ping"
	Assets []string `json:"assets"`
}

var errUnsubscribeFromAll = errors.New("subscribed to all assets; subscribe to a list before removing assets")

// ResolutionMessage is sent to clients for every resolution of a subscribed asset.
type ResolutionMessage struct {
	Type       string         `json:"type"` // "resolution"
	Timestamp  string         `json:"timestamp"`
	Resolution ResolutionView `json:"resolution"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan oracle.Resolution, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Updates returns the channel to subscribe to the resolver.
func (s *WebSocketServer) Updates() chan<- oracle.Resolution {
	return s.updates
}

// Handler returns the upgrade handler and starts broadcasting.
func (s *WebSocketServer) Handler() http.Handler {
	s.broadcast.Do(func() { go s.broadcastUpdates() })
	return http.HandlerFunc(s.handleWebSocket)
}

// Start serves /ws until ctx is cancelled or Stop is called.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.Stop()
	case <-s.ctx.Done():
	case err := <-errCh:
		s.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops broadcasting and disconnects all clients.
func (s *WebSocketServer) Stop() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		id:             uuid.New().String(),
		conn:           conn,
		send:           make(chan []byte, 256),
		server:         s,
		subscribedAll:  true,
		subscribedKeys: make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "client", client.id, "remote", conn.RemoteAddr())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case res := <-s.updates:
			s.send(res)
		}
	}
}

// send delivers res to every client subscribed to its asset.
func (s *WebSocketServer) send(res oracle.Resolution) {
	message := ResolutionMessage{
		Type:       "resolution",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Resolution: NewResolutionView(res),
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal resolution", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(res.Asset) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update", "client", client.id)
			}
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "client", c.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "client", c.id, "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "client", c.id, "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Assets)
		c.reply("subscribed")
	case "unsubscribe":
		if err := c.unsubscribe(msg.Assets); err != nil {
			c.replyError(err)
			return
		}
		c.reply("unsubscribed")
	case "ping":
		c.reply("pong")
	default:
		c.server.logger.Warn("Unknown message type", "client", c.id, "type", msg.Type)
	}
}

// subscribe narrows the stream to assets. An empty list or "*" selects everything.
func (c *WebSocketClient) subscribe(assets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(assets) == 0 || (len(assets) == 1 && assets[0] == "*") {
		c.subscribedAll = true
		c.subscribedKeys = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, asset := range assets {
			c.subscribedKeys[asset] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "client", c.id, "assets", assets)
}

// unsubscribe drops assets from the stream. An empty list or "*" drops everything.
// Single assets cannot be removed from an all-assets subscription; narrow it with
// subscribe first.
func (c *WebSocketClient) unsubscribe(assets []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(assets) == 0 || (len(assets) == 1 && assets[0] == "*") {
		c.subscribedAll = false
		c.subscribedKeys = make(map[string]bool)
	} else if c.subscribedAll {
		return errUnsubscribeFromAll
	} else {
		for _, asset := range assets {
			delete(c.subscribedKeys, asset)
		}
	}

	c.server.logger.Debug("Client unsubscribed", "client", c.id, "assets", assets)
	return nil
}

func (c *WebSocketClient) shouldReceive(asset string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribedAll || c.subscribedKeys[asset]
}

// reply acknowledges a control message unless the client is already unregistered.
func (c *WebSocketClient) reply(kind string) {
	c.sendControl(map[string]string{"type": kind})
}

func (c *WebSocketClient) replyError(err error) {
	c.sendControl(map[string]string{"type": "error", "error": err.Error()})
}

func (c *WebSocketClient) sendControl(msg map[string]string) {
	data, _ := json.Marshal(msg)

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	if !c.server.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
