package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gamevault/internal/workerutil"
)

// writeDeadline bounds a single write. A client frozen longer than this is
// treated as dead.
const writeDeadline = 5 * time.Second

// readDeadline allows ~3 missed pings before the connection is dropped.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize limits client frames; subscribe payloads are tiny.
const maxReadMessageSize = 32 * 1024

// maxClients caps concurrent overlay connections.
const maxClients = 16

var wsUpgrader = websocket.Upgrader{
	// The server binds to 127.0.0.1 only; overlay pages may be served from
	// file:// or a browser source with an opaque origin.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 8 * 1024,
}

// HubOptions configures the WebSocket server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for an OS-assigned port.
	Addr string
}

// client is one overlay connection. writeMu serializes writes because
// gorilla/websocket does not support concurrent writers.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	topics  map[string]bool // guarded by Hub.mu
}

// Hub fans engine events out to every connected overlay client that
// subscribed to the event's topic.
//
// Lock ordering (never acquire in reverse): client.writeMu -> Hub.mu.
// Any write failure drops the client; it must reconnect.
type Hub struct {
	opts HubOptions

	mu      sync.RWMutex
	clients map[*client]struct{}
	stopped bool

	listener net.Listener
	server   *http.Server
	url      string
	wg       sync.WaitGroup

	closeOnce sync.Once
}

const (
	subscribeAction   = "subscribe"
	unsubscribeAction = "unsubscribe"
)

type subscribeMsg struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewHub creates a Hub. It does not listen until Start.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{
		opts:    opts,
		clients: make(map[*client]struct{}),
	}
}

// Start listens on the configured address and serves /ws. ctx becomes the
// base context of request handlers; the server itself stops only via Stop.
// Start must be called once.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("wsserver: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/ws", ln.Addr().(*net.TCPAddr).Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	workerutil.Go(&h.wg, "wsserver-serve", func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}, nil)

	slog.Info("[DEBUG-WS] server started", "url", h.url)
	return nil
}

// Stop closes every client and shuts the server down. Idempotent; a stopped
// Hub cannot be restarted.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		clients := make([]*client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()

		for _, c := range clients {
			h.closeConn(c.conn, "hub stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		h.wg.Wait()
		slog.Info("[DEBUG-WS] server stopped")
	})
	return stopErr
}

// URL returns the endpoint (e.g. "ws://127.0.0.1:54321/ws"), or "" before
// Start.
func (h *Hub) URL() string {
	return h.url
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client subscribed to its topic. It
// returns the number of clients written to. Failed clients are dropped.
func (h *Hub) Broadcast(event string, payload any) int {
	topic := TopicOf(event)

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.topics[topic] || c.topics[WildcardTopic] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	frame, err := EncodeEvent(event, payload)
	if err != nil {
		slog.Warn("[DEBUG-WS] failed to encode event", "event", event, "error", err)
		return 0
	}

	sent := 0
	for _, c := range targets {
		if h.write(c, websocket.TextMessage, frame, "broadcast") {
			sent++
		}
	}
	return sent
}

// write sends one frame under the client's write lock. On failure the client
// is removed and closed.
func (h *Hub) write(c *client, messageType int, data []byte, reason string) bool {
	c.writeMu.Lock()
	err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err == nil {
		err = c.conn.WriteMessage(messageType, data)
		if clearErr := c.conn.SetWriteDeadline(time.Time{}); clearErr != nil {
			slog.Debug("[DEBUG-WS] clear write deadline failed (non-fatal)", "error", clearErr)
		}
	}
	c.writeMu.Unlock()

	if err != nil {
		slog.Warn("[DEBUG-WS] write failed, dropping client", "reason", reason, "error", err)
		h.remove(c)
		h.closeConn(c.conn, "write error: "+reason)
		return false
	}
	return true
}

func (h *Hub) remove(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	return true
}

// closeConn closes conn. Double close is harmless and logged at Debug.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if err := conn.Close(); err != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", err)
	}
}

// handleWS upgrades the request and runs the read pump until the client
// goes away.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= maxClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	c := &client{conn: conn, topics: make(map[string]bool)}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		h.closeConn(conn, "hub stopped")
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	workerutil.Go(&h.wg, "wsserver-ping", func() { h.pingLoop(c, pingDone) }, func(error) {
		h.remove(c)
		h.closeConn(conn, "ping loop panic")
	})

	defer func() {
		close(pingDone)
		h.remove(c)
		h.closeConn(conn, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var sub subscribeMsg
		if jsonErr := json.Unmarshal(msg, &sub); jsonErr != nil {
			slog.Debug("[DEBUG-WS] invalid JSON from client", "error", jsonErr)
			h.sendError(c, fmt.Sprintf("invalid JSON: %s", jsonErr))
			continue
		}
		if err := h.handleSubscription(c, sub); err != nil {
			h.sendError(c, err.Error())
		}
	}
}

func (h *Hub) pingLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !h.write(c, websocket.PingMessage, nil, "ping") {
				return
			}
		}
	}
}

// handleSubscription applies a subscribe or unsubscribe request. Empty
// topics are skipped.
func (h *Hub) handleSubscription(c *client, msg subscribeMsg) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return nil
	}

	switch msg.Action {
	case subscribeAction:
		for _, topic := range msg.Topics {
			if topic == "" {
				continue
			}
			c.topics[topic] = true
			slog.Debug("[DEBUG-WS] subscribed", "topic", topic)
		}
	case unsubscribeAction:
		for _, topic := range msg.Topics {
			delete(c.topics, topic)
			slog.Debug("[DEBUG-WS] unsubscribed", "topic", topic)
		}
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

// subscribed reports whether c currently receives topic.
func (h *Hub) subscribed(c *client, topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.topics[topic]
}

func (h *Hub) sendError(c *client, message string) {
	payload, err := json.Marshal(errorMsg{Type: "error", Message: message})
	if err != nil {
		slog.Debug("[DEBUG-WS] failed to marshal error message", "error", err)
		return
	}
	h.write(c, websocket.TextMessage, payload, "error reply")
}
