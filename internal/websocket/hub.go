package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"budgetpulse/internal/infrastructure"
)

// Message types
const (
	TypeConnection = "connection"
	TypeJobStatus  = "job:status"
	TypeJobStage   = "job:stage"
)

// Message is the envelope of everything the hub sends
type Message struct {
	Type      string    `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Status    string    `json:"status,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

type outbound struct {
	msgType string
	payload []byte
}

// Hub maintains the set of active clients and fans messages out to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *OTelMetrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	pingPeriod time.Duration
	pongWait   time.Duration

	quit     chan struct{}
	running  bool
	stopOnce sync.Once
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *OTelMetrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
		quit:       make(chan struct{}),
	}
}

// SetKeepalive overrides the ping period and pong wait of clients registered
// afterwards. ping must be shorter than pong; invalid values are ignored.
func (h *Hub) SetKeepalive(ping, pong time.Duration) {
	if ping <= 0 || pong <= 0 || ping >= pong {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pingPeriod = ping
	h.pongWait = pong
}

// Start runs the hub loop in its own goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		close(client.send)
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))
	h.metrics.RecordConnection(ctx)

	payload, err := json.Marshal(Message{
		Type:      TypeConnection,
		Status:    "connected",
		Data:      map[string]string{"client_id": client.id},
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.WarnContext(ctx, "failed to send connection message, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	ctx := client.context()
	lifetime := time.Since(client.connectedAt)
	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", lifetime))
	h.metrics.RecordDisconnection(ctx, lifetime, "normal")
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	failed := 0
	for client := range h.clients {
		select {
		case client.send <- msg.payload:
			h.messagesSent++
		default:
			// slow client
			failed++
			close(client.send)
			delete(h.clients, client)
			h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.logger.Debug("broadcast",
		slog.String("type", msg.msgType),
		slog.Int("client_count", len(h.clients)+failed),
		slog.Int("payload_size", len(msg.payload)))
	h.metrics.RecordBroadcast(context.Background(), msg.msgType, failed)
}

// BroadcastUpdate sends a message to every client. subject is the job id
// and status its current state for job events.
func (h *Hub) BroadcastUpdate(eventType, subject, status string, data any) {
	h.send(Message{
		Type:      eventType,
		Subject:   subject,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastUpdateWithTrace is BroadcastUpdate carrying the originating trace id
func (h *Hub) BroadcastUpdateWithTrace(ctx context.Context, eventType, subject, status string, data any) {
	h.send(Message{
		Type:      eventType,
		Subject:   subject,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
}

// Broadcast sends data under messageType
func (h *Hub) Broadcast(messageType string, data any) {
	h.BroadcastUpdate(messageType, "", "", data)
}

func (h *Hub) send(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message",
			slog.String("message_type", msg.Type),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- outbound{msgType: msg.Type, payload: payload}:
	case <-h.quit:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.metrics.RecordDroppedMessage(context.Background(), "hub_queue_full")
		h.logger.Warn("hub queue full, message dropped", slog.String("message_type", msg.Type))
	}
}

// Register adds a client. It returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

func (h *Hub) keepalive() (ping, pong time.Duration) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pingPeriod, h.pongWait
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Running reports whether the hub loop is active
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.Lock()
		defer h.mu.Unlock()
		h.running = false
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	})
}

// Stats returns counters for the health endpoint
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]any{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
	}
}
