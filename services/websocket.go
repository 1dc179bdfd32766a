package services

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB
)

// Message types pushed to clients.
const (
	MessageBoardUpdated = "board.updated"
	MessagePong         = "pong"
	MessageError        = "error"
)

// Client represents a connected WebSocket client
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	Email string // User identifier
}

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string          `json:"type"`
	Data any             `json:"data,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// MessageHandler receives every non-ping message a client sends.
type MessageHandler func(c *Client, msg WebSocketMessage)

type outbound struct {
	email   string  // deliver to every client of this user
	client  *Client // or to this client only
	payload []byte
}

// Hub tracks connected clients and fans out per-user messages. Clients is
// owned by the Run goroutine.
type Hub struct {
	Clients    map[*Client]bool
	outbox     chan outbound
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
	stopped    chan struct{}
	handler    MessageHandler
	logger     *zap.Logger
}

// NewHub creates a new hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		Clients:    make(map[*Client]bool),
		outbox:     make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

// SetHandler installs the handler for incoming client messages. Call before Run.
func (h *Hub) SetHandler(fn MessageHandler) {
	h.handler = fn
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends a message to every connection of one user.
func (h *Hub) Publish(email string, message WebSocketMessage) {
	h.enqueue(outbound{email: email}, message)
}

// Reply sends a message to a single client.
func (h *Hub) Reply(client *Client, message WebSocketMessage) {
	h.enqueue(outbound{client: client}, message)
}

func (h *Hub) enqueue(out outbound, message WebSocketMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Error marshalling WebSocket message", zap.String("type", message.Type), zap.Error(err))
		return
	}
	out.payload = payload
	select {
	case h.outbox <- out:
	case <-h.done:
	}
}

// ClientCount returns how many connections are registered.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	<-h.stopped
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			for client := range h.Clients {
				close(client.Send)
				delete(h.Clients, client)
			}
			return
		case client := <-h.register:
			h.Clients[client] = true
			h.logger.Debug("Client connected", zap.String("email", client.Email))
		case client := <-h.unregister:
			h.drop(client)
		case reply := <-h.count:
			reply <- len(h.Clients)
		case out := <-h.outbox:
			if out.client != nil {
				if h.Clients[out.client] {
					h.deliver(out.client, out.payload)
				}
				continue
			}
			for client := range h.Clients {
				if client.Email == out.email {
					h.deliver(client, out.payload)
				}
			}
		}
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		h.logger.Warn("Client send buffer full, removing client", zap.String("email", client.Email))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.Clients[client]; ok {
		delete(h.Clients, client)
		close(client.Send)
		h.logger.Debug("Client disconnected", zap.String("email", client.Email))
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WebSocket error", zap.String("email", c.Email), zap.Error(err))
			}
			break
		}
		c.handle(message)
	}
}

func (c *Client) handle(message []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.Hub.logger.Debug("Error unmarshalling WebSocket message", zap.Error(err))
		return
	}

	if envelope.Type == "ping" {
		c.Hub.Reply(c, WebSocketMessage{
			Type: MessagePong,
			Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
		})
		return
	}

	if c.Hub.handler != nil {
		c.Hub.handler(c, WebSocketMessage{Type: envelope.Type, Raw: envelope.Data})
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
