package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tracks connected candidates and routes interview events to them.
// A candidate may have more than one connection (multiple tabs); events go
// to all of them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// Client is one websocket connection for one candidate.
type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	CandidateID    string
	MessageHandler func(*Client, []byte)
}

// InboundMessage is what the candidate's browser sends over the socket:
// answer submissions, draft updates, and pause/resume commands.
type InboundMessage struct {
	Type    string `json:"type"` // "answer", "draft", "pause", "resume"
	Content string `json:"content,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "candidate_id", client.CandidateID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "candidate_id", client.CandidateID)
		}
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, candidateID string) *Client {
	client := &Client{
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		CandidateID: candidateID,
	}
	h.register <- client
	return client
}

// SendToCandidate delivers payload to every connection the candidate has
// open. No connection means the event is dropped; the session state in the
// database is authoritative.
func (h *Hub) SendToCandidate(candidateID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.CandidateID != candidateID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			slog.Warn("Client send buffer full, dropping event", "candidate_id", candidateID)
		}
	}
}

// HasConnection reports whether the candidate has at least one open socket.
func (h *Hub) HasConnection(candidateID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.CandidateID == candidateID {
			return true
		}
	}
	return false
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "candidate_id", c.CandidateID, "error", err)
			}
			break
		}

		var msg InboundMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "candidate_id", c.CandidateID, "error", err)
			continue
		}

		if c.MessageHandler != nil {
			go c.MessageHandler(c, messageBytes)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
