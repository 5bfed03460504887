package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSEnvelope is every message pushed to a console
type WSEnvelope struct {
	Type   string         `json:"type"` // state | toast | result
	State  *StateView     `json:"state,omitempty"`
	Toast  *Toast         `json:"toast,omitempty"`
	Result *CommandResult `json:"result,omitempty"`
}

// Client represents a moderator console connection
type Client struct {
	conn    *websocket.Conn
	session string
	writeMu sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

func (c *Client) send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// WebSocket hub for broadcasting updates to all connected consoles
type Hub struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

// join registers a console. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(env WSEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logError("hub.publish: marshal", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) broadcastState(v StateView) {
	h.publish(WSEnvelope{Type: "state", State: &v})
}

// sendToSession writes message to every console logged in with session
func (h *Hub) sendToSession(session string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.session != session {
			continue
		}
		LogWSMessage("OUT", shortToken(session), string(message))
		if err := client.send(message); err != nil {
			log.Printf("WebSocket write error to console %s: %v", shortToken(session), err)
		}
	}
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket console connected. Total: %d", total)
			DebugLog("Console %s connected via WebSocket", shortToken(client.session))

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				DebugLog("Console %s disconnected", shortToken(client.session))
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket console disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn, client := range h.clients {
				LogWSMessage("OUT", shortToken(client.session), string(message))
				if err := client.send(message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// shortToken keeps session tokens out of the logs
func shortToken(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[:6]
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionFromRequest(r)
	if err != nil {
		DebugLog("Rejected WebSocket connection - not logged in")
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return
	}

	var upgrader = websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for console %s: %v", shortToken(session), err)
		return
	}

	client := &Client{conn: conn, session: session}
	if !s.hub.join(client) {
		log.Printf("WebSocket console %s refused: hub stopped", shortToken(session))
		conn.Close()
		return
	}

	// the new console starts from the current snapshot
	if data, err := json.Marshal(WSEnvelope{Type: "state", State: ptr(s.moderator.View())}); err == nil {
		client.send(data)
	}

	// Handle messages and disconnection
	go func() {
		defer func() {
			s.hub.leave(conn)
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleWSMessage(client, message)
		}
	}()
}

// handleWSMessage applies a command sent by a console. Errors go back to
// that console as a toast; the new state reaches every console by broadcast.
func (s *server) handleWSMessage(client *Client, message []byte) {
	LogWSMessage("IN", shortToken(client.session), string(message))

	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Printf("WebSocket unmarshal error for console %s: %v", shortToken(client.session), err)
		s.sendErrorToast(client.session, "Malformed command")
		return
	}

	res, err := s.moderator.Apply(context.Background(), cmd)
	if err != nil {
		DebugLog("Command %s rejected: %v", cmd.Action, err)
		s.sendErrorToast(client.session, err.Error())
		return
	}
	if res.Tally != nil || res.Banished != nil {
		if data, err := json.Marshal(WSEnvelope{Type: "result", Result: &res}); err == nil {
			s.hub.sendToSession(client.session, data)
		}
	}
}

func ptr[T any](v T) *T { return &v }
