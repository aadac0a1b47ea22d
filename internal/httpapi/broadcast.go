package httpapi

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans reward events out to connected WebSocket clients. Reward
// events are rare compared to session telemetry, so there is no batching or
// throttling: each event is sent as it happens.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*client]bool)}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish sends one message to every connected client. Slow clients with a
// full send buffer miss the message rather than blocking the caller.
func (b *Broadcaster) Publish(msgType MessageType, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msgType, err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, drop the message
		}
	}
}
