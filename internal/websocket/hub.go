package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Hub maintains the set of connected recipients and pushes notifications
// to them as they are created.
type Hub struct {
	// Registered clients map: user id -> Client
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// A reconnecting user replaces their old connection
			if old, ok := h.clients[client.UserID]; ok {
				close(old.send)
				delete(h.clients, client.UserID)
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
			log.Debug().Str("user_id", client.UserID.String()).Msg("Recipient connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserID]; ok {
				delete(h.clients, client.UserID)
				close(client.send)
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", client.UserID.String()).Msg("Recipient disconnected")
		}
	}
}

// Push sends a message to a specific recipient if connected. Returns false
// when the recipient is offline or their buffer is full.
func (h *Hub) Push(userID uuid.UUID, message interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal push message")
		return false
	}

	select {
	case client.send <- jsonMsg:
		return true
	default:
		// Buffer full or client dead
		return false
	}
}
