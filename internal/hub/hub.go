package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"parlor/internal/models"
	"parlor/internal/observability"
)

// Hub tracks live websocket connections and their room groups. It delivers
// outbound events to single connections, to room groups, or to everyone.
type Hub struct {
	mu sync.RWMutex

	// Map: connID -> Client
	conns map[string]*Client

	// Map: roomID -> connID -> Client
	groups map[string]map[string]*Client
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "room hub" }

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*Client),
		groups: make(map[string]map[string]*Client),
	}
}

// Register adds a connected client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.conns[client.ID] = client
	total := len(h.conns)
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Set(float64(total))
	log.Printf("Hub: Registered conn %s (Active: %d)", client.ID, total)
}

// UnregisterClient removes a connection and drops it from every room group.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.conns[client.ID]; !ok {
		// Already removed
		h.mu.Unlock()
		return
	}
	delete(h.conns, client.ID)

	for roomID, members := range h.groups {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}

	total := len(h.conns)
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Set(float64(total))
	log.Printf("Hub: Unregistered conn %s (Active: %d)", client.ID, total)
}

// JoinGroup adds a connection to a room's broadcast group.
func (h *Hub) JoinGroup(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.conns[connID]
	if !ok {
		log.Printf("Hub: Conn %s not connected, cannot join room %s", connID, roomID)
		return
	}

	if h.groups[roomID] == nil {
		h.groups[roomID] = make(map[string]*Client)
	}
	h.groups[roomID][connID] = client
}

// LeaveGroup removes a connection from a room's broadcast group.
func (h *Hub) LeaveGroup(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(connID string, ev models.Event) {
	h.mu.RLock()
	client, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Hub: Failed to marshal event %q: %v", ev.Type, err)
		return
	}
	client.TrySend(payload)
}

// SendRoom delivers an event to every connection in a room group.
func (h *Hub) SendRoom(roomID string, ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Hub: Failed to marshal event %q: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[roomID] {
		client.TrySend(payload)
	}
}

// SendAll delivers an event to every connection.
func (h *Hub) SendAll(ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Hub: Failed to marshal event %q: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.conns {
		client.TrySend(payload)
	}
}

// Terminate force-closes a connection. The client's read pump handles the
// unregister when the close lands.
func (h *Hub) Terminate(connID string) {
	h.mu.RLock()
	client, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok || client.Conn == nil {
		return
	}

	if err := client.Conn.Close(); err != nil {
		log.Printf("Hub: Failed to close conn %s: %v", connID, err)
	}
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, client := range h.conns {
		if client.Conn == nil {
			continue
		}
		if err := client.Conn.WriteMessage(1, // TextMessage
			[]byte(`{"type":"systemMessage","payload":{"text":"Server is shutting down"}}`)); err != nil {
			log.Printf("failed to write shutdown message for conn %s: %v", connID, err)
		}
		if err := client.Conn.Close(); err != nil {
			log.Printf("failed to close websocket for conn %s: %v", connID, err)
		}
	}

	h.conns = make(map[string]*Client)
	h.groups = make(map[string]map[string]*Client)

	return nil
}
