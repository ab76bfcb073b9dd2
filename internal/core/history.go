package core

import (
	"sync"

	"parlor/internal/models"
)

// DefaultHistoryCapacity bounds a room's history when no capacity is
// configured.
const DefaultHistoryCapacity = 500

// HistoryBuffer keeps a bounded, ordered message log per room. When a room's
// log is full the oldest entry is evicted first.
type HistoryBuffer struct {
	mu       sync.RWMutex
	capacity int
	byRoom   map[string][]models.Message
}

// NewHistoryBuffer returns a buffer with the given per-room capacity.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryBuffer{
		capacity: capacity,
		byRoom:   make(map[string][]models.Message),
	}
}

// Append adds a message to the room's log, evicting the oldest entry when
// the log is at capacity.
func (h *HistoryBuffer) Append(roomID string, msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.byRoom[roomID]
	if len(log) >= h.capacity {
		// Shift in place; the slice never grows past capacity.
		copy(log, log[1:])
		log[len(log)-1] = msg
	} else {
		log = append(log, msg)
	}
	h.byRoom[roomID] = log
}

// Snapshot returns a copy of the room's log so later appends and evictions
// cannot mutate what was already handed to a client.
func (h *HistoryBuffer) Snapshot(roomID string) []models.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	log := h.byRoom[roomID]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}

// Drop discards the room's log entirely.
func (h *HistoryBuffer) Drop(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byRoom, roomID)
}

// Len returns the current length of the room's log.
func (h *HistoryBuffer) Len(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byRoom[roomID])
}
